package avatarbuilder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/setanarut/avatarbuilder/atlas"
	"github.com/setanarut/avatarbuilder/utils"
)

// frameSet is where one layer's sub-frames live for a given frame id.
// Color layers list the body silhouette and overlay the shading art;
// asset layers list and overlay the same directory.
type frameSet struct {
	layer   Layer
	list    string
	overlay string
}

func (b *Builder) renderPose(ctx context.Context, dir string, pose, frame int, stack Stack) (res PoseResult, err error) {
	ctx, span := tracer.Start(ctx, "avatarbuilder.pose", trace.WithAttributes(
		attribute.Int("pose", pose),
		attribute.Int("frame", frame),
	))
	start := time.Now()
	defer func() {
		b.metrics.observePose(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, poseOutcome(err))
		}
		span.End()
	}()

	if isSecretFrame(frame) {
		b.unpack(ctx, atlas.Options{
			SourceDir: filepath.Join(b.penguinDir(), "actions"),
			OutputDir: b.actionFramesDir(frame),
			Manifest:  strconv.Itoa(frame),
		}, "action "+strconv.Itoa(frame), b.logger)
	}

	files, err := b.composeFrame(dir, frame, b.frameSets(frame, stack))
	if err != nil {
		return PoseResult{Pose: pose, Frame: frame}, err
	}
	name, animated, err := b.assemble(dir, pose, files)
	if err != nil {
		return PoseResult{Pose: pose, Frame: frame}, err
	}
	return PoseResult{Pose: pose, Frame: frame, File: name, Animated: animated}, nil
}

func (b *Builder) frameSets(frame int, stack Stack) []frameSet {
	sets := make([]frameSet, 0, len(stack))
	for _, l := range stack {
		if id, ok := l.Asset(); ok {
			d := b.assetFramesDir(id)
			sets = append(sets, frameSet{layer: l, list: d, overlay: d})
			continue
		}
		root := b.penguinFramesDir()
		if isSecretFrame(frame) {
			root = b.actionFramesDir(frame)
		}
		sets = append(sets, frameSet{
			layer:   l,
			list:    filepath.Join(root, "body"),
			overlay: filepath.Join(root, "penguin"),
		})
	}
	return sets
}

// composeFrame renders every sub-frame the layers have in common and returns
// the written file names in playback order.
func (b *Builder) composeFrame(dir string, frame int, sets []frameSet) ([]string, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: frame %d has no layers", ErrEmptyIntersection, frame)
	}
	var common []string
	for i, set := range sets {
		names, err := listSubframes(set.list, frame)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("%w: frame %d missing for layer %s", ErrEmptyIntersection, frame, set.layer)
		}
		if i == 0 {
			common = names
			continue
		}
		common = slices.DeleteFunc(common, func(n string) bool { return !slices.Contains(names, n) })
	}
	if len(common) == 0 {
		return nil, fmt.Errorf("%w: frame %d", ErrEmptyIntersection, frame)
	}
	sortSubframes(common)

	base, hasBase := sets[0].layer.Color()
	files := make([]string, 0, len(common))
	for _, name := range common {
		img, err := utils.ReadNRGBA(filepath.Join(sets[0].list, name))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAssetMissing, err)
		}
		var fill *color.NRGBA
		if hasBase {
			fill = &base
		}
		canvas := utils.Tint(img, fill)
		for _, set := range sets {
			if err := overlay(canvas, filepath.Join(set.overlay, name), set.layer.Kind() == KindColor); err != nil {
				return nil, err
			}
		}
		out := subframeName(frame, name)
		if err := utils.SaveImage(canvas, filepath.Join(dir, out)); err != nil {
			return nil, fmt.Errorf("write %s: %w", out, err)
		}
		files = append(files, out)
	}
	return files, nil
}

// overlay draws the sub-frame at path onto canvas. Shading art is optional for
// color layers; a body without it renders as a flat silhouette.
func overlay(canvas *image.NRGBA, path string, optional bool) error {
	img, err := utils.ReadImage(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrAssetMissing, err)
	}
	utils.Over(canvas, img, canvas.Bounds().Min)
	return nil
}

// listSubframes returns the PNG names in dir that belong to frame: either
// "<frame>.png" or "<frame>_<n>.png".
func listSubframes(dir string, frame int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	prefix := strconv.Itoa(frame)
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".png" {
			continue
		}
		stem := strings.TrimSuffix(name, ".png")
		if stem == prefix || strings.HasPrefix(stem, prefix+"_") {
			names = append(names, name)
		}
	}
	return names, nil
}

// subframeIndex is the numeric suffix of "<frame>_<n>.png"; 0 without one.
func subframeIndex(name string) int {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	_, suffix, ok := strings.Cut(stem, "_")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0
	}
	return n
}

func sortSubframes(names []string) {
	slices.SortStableFunc(names, func(a, b string) int {
		if d := subframeIndex(a) - subframeIndex(b); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
}

// subframeName is the zero-padded intermediate name, "<frame>_0001.png".
func subframeName(frame int, name string) string {
	return fmt.Sprintf("%d_%04d.png", frame, subframeIndex(name))
}
