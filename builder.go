// Package avatarbuilder renders layered avatar animations from packed sprite
// atlases: one looping animation per body pose, cached per layer stack.
package avatarbuilder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/setanarut/avatarbuilder/atlas"
	"github.com/setanarut/avatarbuilder/utils"
)

var tracer = otel.Tracer("github.com/setanarut/avatarbuilder")

type Options struct {
	// Root of the source art: penguin/, clothing/sprites/, clothing/paper/.
	AssetDir string
	// Shared, per-asset extracted frames. Written once, read by every request.
	ExtractedDir string
	// One directory per fingerprint. Its presence is the cache hit signal.
	OutputDir string
	// GIF frame delay in 1/100 s.
	// 4 matches the 24 fps cadence the sprite sheets were drawn for.
	FrameDelay int
	// Opaque colors per animation palette; one more slot is kept for transparency.
	// Sequences with fewer distinct colors get an exact palette.
	PaletteSize int
	// Palette extraction for sequences that exceed PaletteSize.
	PaletteMethod utils.PaletteMethod
	// Transparent margin around generated paperdolls, in pixels.
	PaperPadding int

	Logger  *slog.Logger
	Metrics *Metrics
}

func DefaultOptions() Options {
	return Options{
		AssetDir:      ".",
		ExtractedDir:  "extracted",
		OutputDir:     "output",
		FrameDelay:    4,
		PaletteSize:   63,
		PaletteMethod: utils.PaletteMethodKMeans,
		PaperPadding:  80,
	}
}

// Request is one caller's selection.
type Request struct {
	// Items is a comma-separated list of item ids.
	Items string
	// Color optionally overrides the color slot with a hex value.
	Color string
	// Session tags emitted events. A random id is used when empty.
	Session string
}

type Builder struct {
	opts     Options
	catalog  *Catalog
	unpacker *atlas.Unpacker
	logger   *slog.Logger
	metrics  *Metrics
	flight   singleflight.Group
}

func NewBuilder(catalog *Catalog, opts Options) *Builder {
	def := DefaultOptions()
	if opts.FrameDelay <= 0 {
		opts.FrameDelay = def.FrameDelay
	}
	if opts.PaletteSize <= 0 {
		opts.PaletteSize = def.PaletteSize
	}
	if opts.PaperPadding < 0 {
		opts.PaperPadding = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{
		opts:     opts,
		catalog:  catalog,
		unpacker: atlas.NewUnpacker(logger),
		logger:   logger,
		metrics:  opts.Metrics,
	}
}

// Resolve maps a request onto its model and layer stack without touching disk.
func (b *Builder) Resolve(req Request) (Model, Stack, error) {
	m, err := b.catalog.Resolve(req.Items, req.Color)
	if err != nil {
		return Model{}, nil, err
	}
	return m, m.Layers(), nil
}

// Build runs a request to completion and returns its summary. Concurrent
// Build calls for the same fingerprint in this process share one render.
func (b *Builder) Build(ctx context.Context, req Request) (Summary, error) {
	_, stack, err := b.Resolve(req)
	if err != nil {
		return Summary{}, err
	}
	v, err, _ := b.flight.Do(stack.Fingerprint(), func() (any, error) {
		s, err := b.Start(ctx, req)
		if err != nil {
			return Summary{}, err
		}
		for range s.Events() {
		}
		return s.Wait()
	})
	return v.(Summary), err
}

// Start resolves the request, makes sure the base-color paperdoll exists and
// checks the fingerprint cache. On a miss the poses render in the background
// and stream events through the returned Session.
func (b *Builder) Start(ctx context.Context, req Request) (*Session, error) {
	model, stack, err := b.Resolve(req)
	if err != nil {
		return nil, err
	}
	base, _ := stack.Base()
	if _, err := b.ensurePaperdoll(base); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrerequisite, err)
	}

	fp := stack.Fingerprint()
	dir, hit, err := b.claim(fp)
	if err != nil {
		return nil, err
	}
	s := newSession(req.Session, fp, dir)
	logger := b.logger.With("session", s.ID, "fingerprint", fp)
	if hit {
		b.metrics.cacheLookup(true)
		logger.Debug("cache hit")
		s.finish(cachedSummary(s), nil)
		return s, nil
	}
	b.metrics.cacheLookup(false)
	logger.Info("rendering avatar", "layers", len(stack))

	go b.run(ctx, s, model, stack, logger)
	return s, nil
}

func (b *Builder) run(ctx context.Context, s *Session, model Model, stack Stack, logger *slog.Logger) {
	ctx, span := tracer.Start(ctx, "avatarbuilder.render", trace.WithAttributes(
		attribute.String("session", s.ID),
		attribute.String("fingerprint", s.Fingerprint),
	))
	finish := func(out Summary, err error) {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.finish(out, err)
	}
	sum := Summary{Session: s.ID, Fingerprint: s.Fingerprint, Dir: s.Dir}

	if err := b.composePaper(s.Dir, stack); err != nil {
		logger.Warn("paper composite skipped", "error", err)
	}
	for _, l := range stack {
		b.unpackLayer(ctx, l, logger)
	}

	for pose := 1; pose <= PoseCount; pose++ {
		if err := ctx.Err(); err != nil {
			// A cancelled render is incomplete; do not leave it as a cache entry.
			b.release(s.Dir)
			finish(sum, err)
			return
		}
		frame := SelectFrame(pose, b.catalog.Rules(pose), model)
		s.emit(Event{Type: EventStart, Pose: pose, Frame: frame})

		res, err := b.renderPose(ctx, s.Dir, pose, frame, stack)
		if err != nil {
			logger.Warn("pose skipped", "pose", pose, "frame", frame, "error", err)
			b.metrics.pose(poseOutcome(err))
			sum.Failed = append(sum.Failed, PoseFailure{Pose: pose, Frame: frame, Err: err})
			s.emit(Event{Type: EventError, Pose: pose, Frame: frame, Error: err.Error()})
			continue
		}
		b.metrics.pose("rendered")
		logger.Debug("pose complete", "pose", pose, "frame", frame, "file", res.File)
		sum.Poses = append(sum.Poses, res)
		s.emit(Event{Type: EventProgress, Pose: pose, Frame: frame, File: res.File})
	}

	span.SetAttributes(attribute.Int("poses", len(sum.Poses)), attribute.Int("skipped", len(sum.Failed)))
	if len(sum.Poses) == 0 {
		b.release(s.Dir)
		finish(sum, ErrNoPoses)
		return
	}
	logger.Info("avatar complete", "poses", len(sum.Poses), "skipped", len(sum.Failed))
	finish(sum, nil)
}

// unpackLayer extracts the atlas behind one layer. Failures are logged; poses
// that need the missing frames later report an empty intersection.
func (b *Builder) unpackLayer(ctx context.Context, l Layer, logger *slog.Logger) {
	opt := atlas.Options{
		SourceDir: b.penguinDir(),
		OutputDir: b.penguinFramesDir(),
		Manifest:  "penguin",
	}
	if id, ok := l.Asset(); ok {
		opt = atlas.Options{
			SourceDir: filepath.Join(b.opts.AssetDir, "clothing", "sprites"),
			OutputDir: b.assetFramesDir(id),
			Manifest:  strconv.Itoa(id),
		}
	}
	b.unpack(ctx, opt, l.String(), logger)
}

func (b *Builder) unpack(ctx context.Context, opt atlas.Options, asset string, logger *slog.Logger) {
	res, err := b.unpacker.Unpack(ctx, opt)
	switch {
	case err != nil:
		b.metrics.extraction("failed")
		logger.Warn("asset extraction failed", "asset", asset, "error", fmt.Errorf("%w: %w", ErrAssetMissing, err))
	case res.Skipped:
		b.metrics.extraction("cached")
	default:
		b.metrics.extraction("extracted")
		logger.Debug("asset extracted", "asset", asset, "frames", res.Frames, "failed", res.Failed)
	}
}

func (b *Builder) penguinDir() string {
	return filepath.Join(b.opts.AssetDir, "penguin")
}

func (b *Builder) penguinFramesDir() string {
	return filepath.Join(b.opts.ExtractedDir, "penguin")
}

func (b *Builder) assetFramesDir(id int) string {
	return filepath.Join(b.opts.ExtractedDir, strconv.Itoa(id))
}

func (b *Builder) actionFramesDir(frame int) string {
	return filepath.Join(b.opts.ExtractedDir, "actions", strconv.Itoa(frame))
}
