package atlas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/setanarut/avatarbuilder/utils"
)

var ErrCellSize = errors.New("cell width and height are required without a manifest")

// Options selects one atlas to unpack.
//
// Manifest names a JSON manifest inside SourceDir. When Manifest is empty,
// Texture names an image inside SourceDir that is sliced into a grid of
// CellWidth x CellHeight cells.
type Options struct {
	SourceDir  string
	OutputDir  string
	Manifest   string
	Texture    string
	CellWidth  int
	CellHeight int
}

// Result reports what an Unpack call did.
type Result struct {
	// Skipped is set when OutputDir already existed and nothing was extracted.
	Skipped bool
	Frames  int
	Failed  int
}

// Unpacker writes atlas frames as individual PNG files.
type Unpacker struct {
	logger *slog.Logger
}

func NewUnpacker(logger *slog.Logger) *Unpacker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Unpacker{logger: logger}
}

// Unpack extracts every frame of the atlas into OutputDir/<filename>.png.
//
// Work is skipped entirely when OutputDir already exists. Frames are written
// into a sibling temp directory that is renamed into place once complete, so
// an existing OutputDir always holds a finished extraction.
func (u *Unpacker) Unpack(ctx context.Context, opt Options) (Result, error) {
	if _, err := os.Stat(opt.OutputDir); err == nil {
		return Result{Skipped: true}, nil
	}

	textures, err := u.textures(opt)
	if err != nil {
		return Result{}, err
	}

	parent := filepath.Dir(opt.OutputDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return Result{}, err
	}
	tmp := filepath.Join(parent, "."+filepath.Base(opt.OutputDir)+".tmp-"+uuid.NewString())
	if err := os.Mkdir(tmp, 0o755); err != nil {
		return Result{}, err
	}

	var res Result
	for _, tex := range textures {
		if err := ctx.Err(); err != nil {
			os.RemoveAll(tmp)
			return res, err
		}
		n, failed, err := u.unpackTexture(ctx, filepath.Join(opt.SourceDir, tex.Image), tex.Frames, tmp)
		if err != nil {
			u.logger.Warn("texture skipped", "texture", tex.Image, "error", err)
			res.Failed += len(tex.Frames)
			continue
		}
		res.Frames += n
		res.Failed += failed
	}

	if err := ctx.Err(); err != nil {
		os.RemoveAll(tmp)
		return res, err
	}
	if res.Frames == 0 {
		os.RemoveAll(tmp)
		return res, fmt.Errorf("%w: no frames extracted for %s", ErrTextureMissing, opt.OutputDir)
	}

	if err := os.Rename(tmp, opt.OutputDir); err != nil {
		os.RemoveAll(tmp)
		if _, statErr := os.Stat(opt.OutputDir); statErr == nil {
			// Another writer finished the same asset first.
			return Result{Skipped: true}, nil
		}
		return res, fmt.Errorf("publish %s: %w", opt.OutputDir, err)
	}
	return res, nil
}

func (u *Unpacker) textures(opt Options) ([]Texture, error) {
	if opt.Manifest != "" {
		m, err := ReadManifest(filepath.Join(opt.SourceDir, ManifestName(opt.Manifest)))
		if err != nil {
			return nil, err
		}
		return m.Textures, nil
	}
	if opt.Texture == "" {
		return nil, fmt.Errorf("%w: no manifest or texture given", ErrManifestMissing)
	}
	if opt.CellWidth <= 0 || opt.CellHeight <= 0 {
		return nil, ErrCellSize
	}
	path := filepath.Join(opt.SourceDir, opt.Texture)
	img, err := utils.ReadImage(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTextureMissing, path)
		}
		return nil, err
	}
	return []Texture{{
		Image:  opt.Texture,
		Frames: GridFrames(img.Bounds(), opt.CellWidth, opt.CellHeight),
	}}, nil
}

func (u *Unpacker) unpackTexture(ctx context.Context, path string, frames []Frame, outDir string) (int, int, error) {
	src, err := utils.ReadNRGBA(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, 0, fmt.Errorf("%w: %s", ErrTextureMissing, path)
		}
		return 0, 0, err
	}

	written, failed := 0, 0
	for _, f := range frames {
		if ctx.Err() != nil {
			return written, failed, nil
		}
		if !filepath.IsLocal(f.Filename) {
			u.logger.Warn("frame name escapes output dir", "frame", f.Filename)
			failed++
			continue
		}
		img, err := Extract(src, f)
		if err != nil {
			u.logger.Warn("frame skipped", "frame", f.Filename, "error", err)
			failed++
			continue
		}
		if err := utils.SaveImage(img, filepath.Join(outDir, f.Filename+".png")); err != nil {
			u.logger.Warn("frame not written", "frame", f.Filename, "error", err)
			failed++
			continue
		}
		written++
	}
	return written, failed, nil
}
