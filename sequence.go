package avatarbuilder

import (
	"fmt"
	"image"
	"image/gif"
	"os"
	"path/filepath"
	"strconv"

	"github.com/setanarut/avatarbuilder/utils"
)

// assemble turns a pose's composited sub-frames into its output file.
// A single sub-frame becomes "<pose>.png" as is; several become a looping
// "<pose>.gif". Intermediates are removed once the output exists.
func (b *Builder) assemble(dir string, pose int, files []string) (string, bool, error) {
	if len(files) == 0 {
		return "", false, fmt.Errorf("%w: pose %d has no sub-frames", ErrEncodeFailure, pose)
	}
	if len(files) == 1 {
		name := strconv.Itoa(pose) + ".png"
		if err := os.Rename(filepath.Join(dir, files[0]), filepath.Join(dir, name)); err != nil {
			return "", false, fmt.Errorf("%w: %w", ErrEncodeFailure, err)
		}
		return name, false, nil
	}

	frames := make([]*image.NRGBA, 0, len(files))
	for _, f := range files {
		img, err := utils.ReadNRGBA(filepath.Join(dir, f))
		if err != nil {
			return "", false, fmt.Errorf("%w: %w", ErrEncodeFailure, err)
		}
		frames = append(frames, img)
	}

	name := strconv.Itoa(pose) + ".gif"
	if err := b.writeGIF(filepath.Join(dir, name), frames); err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrEncodeFailure, err)
	}
	for _, f := range files {
		_ = os.Remove(filepath.Join(dir, f))
	}
	return name, true, nil
}

// writeGIF encodes frames as an endlessly looping animation. Palette index 0
// is the transparency key and each frame clears to it before drawing.
func (b *Builder) writeGIF(path string, frames []*image.NRGBA) error {
	q := utils.NewQuantizer(frames, b.opts.PaletteSize, b.opts.PaletteMethod)
	anim := &gif.GIF{LoopCount: 0, Config: image.Config{ColorModel: q.Palette}}
	for _, f := range frames {
		anim.Config.Width = max(anim.Config.Width, f.Bounds().Max.X)
		anim.Config.Height = max(anim.Config.Height, f.Bounds().Max.Y)
		anim.Image = append(anim.Image, q.Paletted(f))
		anim.Delay = append(anim.Delay, b.opts.FrameDelay)
		anim.Disposal = append(anim.Disposal, gif.DisposalBackground)
	}

	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(out, anim); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
