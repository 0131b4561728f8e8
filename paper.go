package avatarbuilder

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"

	"github.com/setanarut/avatarbuilder/utils"
)

// paperdollPath is the generated base-color paperdoll for c. It is shared
// by every fingerprint using that color.
func (b *Builder) paperdollPath(c color.NRGBA) string {
	return filepath.Join(b.penguinDir(), "paper", utils.HexColor(c)+".png")
}

// ensurePaperdoll generates the paperdoll for c unless it already exists:
// the body silhouette tinted to c, the paperdoll line art on top, padded
// with a transparent margin.
func (b *Builder) ensurePaperdoll(c color.NRGBA) (string, error) {
	path := b.paperdollPath(c)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	body, err := utils.ReadNRGBA(filepath.Join(b.penguinDir(), "body.png"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAssetMissing, err)
	}
	doll := utils.Tint(body, &c)
	lines, err := utils.ReadImage(filepath.Join(b.penguinDir(), "paperdoll.png"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAssetMissing, err)
	}
	utils.OverCentered(doll, lines)

	p := b.opts.PaperPadding
	if err := utils.SaveImageAtomic(utils.Pad(doll, p, p, p, p), path); err != nil {
		return "", fmt.Errorf("write paperdoll: %w", err)
	}
	b.logger.Debug("paperdoll generated", "color", utils.HexColor(c))
	return path, nil
}

// composePaper writes "paper.png", the still paperdoll view of the stack:
// the base-color paperdoll with each item's paper art centred on top.
// Items without paper art are left out.
func (b *Builder) composePaper(dir string, stack Stack) error {
	base, ok := stack.Base()
	if !ok {
		return errors.New("stack has no base color")
	}
	doll, err := utils.ReadNRGBA(b.paperdollPath(base))
	if err != nil {
		return err
	}
	canvas := utils.Tint(doll, nil)
	for _, l := range stack[1:] {
		id, ok := l.Asset()
		if !ok {
			continue
		}
		art, err := b.readPaperItem(id)
		if err != nil {
			b.logger.Debug("paper art missing", "asset", id, "error", err)
			continue
		}
		utils.OverCentered(canvas, art)
	}
	return utils.SaveImage(canvas, filepath.Join(dir, "paper.png"))
}

func (b *Builder) readPaperItem(id int) (image.Image, error) {
	var firstErr error
	for _, ext := range []string{".webp", ".png"} {
		img, err := utils.ReadImage(filepath.Join(b.opts.AssetDir, "clothing", "paper", strconv.Itoa(id)+ext))
		if err == nil {
			return img, nil
		}
		if firstErr == nil || !errors.Is(err, os.ErrNotExist) {
			firstErr = err
		}
	}
	return nil, firstErr
}
