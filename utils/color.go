package utils

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

// ParseHexColor parses "#rrggbb", "rrggbb", "#rgb" or "rgb" into an opaque color.
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if len(s) != 4 && len(s) != 7 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	c, err := colorful.Hex(strings.ToLower(s))
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// HexColor formats c as lowercase rrggbb without the leading '#'.
func HexColor(c color.NRGBA) string {
	return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
}

// Tint returns a copy of img whose RGB channels are all set to c.
// Alpha is copied untouched so the silhouette survives as a mask.
// A nil color yields a plain copy.
func Tint(img *image.NRGBA, c *color.NRGBA) *image.NRGBA {
	out := &image.NRGBA{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(out.Pix, img.Pix)
	if c == nil {
		return out
	}
	for i := 0; i+3 < len(out.Pix); i += 4 {
		out.Pix[i] = c.R
		out.Pix[i+1] = c.G
		out.Pix[i+2] = c.B
	}
	return out
}

// Pad grows img by the given margins, filling them with transparent pixels.
// Pixels of img are copied byte for byte.
func Pad(img *image.NRGBA, top, right, bottom, left int) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx()+left+right, b.Dy()+top+bottom))
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):img.PixOffset(b.Max.X, b.Min.Y+y)]
		copy(out.Pix[out.PixOffset(left, top+y):], src)
	}
	return out
}

// Over composites src on top of dst with its top-left corner at pt.
func Over(dst *image.NRGBA, src image.Image, pt image.Point) {
	sb := src.Bounds()
	r := image.Rectangle{Min: pt, Max: pt.Add(sb.Size())}
	draw.Draw(dst, r, src, sb.Min, draw.Over)
}

// OverCentered composites src centred on dst.
func OverCentered(dst *image.NRGBA, src image.Image) {
	db, sb := dst.Bounds(), src.Bounds()
	pt := image.Pt(
		db.Min.X+(db.Dx()-sb.Dx())/2,
		db.Min.Y+(db.Dy()-sb.Dy())/2,
	)
	Over(dst, src, pt)
}
