package utils

import (
	"image"
	"image/color"
	"slices"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// TransparentIndex is the palette slot reserved for the GIF transparency key.
const TransparentIndex = 0

// alphaCutoff is the alpha below which a pixel maps to the transparency key.
const alphaCutoff = 128

// Quantizer maps NRGBA frames onto one shared GIF palette. Index 0 is fully
// transparent black; the rest come from the opaque pixels of the frames.
type Quantizer struct {
	Palette color.Palette

	tree  *kdtree.Tree
	index map[[3]float64]uint8
	memo  map[color.NRGBA]uint8
}

// NewQuantizer builds a palette of at most size opaque colors for frames.
// When the frames use no more than size distinct opaque colors the palette is
// exact; otherwise it is extracted with method.
func NewQuantizer(frames []*image.NRGBA, size int, method PaletteMethod) *Quantizer {
	size = max(1, min(size, 255))
	q := &Quantizer{
		Palette: color.Palette{color.NRGBA{}},
		index:   make(map[[3]float64]uint8),
		memo:    make(map[color.NRGBA]uint8),
	}

	distinct := opaqueColors(frames, size+1)
	var cols []colorful.Color
	if len(distinct) <= size {
		for _, c := range distinct {
			cols = append(cols, colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255})
		}
	} else {
		cols = ExtractPalette(montage(frames), size, method)
		SortPaletteByBrightness(cols)
	}
	if len(cols) == 0 {
		return q
	}

	points := make(kdtree.Points, 0, len(cols))
	for _, c := range cols {
		r, g, b := c.RGB255()
		q.Palette = append(q.Palette, color.NRGBA{R: r, G: g, B: b, A: 255})
		key := labKey(c)
		if _, dup := q.index[key]; dup {
			continue
		}
		q.index[key] = uint8(len(q.Palette) - 1)
		points = append(points, kdtree.Point(key[:]))
	}
	q.tree = kdtree.New(points, false)
	return q
}

// Paletted converts img into a paletted frame against q.Palette.
func (q *Quantizer) Paletted(img *image.NRGBA) *image.Paletted {
	b := img.Bounds()
	out := image.NewPaletted(b, q.Palette)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetColorIndex(x, y, q.indexOf(img.NRGBAAt(x, y)))
		}
	}
	return out
}

func (q *Quantizer) indexOf(c color.NRGBA) uint8 {
	if c.A < alphaCutoff || q.tree == nil {
		return TransparentIndex
	}
	c.A = 255
	if i, ok := q.memo[c]; ok {
		return i
	}
	key := labKey(colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255})
	nearest, _ := q.tree.Nearest(kdtree.Point(key[:]))
	p := nearest.(kdtree.Point)
	i := q.index[[3]float64{p[0], p[1], p[2]}]
	q.memo[c] = i
	return i
}

func labKey(c colorful.Color) [3]float64 {
	l, a, b := c.Lab()
	return [3]float64{l, a, b}
}

// opaqueColors collects distinct opaque colors, stopping once limit is reached.
// The result is sorted so exact palettes are deterministic.
func opaqueColors(frames []*image.NRGBA, limit int) []color.NRGBA {
	seen := make(map[color.NRGBA]struct{})
	for _, f := range frames {
		b := f.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := f.NRGBAAt(x, y)
				if c.A < alphaCutoff {
					continue
				}
				c.A = 255
				if _, ok := seen[c]; ok {
					continue
				}
				seen[c] = struct{}{}
				if len(seen) >= limit {
					return sortedColors(seen)
				}
			}
		}
	}
	return sortedColors(seen)
}

func sortedColors(set map[color.NRGBA]struct{}) []color.NRGBA {
	out := make([]color.NRGBA, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b color.NRGBA) int {
		ka := uint32(a.R)<<16 | uint32(a.G)<<8 | uint32(a.B)
		kb := uint32(b.R)<<16 | uint32(b.G)<<8 | uint32(b.B)
		return int(ka) - int(kb)
	})
	return out
}

// montage stacks frames vertically so palette extraction sees every frame.
func montage(frames []*image.NRGBA) *image.NRGBA {
	w, h := 0, 0
	for _, f := range frames {
		w = max(w, f.Bounds().Dx())
		h += f.Bounds().Dy()
	}
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	y := 0
	for _, f := range frames {
		Over(out, f, image.Pt(0, y))
		y += f.Bounds().Dy()
	}
	return out
}
