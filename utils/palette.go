package utils

import (
	"image"
	"log/slog"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// PaletteMethod selects how animation palettes are reduced.
type PaletteMethod int

const (
	PaletteMethodKMeans PaletteMethod = iota
	PaletteMethodDominantColor
)

// ParsePaletteMethod maps a config value onto a PaletteMethod.
// Unknown names fall back to k-means.
func ParsePaletteMethod(name string) PaletteMethod {
	if name == PaletteMethodDominantColor.String() {
		return PaletteMethodDominantColor
	}
	return PaletteMethodKMeans
}

func (m PaletteMethod) String() string {
	switch m {
	case PaletteMethodDominantColor:
		return "dominantcolor"
	default:
		return "kmeans"
	}
}

// kmeansSampleLimit caps the pixels fed to k-means per palette.
const kmeansSampleLimit = 12000

// swatch is a palette candidate and how much of the image it covers.
type swatch struct {
	col    colorful.Color
	lab    [3]float64
	weight float64
}

func newSwatch(c colorful.Color, weight float64) swatch {
	c = c.Clamped()
	return swatch{col: c, lab: labKey(c), weight: max(weight, 1e-6)}
}

// ExtractPalette reduces the opaque pixels of img to at most k colors.
// K-means falls back to dominant colors when clustering yields nothing.
func ExtractPalette(img image.Image, k int, method PaletteMethod) []colorful.Color {
	if k <= 0 {
		return nil
	}
	if method == PaletteMethodKMeans {
		if p := pickDiverse(kmeansSwatches(img, k), k); len(p) > 0 {
			return p
		}
		slog.Warn("palette: kmeans found no clusters, using dominant colors")
	}
	return pickDiverse(dominantSwatches(img, k), k)
}

// SortPaletteByBrightness orders colors from darkest to brightest by Lab lightness.
func SortPaletteByBrightness(palette []colorful.Color) {
	slices.SortStableFunc(palette, func(a, b colorful.Color) int {
		la, _, _ := a.Lab()
		lb, _, _ := b.Lab()
		switch {
		case la < lb:
			return -1
		case la > lb:
			return 1
		}
		return 0
	})
}

func dominantSwatches(img image.Image, k int) []swatch {
	found := dominantcolor.FindWeight(img, max(24, 2*k))
	out := make([]swatch, 0, len(found))
	for _, f := range found {
		c, _ := colorful.MakeColor(f.RGBA)
		out = append(out, newSwatch(c, f.Weight))
	}
	if len(out) == 0 {
		out = append(out, newSwatch(colorful.Color{R: 0.5, G: 0.5, B: 0.5}, 1))
	}
	return out
}

// kmeansSwatches clusters a subsample of the opaque pixels into roughly 2k
// groups, weighted by population.
func kmeansSwatches(img image.Image, k int) []swatch {
	b := img.Bounds()
	area := b.Dx() * b.Dy()
	if area == 0 {
		return nil
	}
	step := 1
	if area > kmeansSampleLimit {
		step = int(math.Sqrt(float64(area)/kmeansSampleLimit)) + 1
	}

	var obs clusters.Observations
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, a := img.At(x, y).RGBA()
			if a < 0x8000 {
				continue
			}
			// Un-premultiply so antialiased edges keep their hue.
			fa := float64(a)
			obs = append(obs, clusters.Coordinates{float64(r) / fa, float64(g) / fa, float64(bl) / fa})
		}
	}
	if len(obs) == 0 {
		return nil
	}

	groups, err := kmeans.New().Partition(obs, min(max(2*k, k+2), len(obs)))
	if err != nil {
		return nil
	}
	out := make([]swatch, 0, len(groups))
	for _, g := range groups {
		if len(g.Observations) == 0 || len(g.Center) < 3 {
			continue
		}
		c := colorful.Color{R: g.Center[0], G: g.Center[1], B: g.Center[2]}
		out = append(out, newSwatch(c, float64(len(g.Observations))))
	}
	return out
}

// pickDiverse selects up to k swatches by farthest-point sampling in Lab,
// starting from the heaviest one. Distances are scaled by coverage so a
// rare outlier does not beat a common tone that is almost as far away.
func pickDiverse(cands []swatch, k int) []colorful.Color {
	if len(cands) == 0 {
		return nil
	}
	k = min(k, len(cands))

	heaviest := 0
	for i, c := range cands {
		if c.weight > cands[heaviest].weight {
			heaviest = i
		}
	}
	maxW := cands[heaviest].weight

	// nearest[i] is the distance from cands[i] to the closest pick so far;
	// -1 marks a picked swatch.
	nearest := make([]float64, len(cands))
	for i := range nearest {
		nearest[i] = math.Inf(1)
	}
	out := make([]colorful.Color, 0, k)
	pick := heaviest
	for {
		out = append(out, cands[pick].col)
		nearest[pick] = -1
		if len(out) == k {
			return out
		}

		next, best := -1, -1.0
		for i, c := range cands {
			if nearest[i] < 0 {
				continue
			}
			nearest[i] = min(nearest[i], labDistance(c.lab, cands[pick].lab))
			score := nearest[i] * (0.55 + 0.45*math.Sqrt(c.weight/maxW))
			if score > best {
				next, best = i, score
			}
		}
		if next < 0 {
			return out
		}
		pick = next
	}
}

func labDistance(a, b [3]float64) float64 {
	d0, d1, d2 := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(d0*d0 + d1*d1 + d2*d2)
}
