// Package atlas extracts individual frames from packed sprite sheets.
//
// A sheet is described either by a TexturePacker-style JSON manifest or, when
// no manifest exists, by a uniform cell size that slices it into a grid.
package atlas

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"
)

var (
	ErrManifestMissing = errors.New("atlas manifest missing")
	ErrTextureMissing  = errors.New("atlas texture missing")
	ErrFrameBounds     = errors.New("frame outside texture")
)

// Manifest is the decoded form of an atlas JSON file.
type Manifest struct {
	Textures []Texture `json:"textures"`
}

// Texture is one packed source image and the frames cut from it.
type Texture struct {
	Image  string  `json:"image"`
	Frames []Frame `json:"frames"`
}

// Frame locates one sprite inside a texture.
//
// Frame is the crop rectangle within the texture. SpriteSourceSize is where
// that crop sits inside the untrimmed canvas, and SourceSize is the size of
// that canvas.
type Frame struct {
	Filename         string `json:"filename"`
	Frame            Rect   `json:"frame"`
	SpriteSourceSize Rect   `json:"spriteSourceSize"`
	SourceSize       Size   `json:"sourceSize"`
}

type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

// ManifestName appends ".json" when name has no extension of its own.
func ManifestName(name string) string {
	if strings.HasSuffix(name, ".json") {
		return name
	}
	return name + ".json"
}

// ReadManifest loads and decodes the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestMissing, path)
		}
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}

// GridFrames slices bounds into cellW x cellH cells named "col_row".
// Partial cells at the right and bottom edges are dropped.
func GridFrames(bounds image.Rectangle, cellW, cellH int) []Frame {
	if cellW <= 0 || cellH <= 0 {
		return nil
	}
	cols := bounds.Dx() / cellW
	rows := bounds.Dy() / cellH
	frames := make([]Frame, 0, cols*rows)
	for y := range rows {
		for x := range cols {
			frames = append(frames, Frame{
				Filename:         fmt.Sprintf("%d_%d", x, y),
				Frame:            Rect{X: x * cellW, Y: y * cellH, W: cellW, H: cellH},
				SpriteSourceSize: Rect{W: cellW, H: cellH},
				SourceSize:       Size{W: cellW, H: cellH},
			})
		}
	}
	return frames
}

// Extract crops f out of src and pads it back to its untrimmed canvas.
// Crop pixels are copied byte for byte; padding is fully transparent.
func Extract(src *image.NRGBA, f Frame) (*image.NRGBA, error) {
	sb := src.Bounds()
	crop := image.Rect(f.Frame.X, f.Frame.Y, f.Frame.X+f.Frame.W, f.Frame.Y+f.Frame.H).Add(sb.Min)
	if crop.Empty() || !crop.In(sb) {
		return nil, fmt.Errorf("%w: %s %v not in %v", ErrFrameBounds, f.Filename, crop, sb)
	}

	canvas := image.Pt(f.SourceSize.W, f.SourceSize.H)
	if canvas.X <= 0 || canvas.Y <= 0 {
		canvas = image.Pt(f.SpriteSourceSize.X+f.Frame.W, f.SpriteSourceSize.Y+f.Frame.H)
	}
	dst := image.NewNRGBA(image.Rectangle{Max: canvas})

	off := image.Pt(f.SpriteSourceSize.X, f.SpriteSourceSize.Y)
	dr := image.Rect(0, 0, f.Frame.W, f.Frame.H).Add(off).Intersect(dst.Bounds())
	if dr.Empty() {
		return dst, nil
	}
	for y := dr.Min.Y; y < dr.Max.Y; y++ {
		sx := crop.Min.X + dr.Min.X - off.X
		sy := crop.Min.Y + y - off.Y
		row := src.Pix[src.PixOffset(sx, sy):src.PixOffset(sx+dr.Dx(), sy)]
		copy(dst.Pix[dst.PixOffset(dr.Min.X, y):], row)
	}
	return dst, nil
}
