package atlas

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setanarut/avatarbuilder/utils"
)

// texture returns a w x h sheet where every pixel encodes its own position.
func texture(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 7, A: uint8(100 + x)})
		}
	}
	return img
}

func writeAtlas(t *testing.T, dir, name string, tex *image.NRGBA, frames ...Frame) {
	t.Helper()
	require.NoError(t, utils.SaveImage(tex, filepath.Join(dir, name+".png")))
	m := Manifest{Textures: []Texture{{Image: name + ".png", Frames: frames}}}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), data, 0o644))
}

func TestExtractPadsTrimmedFrame(t *testing.T) {
	src := texture(10, 10)
	f := Frame{
		Filename:         "body/1_1",
		Frame:            Rect{X: 2, Y: 3, W: 4, H: 2},
		SpriteSourceSize: Rect{X: 1, Y: 5, W: 4, H: 2},
		SourceSize:       Size{W: 8, H: 9},
	}

	out, err := Extract(src, f)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 8, 9), out.Bounds())
	for y := range 9 {
		for x := range 8 {
			got := out.NRGBAAt(x, y)
			inside := x >= 1 && x < 5 && y >= 5 && y < 7
			if !inside {
				assert.Equal(t, color.NRGBA{}, got, "padding at %d,%d", x, y)
				continue
			}
			assert.Equal(t, src.NRGBAAt(x-1+2, y-5+3), got, "pixel at %d,%d", x, y)
		}
	}
}

func TestExtractRejectsOutOfBounds(t *testing.T) {
	_, err := Extract(texture(4, 4), Frame{Filename: "x", Frame: Rect{X: 2, Y: 2, W: 4, H: 4}})
	assert.ErrorIs(t, err, ErrFrameBounds)
}

func TestGridFrames(t *testing.T) {
	frames := GridFrames(image.Rect(0, 0, 25, 20), 10, 10)

	require.Len(t, frames, 4)
	assert.Equal(t, "0_0", frames[0].Filename)
	assert.Equal(t, "1_0", frames[1].Filename)
	assert.Equal(t, "0_1", frames[2].Filename)
	assert.Equal(t, Rect{X: 10, Y: 10, W: 10, H: 10}, frames[3].Frame)
	assert.Nil(t, GridFrames(image.Rect(0, 0, 10, 10), 0, 10))
}

func TestManifestName(t *testing.T) {
	assert.Equal(t, "penguin.json", ManifestName("penguin"))
	assert.Equal(t, "penguin.json", ManifestName("penguin.json"))
}

func TestUnpack(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "extracted", "413")
	frame := func(name string, x int) Frame {
		return Frame{
			Filename:         name,
			Frame:            Rect{X: x, W: 2, H: 2},
			SpriteSourceSize: Rect{W: 2, H: 2},
			SourceSize:       Size{W: 2, H: 2},
		}
	}
	writeAtlas(t, src, "413", texture(6, 2), frame("1_1", 0), frame("1_2", 2), frame("2", 4))

	u := NewUnpacker(nil)
	res, err := u.Unpack(context.Background(), Options{SourceDir: src, OutputDir: out, Manifest: "413"})
	require.NoError(t, err)
	assert.Equal(t, Result{Frames: 3}, res)

	for _, name := range []string{"1_1.png", "1_2.png", "2.png"} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	img, err := utils.ReadNRGBA(filepath.Join(out, "1_2.png"))
	require.NoError(t, err)
	assert.Equal(t, texture(6, 2).NRGBAAt(3, 1), img.NRGBAAt(1, 1))

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp directory is left behind")

	t.Run("existing output is skipped", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(out, "2.png")))

		res, err := u.Unpack(context.Background(), Options{SourceDir: src, OutputDir: out, Manifest: "413"})
		require.NoError(t, err)
		assert.True(t, res.Skipped)
		assert.NoFileExists(t, filepath.Join(out, "2.png"))
	})
}

func TestUnpackMissingManifest(t *testing.T) {
	out := filepath.Join(t.TempDir(), "missing")
	_, err := NewUnpacker(nil).Unpack(context.Background(), Options{SourceDir: t.TempDir(), OutputDir: out, Manifest: "nope"})

	assert.ErrorIs(t, err, ErrManifestMissing)
	assert.NoDirExists(t, out)
}

func TestUnpackMissingTexture(t *testing.T) {
	src := t.TempDir()
	data, err := json.Marshal(Manifest{Textures: []Texture{{Image: "gone.png", Frames: []Frame{{Filename: "1"}}}}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(src, "gone.json"), data, 0o644))

	out := filepath.Join(t.TempDir(), "gone")
	_, err = NewUnpacker(nil).Unpack(context.Background(), Options{SourceDir: src, OutputDir: out, Manifest: "gone"})

	assert.ErrorIs(t, err, ErrTextureMissing)
	assert.NoDirExists(t, out)
}

func TestUnpackGrid(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, utils.SaveImage(texture(4, 2), filepath.Join(src, "sheet.png")))
	out := filepath.Join(t.TempDir(), "sheet")

	u := NewUnpacker(nil)
	_, err := u.Unpack(context.Background(), Options{SourceDir: src, OutputDir: out, Texture: "sheet.png"})
	require.ErrorIs(t, err, ErrCellSize)

	res, err := u.Unpack(context.Background(), Options{SourceDir: src, OutputDir: out, Texture: "sheet.png", CellWidth: 2, CellHeight: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Frames)
	assert.FileExists(t, filepath.Join(out, "0_0.png"))
	assert.FileExists(t, filepath.Join(out, "1_0.png"))
}

func TestUnpackRejectsEscapingNames(t *testing.T) {
	src := t.TempDir()
	ok := Frame{Filename: "1", Frame: Rect{W: 1, H: 1}, SourceSize: Size{W: 1, H: 1}}
	bad := Frame{Filename: "../escape", Frame: Rect{W: 1, H: 1}, SourceSize: Size{W: 1, H: 1}}
	writeAtlas(t, src, "a", texture(1, 1), ok, bad)

	root := t.TempDir()
	res, err := NewUnpacker(nil).Unpack(context.Background(), Options{SourceDir: src, OutputDir: filepath.Join(root, "a"), Manifest: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Frames)
	assert.Equal(t, 1, res.Failed)
	assert.NoFileExists(t, filepath.Join(root, "escape.png"))
}

func TestUnpackCancelled(t *testing.T) {
	src := t.TempDir()
	writeAtlas(t, src, "a", texture(1, 1), Frame{Filename: "1", Frame: Rect{W: 1, H: 1}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := filepath.Join(t.TempDir(), "a")
	_, err := NewUnpacker(nil).Unpack(ctx, Options{SourceDir: src, OutputDir: out, Manifest: "a"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, out)
}
