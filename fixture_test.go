package avatarbuilder

import (
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/setanarut/avatarbuilder/atlas"
	"github.com/setanarut/avatarbuilder/utils"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// fixture is a throwaway asset tree:
//
//	penguin       body/1_1 body/1_2 body/1_3 body/2 penguin/1_1 penguin/1_2
//	actions/101   body/101_1
//	item 413      1_1 1_2 2 101_1 (left column only)
//	item 221      no atlas
type fixture struct {
	root    string
	catalog *Catalog
	opts    Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	penguin := filepath.Join(root, "penguin")

	writeSheet(t, penguin, "penguin", func(x, y int) color.NRGBA { return white },
		"body/1_1", "body/1_2", "body/1_3", "body/2")
	writeSheet(t, penguin, "shading", func(x, y int) color.NRGBA { return color.NRGBA{} },
		"penguin/1_1", "penguin/1_2")
	mergeManifests(t, penguin, "penguin", "shading")
	writeSheet(t, filepath.Join(penguin, "actions"), "101", func(x, y int) color.NRGBA { return white },
		"body/101_1")
	writeSheet(t, filepath.Join(root, "clothing", "sprites"), "413", func(x, y int) color.NRGBA {
		if x%2 == 0 {
			return green
		}
		return color.NRGBA{}
	}, "1_1", "1_2", "2", "101_1")

	writeImage(t, filepath.Join(penguin, "body.png"), 2, 2, white)
	writeImage(t, filepath.Join(penguin, "paperdoll.png"), 1, 1, color.NRGBA{A: 255})
	writeImage(t, filepath.Join(root, "clothing", "paper", "413.png"), 1, 1, green)

	catalog := NewCatalog(
		[]Item{
			{ID: 1, Slot: SlotColor},
			{ID: 4, Slot: SlotColor},
			{ID: 413, Slot: SlotHead},
			{ID: 221, Slot: SlotBody},
			{ID: 9000, Slot: SlotPhoto},
		},
		map[int]string{1: "#003366", 4: "#ff0000"},
		map[int][]Rule{
			25: {{Conditions: map[Slot]string{SlotHead: "413"}, Frame: 101}},
		},
	)

	opts := DefaultOptions()
	opts.AssetDir = root
	opts.ExtractedDir = filepath.Join(root, "extracted")
	opts.OutputDir = filepath.Join(root, "output")
	opts.PaperPadding = 1
	return &fixture{root: root, catalog: catalog, opts: opts}
}

func (f *fixture) path(elem ...string) string {
	return filepath.Join(append([]string{f.root}, elem...)...)
}

// writeSheet packs one 2x2 cell per frame name side by side and writes the
// texture and its manifest as dir/name.png and dir/name.json.
func writeSheet(t *testing.T, dir, name string, px func(x, y int) color.NRGBA, frames ...string) {
	t.Helper()
	tex := image.NewNRGBA(image.Rect(0, 0, 2*len(frames), 2))
	m := atlas.Manifest{Textures: []atlas.Texture{{Image: name + ".png"}}}
	for i, fn := range frames {
		for y := range 2 {
			for x := range 2 {
				tex.SetNRGBA(2*i+x, y, px(x, y))
			}
		}
		m.Textures[0].Frames = append(m.Textures[0].Frames, atlas.Frame{
			Filename:         fn,
			Frame:            atlas.Rect{X: 2 * i, W: 2, H: 2},
			SpriteSourceSize: atlas.Rect{W: 2, H: 2},
			SourceSize:       atlas.Size{W: 2, H: 2},
		})
	}
	require.NoError(t, utils.SaveImage(tex, filepath.Join(dir, name+".png")))
	writeManifest(t, filepath.Join(dir, name+".json"), m)
}

// mergeManifests folds the textures of the extra manifests into dst.
func mergeManifests(t *testing.T, dir, dst string, extra ...string) {
	t.Helper()
	m, err := atlas.ReadManifest(filepath.Join(dir, dst+".json"))
	require.NoError(t, err)
	for _, name := range extra {
		e, err := atlas.ReadManifest(filepath.Join(dir, name+".json"))
		require.NoError(t, err)
		m.Textures = append(m.Textures, e.Textures...)
	}
	writeManifest(t, filepath.Join(dir, dst+".json"), *m)
}

func writeManifest(t *testing.T, path string, m atlas.Manifest) {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func writeImage(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	require.NoError(t, utils.SaveImage(img, path))
}

func readPixel(t *testing.T, path string, x, y int) color.NRGBA {
	t.Helper()
	img, err := utils.ReadNRGBA(path)
	require.NoError(t, err)
	return img.NRGBAAt(x, y)
}
