package avatarbuilder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadCatalogJSON(t *testing.T) {
	dir := t.TempDir()
	items := writeFile(t, dir, "items.json", `{
		"1": {"type": "color"},
		"4": {"type": "color"},
		"413": {"type": "head"},
		"221": {"type": "body"},
		"9000": {"type": "background"},
		"x": {"type": "head"},
		"77": {"type": "award"}
	}`)
	colors := writeFile(t, dir, "colors.json", `{"1": "#003366", "4": "#FF0000"}`)
	secret := writeFile(t, dir, "secret_frames.json", `{
		"25": [
			{"head": 413, "body": 0, "secret_frame": 101},
			{"color": 4, "secret_frame": "102"}
		]
	}`)

	c, err := LoadCatalog(items, colors, secret)
	require.NoError(t, err)

	require.Len(t, c.Rules(25), 2)
	assert.Equal(t, Rule{Conditions: map[Slot]string{SlotHead: "413", SlotBody: ""}, Frame: 101}, c.Rules(25)[0])
	assert.Equal(t, Rule{Conditions: map[Slot]string{SlotColor: "ff0000"}, Frame: 102}, c.Rules(25)[1])
	assert.Empty(t, c.Rules(26))

	m, err := c.Resolve("4,413,9000", "")
	require.NoError(t, err)
	assert.Equal(t, 9000, m.Transient.Photo)
	assert.Equal(t, 101, SelectFrame(25, c.Rules(25), m))

	m, err = c.Resolve("4,413,221", "")
	require.NoError(t, err)
	assert.Equal(t, 102, SelectFrame(25, c.Rules(25), m))

	m, err = c.Resolve("77", "")
	require.NoError(t, err)
	assert.Equal(t, "c003366", m.Layers().Fingerprint())
}

func TestLoadCatalogYAML(t *testing.T) {
	dir := t.TempDir()
	items := writeFile(t, dir, "items.yaml", `
"4": {type: color}
"413": {type: head}
`)
	colors := writeFile(t, dir, "colors.yml", `
"4": "#ff0000"
`)
	secret := writeFile(t, dir, "secret_frames.yaml", `
"26":
  - head: 413
    color: "#FF0000"
    secret_frame: 110
`)

	c, err := LoadCatalog(items, colors, secret)
	require.NoError(t, err)

	require.Len(t, c.Rules(26), 1)
	assert.Equal(t, Rule{Conditions: map[Slot]string{SlotHead: "413", SlotColor: "ff0000"}, Frame: 110}, c.Rules(26)[0])

	m, err := c.Resolve("4,413", "")
	require.NoError(t, err)
	assert.Equal(t, 110, SelectFrame(26, c.Rules(26), m))
}

func TestLoadCatalogWithoutSecretFrames(t *testing.T) {
	dir := t.TempDir()
	items := writeFile(t, dir, "items.json", `{"413": {"type": "head"}}`)
	colors := writeFile(t, dir, "colors.json", `{}`)

	c, err := LoadCatalog(items, colors, "")
	require.NoError(t, err)
	assert.Empty(t, c.Rules(25))
}

func TestLoadCatalogErrors(t *testing.T) {
	dir := t.TempDir()
	items := writeFile(t, dir, "items.json", `{}`)
	colors := writeFile(t, dir, "colors.json", `{}`)

	_, err := LoadCatalog(filepath.Join(dir, "missing.json"), colors, "")
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := writeFile(t, dir, "bad.json", `{"25": [{"head": 413}]}`)
	_, err = LoadCatalog(items, colors, bad)
	assert.ErrorContains(t, err, "missing secret_frame")

	unknown := writeFile(t, dir, "unknown.json", `{"25": [{"tail": 1, "secret_frame": 101}]}`)
	_, err = LoadCatalog(items, colors, unknown)
	assert.ErrorContains(t, err, `unknown slot "tail"`)

	badKey := writeFile(t, dir, "badkey.json", `{"x": [{"head": 1, "secret_frame": 101}]}`)
	_, err = LoadCatalog(items, colors, badKey)
	assert.ErrorContains(t, err, "pose key")
}
