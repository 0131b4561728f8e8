package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setanarut/avatarbuilder/utils"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.AssetDir)
	assert.Equal(t, "extracted", cfg.ExtractedDir)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, 4, cfg.FrameDelay)
	assert.Equal(t, 63, cfg.PaletteSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AVATARBUILDER_ASSET_DIR", "/srv/media")
	t.Setenv("AVATARBUILDER_FRAME_DELAY", "8")
	t.Setenv("AVATARBUILDER_PALETTE_METHOD", "dominantcolor")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/media", cfg.AssetDir)
	opts := cfg.Options()
	assert.Equal(t, 8, opts.FrameDelay)
	assert.Equal(t, utils.PaletteMethodDominantColor, opts.PaletteMethod)
	assert.Equal(t, "/srv/media/crumbs/items.json", cfg.Path(cfg.ItemsFile))
	assert.Equal(t, "/abs/colors.json", cfg.Path("/abs/colors.json"))
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("AVATARBUILDER_OUTPUT_DIR", "from-process")
	// Registered for cleanup so the file value does not leak into other tests.
	t.Setenv("AVATARBUILDER_PAPER_PADDING", "")
	require.NoError(t, os.Unsetenv("AVATARBUILDER_PAPER_PADDING"))
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("AVATARBUILDER_OUTPUT_DIR=from-file\nAVATARBUILDER_PAPER_PADDING=12\n"), 0o644))

	cfg, err := Load(filepath.Join(dir, "missing.env"), path)
	require.NoError(t, err)

	assert.Equal(t, "from-process", cfg.OutputDir)
	assert.Equal(t, 12, cfg.PaperPadding)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("AVATARBUILDER_PALETTE_SIZE", "many")

	_, err := Load()
	assert.ErrorContains(t, err, "parse env")
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	crumbs := filepath.Join(dir, "crumbs")
	require.NoError(t, os.MkdirAll(crumbs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(crumbs, "items.json"), []byte(`{"413": {"type": "head"}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(crumbs, "colors.json"), []byte(`{"1": "#112233"}`), 0o644))
	t.Setenv("AVATARBUILDER_ASSET_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)
	catalog, err := cfg.LoadCatalog()
	require.NoError(t, err)

	m, err := catalog.Resolve("413", "")
	require.NoError(t, err)
	assert.Equal(t, "c112233_413", m.Layers().Fingerprint())
	assert.Empty(t, catalog.Rules(25))
}
