// Package config loads CLI settings from the environment and optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	avatarbuilder "github.com/setanarut/avatarbuilder"
	"github.com/setanarut/avatarbuilder/utils"
)

// Config holds every AVATARBUILDER_* setting.
type Config struct {
	// AssetDir is the root holding penguin/, clothing/ and crumbs/.
	AssetDir     string `env:"AVATARBUILDER_ASSET_DIR" envDefault:"."`
	ExtractedDir string `env:"AVATARBUILDER_EXTRACTED_DIR" envDefault:"extracted"`
	OutputDir    string `env:"AVATARBUILDER_OUTPUT_DIR" envDefault:"output"`

	// Catalog tables; relative paths resolve against AssetDir.
	ItemsFile        string `env:"AVATARBUILDER_ITEMS_FILE" envDefault:"crumbs/items.json"`
	ColorsFile       string `env:"AVATARBUILDER_COLORS_FILE" envDefault:"crumbs/colors.json"`
	SecretFramesFile string `env:"AVATARBUILDER_SECRET_FRAMES_FILE" envDefault:"crumbs/secret_frames.json"`

	FrameDelay    int    `env:"AVATARBUILDER_FRAME_DELAY" envDefault:"4"`
	PaletteSize   int    `env:"AVATARBUILDER_PALETTE_SIZE" envDefault:"63"`
	PaletteMethod string `env:"AVATARBUILDER_PALETTE_METHOD" envDefault:"kmeans"`
	PaperPadding  int    `env:"AVATARBUILDER_PAPER_PADDING" envDefault:"80"`

	LogLevel string `env:"AVATARBUILDER_LOG_LEVEL" envDefault:"info"`

	// RedisURL enables event publishing when set.
	RedisURL     string `env:"AVATARBUILDER_REDIS_URL"`
	RedisChannel string `env:"AVATARBUILDER_REDIS_CHANNEL" envDefault:"avatarbuilder"`

	// OTelEndpoint enables OTLP/HTTP trace export when set.
	OTelEndpoint string `env:"AVATARBUILDER_OTEL_ENDPOINT"`
}

// Load reads envFiles (missing files are skipped) and then parses the
// environment. Variables already set in the process win over file values.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("load env file %q: %w", f, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Path resolves p against AssetDir unless it is absolute.
func (c Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.AssetDir, p)
}

// Options maps the config onto builder options.
func (c Config) Options() avatarbuilder.Options {
	opts := avatarbuilder.DefaultOptions()
	opts.AssetDir = c.AssetDir
	opts.ExtractedDir = c.ExtractedDir
	opts.OutputDir = c.OutputDir
	opts.FrameDelay = c.FrameDelay
	opts.PaletteSize = c.PaletteSize
	opts.PaletteMethod = utils.ParsePaletteMethod(c.PaletteMethod)
	opts.PaperPadding = c.PaperPadding
	return opts
}

// LoadCatalog reads the catalog tables named by the config. A missing secret
// frames table leaves poses 25 and 26 unredirected.
func (c Config) LoadCatalog() (*avatarbuilder.Catalog, error) {
	secret := c.Path(c.SecretFramesFile)
	if _, err := os.Stat(secret); errors.Is(err, fs.ErrNotExist) {
		secret = ""
	}
	return avatarbuilder.LoadCatalog(c.Path(c.ItemsFile), c.Path(c.ColorsFile), secret)
}
