package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/setanarut/avatarbuilder/atlas"
)

func newUnpackCommand() *cobra.Command {
	var opt atlas.Options
	cmd := &cobra.Command{
		Use:   "unpack [manifest]",
		Short: "Extract the frames of one atlas into a directory",
		Long: "Extract the frames of one atlas. With a manifest argument the JSON manifest in --source is used; " +
			"otherwise --texture is sliced into a grid of --cell-width x --cell-height cells named col_row.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := LoggerFromContext(cmd.Context())
			if len(args) == 1 {
				opt.Manifest = args[0]
			}
			if opt.OutputDir == "" {
				name := opt.Manifest
				if name == "" {
					name = opt.Texture
				}
				opt.OutputDir = filepath.Join("output", strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
			}

			res, err := atlas.NewUnpacker(logger).Unpack(cmd.Context(), opt)
			if err != nil {
				return err
			}
			if res.Skipped {
				logger.Info("output already exists, nothing to do", "dir", opt.OutputDir)
				return nil
			}
			logger.Info("atlas unpacked", "dir", opt.OutputDir, "frames", res.Frames, "failed", res.Failed)
			fmt.Fprintln(cmd.OutOrStdout(), opt.OutputDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&opt.SourceDir, "source", ".", "Directory holding the manifest and textures")
	cmd.Flags().StringVar(&opt.OutputDir, "out", "", "Destination directory (default output/<name>)")
	cmd.Flags().StringVar(&opt.Texture, "texture", "", "Texture to slice when no manifest is given")
	cmd.Flags().IntVar(&opt.CellWidth, "cell-width", 0, "Grid cell width in pixels")
	cmd.Flags().IntVar(&opt.CellHeight, "cell-height", 0, "Grid cell height in pixels")
	return cmd
}
