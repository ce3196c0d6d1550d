package main

import (
	"path/filepath"

	"github.com/binzume/pmxutil/converter"
	"github.com/binzume/pmxutil/mmd"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newConvertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "convert input.pmx [output.pmx]",
		Short: "Re-encode a PMX model (index widths and version are recomputed)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			output := defaultOutputFile(input, ".pmx")
			if len(args) > 1 {
				output = args[1]
			}
			enc, err := a.cfg.Output.TextEncoding()
			if err != nil {
				return err
			}

			doc, err := loadDocument(input, a.log)
			if err != nil {
				return err
			}
			if err := saveAsPmx(doc, output, mmd.WithEncoding(enc), mmd.WithLogger(a.log)); err != nil {
				return err
			}
			a.log.Info("saved", zap.String("file", output), zap.Stringer("encoding", enc))
			return nil
		},
	}
}

func newGLTFCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "gltf input.pmx [output.glb]",
		Short: "Export a PMX model as binary glTF",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			output := defaultOutputFile(input, ".glb")
			if len(args) > 1 {
				output = args[1]
			}

			doc, err := loadDocument(input, a.log)
			if err != nil {
				return err
			}
			opt := &converter.PMXToGLTFOption{
				Scale:                  a.cfg.GLTF.Scale,
				DoubleSidedAll:         a.cfg.GLTF.DoubleSidedAll,
				ForceUnlit:             a.cfg.GLTF.ForceUnlit,
				EmbedTextures:          a.cfg.GLTF.EmbedTextures,
				TextureDir:             filepath.Dir(input),
				TextureResolutionLimit: a.cfg.GLTF.TextureResolutionLimit,
				Logger:                 a.log,
			}
			if err := converter.PMXToGLB(doc, output, opt); err != nil {
				return err
			}
			a.log.Info("saved", zap.String("file", output))
			return nil
		},
	}
}
