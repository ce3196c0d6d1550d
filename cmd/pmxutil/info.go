package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/binzume/pmxutil/internal/config"
	"github.com/binzume/pmxutil/mmd"
	"github.com/spf13/cobra"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info input.pmx",
		Short: "Print the header and section sizes of a PMX model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return printInfo(cmd.OutOrStdout(), bufio.NewReader(f), mmd.WithLogger(a.log))
		},
	}
}

// printInfo walks the stages one by one so that a broken file still
// reports every section before the failing one.
func printInfo(w io.Writer, r io.Reader, opts ...mmd.Option) error {
	s, err := mmd.Open(r, opts...)
	if err != nil {
		return err
	}
	h := s.Header()
	fmt.Fprintf(w, "version:  %.1f\n", h.Version)
	fmt.Fprintf(w, "encoding: %v\n", h.Encoding)
	fmt.Fprintf(w, "ext uvs:  %d\n", h.ExtUVCount)
	fmt.Fprintf(w, "index sizes: vertex=%d texture=%d material=%d bone=%d morph=%d rigid=%d\n",
		h.VertexIndexSize, h.TextureIndexSize, h.MaterialIndexSize, h.BoneIndexSize, h.MorphIndexSize, h.RigidIndexSize)

	info, vs, err := s.Read()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "name:     %s\n", info.Name)
	if info.NameEn != "" {
		fmt.Fprintf(w, "name(en): %s\n", info.NameEn)
	}

	count := func(name string, n int) {
		fmt.Fprintf(w, "%-13s %d\n", name+":", n)
	}
	v, fs, err := vs.Read()
	if err != nil {
		return err
	}
	count("vertices", len(v))
	faces, ts, err := fs.Read()
	if err != nil {
		return err
	}
	count("faces", len(faces))
	tex, ms, err := ts.Read()
	if err != nil {
		return err
	}
	count("textures", len(tex))
	mats, bs, err := ms.Read()
	if err != nil {
		return err
	}
	count("materials", len(mats))
	bones, mps, err := bs.Read()
	if err != nil {
		return err
	}
	count("bones", len(bones))
	morphs, frs, err := mps.Read()
	if err != nil {
		return err
	}
	count("morphs", len(morphs))
	frames, rs, err := frs.Read()
	if err != nil {
		return err
	}
	count("frames", len(frames))
	rigids, js, err := rs.Read()
	if err != nil {
		return err
	}
	count("rigid bodies", len(rigids))
	joints, sbs, err := js.Read()
	if err != nil {
		return err
	}
	count("joints", len(joints))
	if sbs != nil {
		soft, err := sbs.Read()
		if err != nil {
			return err
		}
		count("soft bodies", len(soft))
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "pmxutil.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Default().SaveTo(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	})
	return cmd
}
