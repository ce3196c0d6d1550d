package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/binzume/pmxutil/mmd"
	"go.uber.org/zap"
)

func defaultOutputFile(input, ext string) string {
	base := input[0 : len(input)-len(filepath.Ext(input))]
	if strings.EqualFold(filepath.Ext(input), ext) {
		return base + ".out" + ext
	}
	return base + ext
}

func loadDocument(input string, log *zap.Logger) (*mmd.Document, error) {
	r, err := os.Open(input)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc, err := mmd.Parse(r, mmd.WithLogger(log))
	if err != nil {
		return nil, err
	}
	log.Info("loaded",
		zap.String("file", input),
		zap.String("name", doc.Name),
		zap.Float32("version", doc.Header.Version),
		zap.Stringer("encoding", doc.Header.Encoding))
	return doc, nil
}

// saveAsPmx writes to a temporary file next to path and renames it,
// so a failed write never leaves a truncated model behind.
func saveAsPmx(doc *mmd.Document, path string, opts ...mmd.Option) error {
	w, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmp := w.Name()
	defer os.Remove(tmp)

	if err := mmd.WritePMX(doc, w, opts...); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
