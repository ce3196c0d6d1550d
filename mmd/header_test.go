package mmd

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadHeader(t *testing.T) {
	var f fixture
	f.header(Version21, 0, 2, 4, 1, 2, 2, 1, 4)
	cfg, err := readHeader(&baseParser{r: &f})
	if err != nil {
		t.Fatal(err)
	}
	want := FormatConfig{
		Version:           Version21,
		Encoding:          UTF16LE,
		ExtUVCount:        2,
		VertexIndexSize:   4,
		TextureIndexSize:  1,
		MaterialIndexSize: 2,
		BoneIndexSize:     2,
		MorphIndexSize:    1,
		RigidIndexSize:    4,
	}
	if *cfg != want {
		t.Errorf("got %+v, want %+v", *cfg, want)
	}
	if !cfg.HasSoftBodies() {
		t.Error("2.1 should have soft bodies")
	}
}

func TestReadHeaderLongInfo(t *testing.T) {
	var f fixture
	f.header(Version20, 1, 0, 1, 1, 1, 2, 1, 1, 0xaa, 0xbb)
	f.u8(0x42)
	p := &baseParser{r: &f}
	cfg, err := readHeader(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BoneIndexSize != 2 || cfg.HasSoftBodies() {
		t.Errorf("unexpected config %+v", cfg)
	}
	if b := p.readUint8(); b != 0x42 {
		t.Errorf("extra info bytes should be skipped, next byte is %x", b)
	}
}

func TestReadHeaderErrors(t *testing.T) {
	valid := []byte{0, 0, 1, 1, 1, 1, 1, 1}
	cases := []struct {
		name  string
		build func(f *fixture)
		want  error
	}{
		{"bad magic", func(f *fixture) {
			f.WriteString("PMD ")
			f.f32(2.0)
		}, ErrBadMagic},
		{"version 1.0", func(f *fixture) { f.header(1.0, valid...) }, ErrUnsupportedVersion},
		{"version 2.2", func(f *fixture) { f.header(2.2, valid...) }, ErrUnsupportedVersion},
		{"short info", func(f *fixture) { f.header(Version20, 0, 0, 1, 1, 1, 1, 1) }, ErrInvalidHeader},
		{"encoding", func(f *fixture) { f.header(Version20, 2, 0, 1, 1, 1, 1, 1, 1) }, ErrInvalidHeader},
		{"uv count", func(f *fixture) { f.header(Version20, 0, 5, 1, 1, 1, 1, 1, 1) }, ErrInvalidHeader},
		{"index size 3", func(f *fixture) { f.header(Version20, 0, 0, 1, 1, 3, 1, 1, 1) }, ErrInvalidHeader},
		{"rigid index size 0", func(f *fixture) { f.header(Version21, 0, 0, 1, 1, 1, 1, 1, 0) }, ErrInvalidHeader},
		{"empty", func(f *fixture) {}, ErrTruncated},
		{"truncated magic", func(f *fixture) { f.WriteString("PM") }, ErrTruncated},
		{"truncated info", func(f *fixture) {
			f.WriteString(pmxMagic)
			f.f32(2.0)
			f.u8(8, 0, 0, 1)
		}, ErrTruncated},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var f fixture
			c.build(&f)
			_, err := Open(bytes.NewReader(f.Bytes()))
			if !errors.Is(err, c.want) {
				t.Errorf("expected %v, got %v", c.want, err)
			}
			var de *DecodeError
			if !errors.As(err, &de) || de.Stage != StageHeader {
				t.Errorf("expected header DecodeError, got %#v", err)
			}
		})
	}
}

func TestWriteHeader(t *testing.T) {
	cfg := &FormatConfig{Version: Version20, Encoding: UTF8, ExtUVCount: 1,
		VertexIndexSize: 2, TextureIndexSize: 1, MaterialIndexSize: 1, BoneIndexSize: 2, MorphIndexSize: 1, RigidIndexSize: 1}
	var buf bytes.Buffer
	w := &baseWriter{w: &buf}
	writeHeader(w, cfg)

	var f fixture
	f.header(Version20, 1, 1, 2, 1, 1, 2, 1, 1)
	if !bytes.Equal(buf.Bytes(), f.Bytes()) {
		t.Errorf("got % x, want % x", buf.Bytes(), f.Bytes())
	}
}
