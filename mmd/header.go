package mmd

import (
	"fmt"
)

const pmxMagic = "PMX "

const (
	Version20 float32 = 2.0
	Version21 float32 = 2.1
)

// Indexes into the header info bytes.
const (
	AttrStringEncoding int = iota
	AttrExtUV
	AttrVertIndexSz
	AttrTexIndexSz
	AttrMatIndexSz
	AttrBoneIndexSz
	AttrMorphIndexSz
	AttrRBIndexSz

	headerInfoLen
)

// FormatConfig holds the per-file constants read from the header.
// Every section after the header is sized by it.
type FormatConfig struct {
	Version           float32
	Encoding          TextEncoding
	ExtUVCount        int
	VertexIndexSize   byte
	TextureIndexSize  byte
	MaterialIndexSize byte
	BoneIndexSize     byte
	MorphIndexSize    byte
	RigidIndexSize    byte
}

// HasSoftBodies reports whether a soft body section follows the joints.
func (c *FormatConfig) HasSoftBodies() bool {
	return c.Version > Version20
}

func (c *FormatConfig) info() []byte {
	return []byte{
		byte(c.Encoding),
		byte(c.ExtUVCount),
		c.VertexIndexSize,
		c.TextureIndexSize,
		c.MaterialIndexSize,
		c.BoneIndexSize,
		c.MorphIndexSize,
		c.RigidIndexSize,
	}
}

func validIndexSize(sz byte) bool {
	return sz == 1 || sz == 2 || sz == 4
}

func (c *FormatConfig) validate() error {
	if c.Version != Version20 && c.Version != Version21 {
		return fmt.Errorf("%w: %v", ErrUnsupportedVersion, c.Version)
	}
	if c.Encoding != UTF16LE && c.Encoding != UTF8 {
		return fmt.Errorf("%w: text encoding %d", ErrInvalidHeader, c.Encoding)
	}
	if c.ExtUVCount < 0 || c.ExtUVCount > 4 {
		return fmt.Errorf("%w: additional uv count %d", ErrInvalidHeader, c.ExtUVCount)
	}
	for i, sz := range c.info()[AttrVertIndexSz:] {
		if !validIndexSize(sz) {
			return fmt.Errorf("%w: index size %d for attribute %d", ErrInvalidHeader, sz, i+AttrVertIndexSz)
		}
	}
	return nil
}

func readHeader(p *baseParser) (*FormatConfig, error) {
	magic := make([]byte, len(pmxMagic))
	if !p.readFull(magic) {
		return nil, p.err
	}
	if string(magic) != pmxMagic {
		return nil, fmt.Errorf("%w: got %q", ErrBadMagic, magic)
	}
	version := p.readFloat()
	if p.err != nil {
		return nil, p.err
	}
	if version != Version20 && version != Version21 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedVersion, version)
	}
	n := int(p.readUint8())
	if p.err != nil {
		return nil, p.err
	}
	if n < headerInfoLen {
		return nil, fmt.Errorf("%w: info size %d", ErrInvalidHeader, n)
	}
	info := make([]byte, n)
	if !p.readFull(info) {
		return nil, p.err
	}
	cfg := &FormatConfig{
		Version:           version,
		Encoding:          TextEncoding(info[AttrStringEncoding]),
		ExtUVCount:        int(info[AttrExtUV]),
		VertexIndexSize:   info[AttrVertIndexSz],
		TextureIndexSize:  info[AttrTexIndexSz],
		MaterialIndexSize: info[AttrMatIndexSz],
		BoneIndexSize:     info[AttrBoneIndexSz],
		MorphIndexSize:    info[AttrMorphIndexSz],
		RigidIndexSize:    info[AttrRBIndexSz],
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeHeader(w *baseWriter, cfg *FormatConfig) {
	info := cfg.info()
	w.writeBytes([]byte(pmxMagic))
	w.writeFloat(cfg.Version)
	w.writeUint8(uint8(len(info)))
	w.writeBytes(info)
}
