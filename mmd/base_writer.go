package mmd

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

type baseWriter struct {
	w   io.Writer
	err error
	buf [8]byte
}

func (p *baseWriter) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *baseWriter) writeBytes(b []byte) {
	if p.err != nil {
		return
	}
	if _, err := p.w.Write(b); err != nil {
		p.fail(err)
	}
}

func (p *baseWriter) writeUint8(v uint8) {
	p.buf[0] = v
	p.writeBytes(p.buf[:1])
}

func (p *baseWriter) writeBool(v bool) {
	if v {
		p.writeUint8(1)
	} else {
		p.writeUint8(0)
	}
}

func (p *baseWriter) writeUint16(v uint16) {
	binary.LittleEndian.PutUint16(p.buf[:2], v)
	p.writeBytes(p.buf[:2])
}

func (p *baseWriter) writeInt32(v int32) {
	binary.LittleEndian.PutUint32(p.buf[:4], uint32(v))
	p.writeBytes(p.buf[:4])
}

func (p *baseWriter) writeInt(v int) {
	if v > math.MaxInt32 || v < math.MinInt32 {
		p.fail(fmt.Errorf("%w: %d does not fit in i32", ErrTooLarge, v))
		return
	}
	p.writeInt32(int32(v))
}

func (p *baseWriter) writeFloat(v float32) {
	binary.LittleEndian.PutUint32(p.buf[:4], math.Float32bits(v))
	p.writeBytes(p.buf[:4])
}

func (p *baseWriter) writeVector2(v Vector2) {
	p.writeFloat(v.X)
	p.writeFloat(v.Y)
}

func (p *baseWriter) writeVector3(v Vector3) {
	p.writeFloat(v.X)
	p.writeFloat(v.Y)
	p.writeFloat(v.Z)
}

func (p *baseWriter) writeVector4(v Vector4) {
	p.writeFloat(v.X)
	p.writeFloat(v.Y)
	p.writeFloat(v.Z)
	p.writeFloat(v.W)
}

// writeVInt writes a signed index with the configured width. It does not
// pick a smaller width for small values.
func (p *baseWriter) writeVInt(sz byte, v int) {
	switch sz {
	case 1:
		p.writeUint8(uint8(int8(v)))
	case 2:
		p.writeUint16(uint16(int16(v)))
	case 4:
		p.writeInt32(int32(v))
	default:
		p.fail(fmt.Errorf("%w: index size %d", ErrInvalidHeader, sz))
	}
}

func (p *baseWriter) writeVUInt(sz byte, v int) {
	switch sz {
	case 1:
		p.writeUint8(uint8(v))
	case 2:
		p.writeUint16(uint16(v))
	case 4:
		p.writeInt32(int32(v))
	default:
		p.fail(fmt.Errorf("%w: index size %d", ErrInvalidHeader, sz))
	}
}

func (p *baseWriter) writeText(s string, enc TextEncoding) {
	if p.err != nil {
		return
	}
	b, err := encodeText(s, enc)
	if err != nil {
		p.fail(err)
		return
	}
	p.writeInt(len(b))
	p.writeBytes(b)
}
