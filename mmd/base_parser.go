package mmd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// baseParser reads little-endian primitives. The first failure is kept in err
// and every later read becomes a no-op returning zero values.
type baseParser struct {
	r      io.Reader
	offset int64
	err    error
	buf    [8]byte
}

func (p *baseParser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *baseParser) readFull(b []byte) bool {
	if p.err != nil {
		return false
	}
	n, err := io.ReadFull(p.r, b)
	p.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = fmt.Errorf("%w: need %d bytes, got %d", ErrTruncated, len(b), n)
		}
		p.fail(err)
		return false
	}
	return true
}

func (p *baseParser) readUint8() uint8 {
	if !p.readFull(p.buf[:1]) {
		return 0
	}
	return p.buf[0]
}

func (p *baseParser) readInt8() int8 {
	return int8(p.readUint8())
}

func (p *baseParser) readUint16() uint16 {
	if !p.readFull(p.buf[:2]) {
		return 0
	}
	return binary.LittleEndian.Uint16(p.buf[:2])
}

func (p *baseParser) readInt16() int16 {
	return int16(p.readUint16())
}

func (p *baseParser) readInt32() int32 {
	if !p.readFull(p.buf[:4]) {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(p.buf[:4]))
}

func (p *baseParser) readInt() int {
	return int(p.readInt32())
}

func (p *baseParser) readFloat() float32 {
	if !p.readFull(p.buf[:4]) {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(p.buf[:4]))
}

func (p *baseParser) readVector2() (v Vector2) {
	v.X = p.readFloat()
	v.Y = p.readFloat()
	return
}

func (p *baseParser) readVector3() (v Vector3) {
	v.X = p.readFloat()
	v.Y = p.readFloat()
	v.Z = p.readFloat()
	return
}

func (p *baseParser) readVector4() (v Vector4) {
	v.X = p.readFloat()
	v.Y = p.readFloat()
	v.Z = p.readFloat()
	v.W = p.readFloat()
	return
}

// readCount reads an i32 collection size prefix.
func (p *baseParser) readCount() int {
	n := p.readInt()
	if p.err == nil && n < 0 {
		p.fail(fmt.Errorf("%w: negative count %d", ErrInvalidData, n))
		return 0
	}
	return n
}

// readVInt reads a signed index. Width 1 and 2 are sign extended, so a stored
// 0xFF / 0xFFFF comes back as -1. Width 4 is returned as stored.
func (p *baseParser) readVInt(sz byte) int {
	switch sz {
	case 1:
		return int(p.readInt8())
	case 2:
		return int(p.readInt16())
	case 4:
		return int(p.readInt32())
	}
	p.fail(fmt.Errorf("%w: index size %d", ErrInvalidHeader, sz))
	return 0
}

// readVUInt reads a vertex index: unsigned for width 1 and 2, i32 for width 4.
func (p *baseParser) readVUInt(sz byte) int {
	switch sz {
	case 1:
		return int(p.readUint8())
	case 2:
		return int(p.readUint16())
	case 4:
		return int(p.readInt32())
	}
	p.fail(fmt.Errorf("%w: index size %d", ErrInvalidHeader, sz))
	return 0
}

// readText reads an i32 byte length followed by that many bytes of text.
func (p *baseParser) readText(enc TextEncoding) string {
	n := p.readInt()
	if p.err != nil {
		return ""
	}
	if n < 0 {
		p.fail(fmt.Errorf("%w: negative text length %d", ErrInvalidData, n))
		return ""
	}
	if n == 0 {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(p.r, int64(n)))
	p.offset += int64(len(data))
	if err != nil {
		p.fail(err)
		return ""
	}
	if len(data) < n {
		p.fail(fmt.Errorf("%w: text needs %d bytes, got %d", ErrTruncated, n, len(data)))
		return ""
	}
	s, err := decodeText(data, enc)
	if err != nil {
		p.fail(err)
		return ""
	}
	return s
}
