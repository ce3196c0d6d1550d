package mmd

import (
	"errors"
	"fmt"
)

// PMX codec errors.
var (
	ErrBadMagic           = errors.New("invalid PMX magic: expected 'PMX '")
	ErrUnsupportedVersion = errors.New("unsupported PMX version")
	ErrInvalidHeader      = errors.New("invalid PMX header")
	ErrTruncated          = errors.New("truncated PMX data")
	ErrInvalidWeightKind  = errors.New("invalid vertex weight type")
	ErrInvalidData        = errors.New("invalid PMX data")
	ErrEncoding           = errors.New("text encoding error")
	ErrStageOrder         = errors.New("PMX stage used out of order")
	ErrTooLarge           = errors.New("collection too large for PMX")
)

// DecodeError reports where in the stream a decode failed.
type DecodeError struct {
	Stage  Stage
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pmx: %v at offset %d: %v", e.Stage, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
