package mmd

import "go.uber.org/zap"

type options struct {
	logger   *zap.Logger
	encoding TextEncoding
}

// Option configures PMXParser and PMXWriter.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithEncoding selects the text encoding written by PMXWriter.
// UTF16LE (the default) is what MikuMikuDance and most tools expect.
func WithEncoding(enc TextEncoding) Option {
	return func(o *options) {
		o.encoding = enc
	}
}

func newOptions(opts []Option) *options {
	o := &options{logger: zap.NewNop(), encoding: UTF16LE}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
