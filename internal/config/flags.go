package config

import "github.com/spf13/pflag"

// Flags holds command line overrides bound to a flag set.
// Only flags the user actually set override the file.
type Flags struct {
	fs *pflag.FlagSet

	config      string
	debug       bool
	logLevel    string
	logFile     string
	encoding    string
	scale       float32
	doubleSided bool
	unlit       bool
	noTextures  bool
	texLimit    int
}

// BindFlags registers the override flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVarP(&f.config, "config", "c", "", "Path to config file")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFile, "log-file", "", "Also write logs to this file")
	fs.StringVarP(&f.encoding, "encoding", "e", "", "Output text encoding (utf16le, utf8)")
	fs.Float32Var(&f.scale, "scale", 0, "glTF scale per MMD unit")
	fs.BoolVar(&f.doubleSided, "double-sided", false, "Make every glTF material double sided")
	fs.BoolVar(&f.unlit, "unlit", false, "Use KHR_materials_unlit for glTF materials")
	fs.BoolVar(&f.noTextures, "no-textures", false, "Do not embed textures in glTF output")
	fs.IntVar(&f.texLimit, "texture-limit", 0, "Max texture width/height in glTF output (0: unlimited)")
	return f
}

// ConfigPath returns the explicit config path if provided via --config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return f.config
}

func (f *Flags) changed(name string) bool {
	return f.fs.Changed(name)
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if f.debug {
		cfg.Logging.Level = "debug"
	}
	if f.changed("log-file") {
		cfg.Logging.File = f.logFile
	}
	if f.changed("encoding") {
		cfg.Output.Encoding = f.encoding
	}
	if f.changed("scale") {
		cfg.GLTF.Scale = f.scale
	}
	if f.changed("double-sided") {
		cfg.GLTF.DoubleSidedAll = f.doubleSided
	}
	if f.changed("unlit") {
		cfg.GLTF.ForceUnlit = f.unlit
	}
	if f.noTextures {
		cfg.GLTF.EmbedTextures = false
	}
	if f.changed("texture-limit") {
		cfg.GLTF.TextureResolutionLimit = f.texLimit
	}
}
