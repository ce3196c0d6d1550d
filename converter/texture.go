package converter

import (
	"bufio"
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	blezektga "github.com/blezek/tga"
	"github.com/ftrvxmtrx/tga"
	"github.com/oov/psd"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// textureCache loads each texture file of a model at most once.
// PMX texture paths are relative to the model file and often use '\'.
type textureCache struct {
	srcDir   string
	textures map[string]*textureInfo
}

type textureInfo struct {
	name string
	id   *uint32
	img  image.Image
	err  error
}

func newTextureCache(dir string) *textureCache {
	return &textureCache{srcDir: dir, textures: map[string]*textureInfo{}}
}

func (c *textureCache) get(name string) *textureInfo {
	if t, ok := c.textures[name]; ok {
		return t
	}
	t := &textureInfo{name: name}
	c.textures[name] = t
	return t
}

func (c *textureCache) path(name string) string {
	return filepath.Join(c.srcDir, filepath.FromSlash(strings.ReplaceAll(name, "\\", "/")))
}

func (c *textureCache) getImage(name string) (image.Image, error) {
	t := c.get(name)
	if t.img != nil || t.err != nil {
		return t.img, t.err
	}

	f, err := os.Open(c.path(name))
	if err != nil {
		t.err = err
		return nil, err
	}
	defer f.Close()

	t.img, t.err = decodeImage(f)
	return t.img, t.err
}

// decodeImage picks the decoder from the file signature instead of
// image.Decode: importing ftrvxmtrx/tga registers "tga" with an empty magic
// that matches everything. Sphere maps (.spa, .sph) are usually BMPs.
func decodeImage(r io.ReadSeeker) (image.Image, error) {
	br := bufio.NewReader(r)
	magic, _ := br.Peek(8)
	switch {
	case bytes.HasPrefix(magic, []byte("\x89PNG\r\n\x1a\n")):
		return png.Decode(br)
	case bytes.HasPrefix(magic, []byte("\xff\xd8")):
		return jpeg.Decode(br)
	case bytes.HasPrefix(magic, []byte("GIF8")):
		return gif.Decode(br)
	case bytes.HasPrefix(magic, []byte("BM")):
		return bmp.Decode(br)
	case bytes.HasPrefix(magic, []byte("8BPS")):
		p, _, err := psd.Decode(br, nil)
		if err != nil {
			return nil, err
		}
		return p.Picker, nil
	}

	// tga has no signature.
	img, err := tga.Decode(br)
	if err != nil {
		if _, serr := r.Seek(0, io.SeekStart); serr != nil {
			return nil, err
		}
		img, err = blezektga.Decode(r)
	}
	return img, err
}

func (c *textureCache) hasAlpha(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if name == "" || ext == ".jpg" || ext == ".jpeg" || ext == ".bmp" {
		return false
	}
	img, err := c.getImage(name)
	if err != nil {
		return false
	}
	switch img.ColorModel() {
	case color.YCbCrModel, color.CMYKModel, color.GrayModel:
		return false
	}
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

// encodeTexture re-encodes an image for embedding. glTF viewers only
// accept png and jpeg, so everything else becomes png.
func encodeTexture(img image.Image, mime string, limit int) ([]byte, error) {
	rect := img.Bounds()
	if limit > 0 && (rect.Dx() > limit || rect.Dy() > limit) {
		scale := float64(limit) / float64(max(rect.Dx(), rect.Dy()))
		dst := image.NewRGBA(image.Rect(0, 0, max(int(float64(rect.Dx())*scale), 1), max(int(float64(rect.Dy())*scale), 1)))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, rect, draw.Over, nil)
		img = dst
	}

	w := new(bytes.Buffer)
	var err error
	if mime == "image/jpeg" {
		err = jpeg.Encode(w, img, nil)
	} else {
		err = png.Encode(w, img)
	}
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func textureMimeType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	return "image/png"
}
