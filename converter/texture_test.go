package converter

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 128})
	img.Set(1, 1, color.NRGBA{B: 255, A: 255})
	return img
}

// 2x2 uncompressed 32bit true color, top-left origin.
func tgaBytes() []byte {
	b := []byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 2, 0, 32, 0x28}
	for i := 0; i < 4; i++ {
		b = append(b, 0, 0, 255, 255)
	}
	return b
}

func TestDecodeImage(t *testing.T) {
	encode := func(f func(*bytes.Buffer) error) []byte {
		var buf bytes.Buffer
		if err := f(&buf); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}
	img := testImage()
	cases := []struct {
		name string
		data []byte
	}{
		{"tex.png", encode(func(w *bytes.Buffer) error { return png.Encode(w, img) })},
		{"tex.jpg", encode(func(w *bytes.Buffer) error { return jpeg.Encode(w, img, nil) })},
		{"tex.gif", encode(func(w *bytes.Buffer) error { return gif.Encode(w, img, nil) })},
		{"tex.bmp", encode(func(w *bytes.Buffer) error { return bmp.Encode(w, img) })},
		{"sphere.spa", encode(func(w *bytes.Buffer) error { return bmp.Encode(w, img) })},
		{"tex.tga", tgaBytes()},
	}
	dir := t.TempDir()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := os.WriteFile(filepath.Join(dir, c.name), c.data, 0644); err != nil {
				t.Fatal(err)
			}
			got, err := newTextureCache(dir).getImage(c.name)
			if err != nil {
				t.Fatal(err)
			}
			if got.Bounds().Dx() != 2 || got.Bounds().Dy() != 2 {
				t.Errorf("unexpected bounds %v", got.Bounds())
			}
		})
	}
}

func TestTextureHasAlpha(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, img image.Image) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
	}
	write("alpha.png", testImage())
	opaque := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range opaque.Pix {
		opaque.Pix[i] = 255
	}
	write("opaque.png", opaque)

	c := newTextureCache(dir)
	if !c.hasAlpha("alpha.png") {
		t.Error("translucent png should have alpha")
	}
	if c.hasAlpha("opaque.png") {
		t.Error("opaque png should not have alpha")
	}
	if c.hasAlpha("missing.png") {
		t.Error("missing texture should not have alpha")
	}
}

func TestTexturePath(t *testing.T) {
	c := newTextureCache("model")
	if got, want := c.path(`tex\face.png`), filepath.Join("model", "tex", "face.png"); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
