package imageengine

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Skryldev/media-workbench/domain/model"
	pkgerrors "github.com/Skryldev/media-workbench/pkg/errors"
	"github.com/disintegration/imaging"
)

func gradient(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a decodable image: %v", err)
	}
	return cfg.Width, cfg.Height, format
}

func TestInit(t *testing.T) {
	if err := New(nil).Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
}

func TestTransformGeometry(t *testing.T) {
	src := model.File{Name: "cover.png", Data: gradient(400, 300)}
	cases := []struct {
		name         string
		settings     model.ImageSettings
		wantW, wantH int
		wantFormat   string
	}{
		{"crop and resize to square", model.ImageSettings{TargetWidth: 100, TargetHeight: 100, CropToSquare: true, Format: model.ImageJPEG, Quality: 90}, 100, 100, "jpeg"},
		{"crop side follows width", model.ImageSettings{TargetWidth: 64, TargetHeight: 200, CropToSquare: true, Format: model.ImagePNG}, 64, 64, "png"},
		{"crop side falls back to height", model.ImageSettings{TargetHeight: 50, CropToSquare: true, Format: model.ImagePNG}, 50, 50, "png"},
		{"crop only", model.ImageSettings{CropToSquare: true, KeepOriginalSize: true, Format: model.ImagePNG}, 300, 300, "png"},
		{"width only keeps aspect", model.ImageSettings{TargetWidth: 200, Format: model.ImagePNG}, 200, 150, "png"},
		{"keep original size", model.ImageSettings{TargetWidth: 10, TargetHeight: 10, KeepOriginalSize: true, Format: model.ImageWebP}, 400, 300, "webp"},
	}
	e := New(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := e.Transform(context.Background(), src, tc.settings)
			if err != nil {
				t.Fatalf("Transform failed: %v", err)
			}
			w, h, format := decodeSize(t, out)
			if w != tc.wantW || h != tc.wantH || format != tc.wantFormat {
				t.Fatalf("got %dx%d %s, want %dx%d %s", w, h, format, tc.wantW, tc.wantH, tc.wantFormat)
			}
		})
	}
}

func TestTransformIsDeterministic(t *testing.T) {
	src := model.File{Name: "cover.png", Data: gradient(120, 80)}
	e := New(nil)
	for _, f := range []model.ImageFormat{model.ImageJPEG, model.ImagePNG, model.ImageWebP} {
		settings := model.DefaultImageSettings()
		settings.TargetWidth, settings.TargetHeight = 64, 64
		settings.Format = f
		a, err := e.Transform(context.Background(), src, settings)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		b, err := e.Transform(context.Background(), src, settings)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("%s output differs between identical runs", f)
		}
	}
}

func TestWebPIsLossless(t *testing.T) {
	data := gradient(32, 32)
	out, err := New(nil).Transform(context.Background(), model.File{Name: "a.png", Data: data},
		model.ImageSettings{Format: model.ImageWebP, KeepOriginalSize: true})
	if err != nil {
		t.Fatal(err)
	}
	want, _ := imaging.Decode(bytes.NewReader(data))
	got, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	wn, gn := imaging.Clone(want), imaging.Clone(got)
	if !bytes.Equal(wn.Pix, gn.Pix) {
		t.Fatal("webp round trip changed pixels")
	}
}

func TestTransformDecodeErrorNamesFile(t *testing.T) {
	_, err := New(nil).Transform(context.Background(), model.File{Name: "broken.jpg", Data: []byte("not an image")}, model.DefaultImageSettings())
	de, ok := pkgerrors.As[*pkgerrors.DecodeError](err)
	if !ok {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.File != "broken.jpg" {
		t.Fatalf("error names %q", de.File)
	}
}

func TestTransformRejectsBadQuality(t *testing.T) {
	src := model.File{Name: "cover.png", Data: gradient(10, 10)}
	for _, q := range []int{0, 101, -5} {
		settings := model.ImageSettings{Format: model.ImageJPEG, Quality: q}
		if _, err := New(nil).Transform(context.Background(), src, settings); err == nil {
			t.Fatalf("quality %d accepted", q)
		} else if _, ok := pkgerrors.As[*pkgerrors.EncodeError](err); !ok {
			t.Fatalf("quality %d: expected EncodeError, got %v", q, err)
		}
	}
	// png ignores quality entirely
	if _, err := New(nil).Transform(context.Background(), src, model.ImageSettings{Format: model.ImagePNG}); err != nil {
		t.Fatalf("png with zero quality failed: %v", err)
	}
}

func TestTransformHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Transform(ctx, model.File{Name: "cover.png", Data: gradient(10, 10)}, model.DefaultImageSettings())
	if !pkgerrors.IsCancelled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
