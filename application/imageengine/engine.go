// Package imageengine resizes, crops and re-encodes still images. It is pure
// Go and keeps no state between calls.
package imageengine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/Skryldev/media-workbench/domain/model"
	pkgerrors "github.com/Skryldev/media-workbench/pkg/errors"
	"github.com/Skryldev/media-workbench/pkg/logger"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	// registers the webp decoder with image.Decode
	_ "golang.org/x/image/webp"
)

// Engine implements ports.ImageTransformer.
type Engine struct {
	log *logger.Logger
}

// New returns an image engine logging to log (nil for silence).
func New(log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{log: log}
}

// Init round-trips a tiny image through every output codec so a broken
// registry surfaces at bootstrap rather than mid-batch.
func (e *Engine) Init(ctx context.Context) error {
	probe := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	probe.Set(0, 0, color.NRGBA{R: 255, A: 255})
	for _, f := range []model.ImageFormat{model.ImageJPEG, model.ImagePNG, model.ImageWebP} {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := encode(probe, f, 90)
		if err != nil {
			return fmt.Errorf("%s encoder: %w", f, err)
		}
		if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%s decoder: %w", f, err)
		}
	}
	e.log.Debug("image codecs ready")
	return nil
}

// Transform decodes file, applies the geometry in settings and encodes the
// result. Identical input and settings always produce identical bytes.
func (e *Engine) Transform(ctx context.Context, file model.File, settings model.ImageSettings) ([]byte, error) {
	if err := validate(settings); err != nil {
		return nil, err
	}
	start := time.Now()
	log := e.log.With(zap.String("file", file.Name), zap.String("format", string(settings.Format)))

	if err := checkpoint(ctx, "decode"); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(file.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, pkgerrors.NewDecodeError(file.Name, err)
	}
	src := img.Bounds()

	if err := checkpoint(ctx, "transform"); err != nil {
		return nil, err
	}
	img = applyGeometry(img, settings)

	if err := checkpoint(ctx, "encode"); err != nil {
		return nil, err
	}
	out, err := encode(img, settings.Format, settings.Quality)
	if err != nil {
		return nil, pkgerrors.NewEncodeError(string(settings.Format), "failed to encode image", err)
	}

	dst := img.Bounds()
	log.Info("image transform completed",
		zap.String("source_size", fmt.Sprintf("%dx%d", src.Dx(), src.Dy())),
		zap.String("output_size", fmt.Sprintf("%dx%d", dst.Dx(), dst.Dy())),
		zap.Duration("took", time.Since(start)),
		zap.Int("bytes", len(out)),
	)
	return out, nil
}

func validate(s model.ImageSettings) error {
	if !s.Format.Valid() {
		return pkgerrors.NewEncodeError(string(s.Format), "unknown output format", nil)
	}
	if s.Format == model.ImageJPEG && (s.Quality < 1 || s.Quality > 100) {
		return pkgerrors.NewEncodeError(string(s.Format), fmt.Sprintf("quality %d outside 1-100", s.Quality), nil)
	}
	if s.TargetWidth < 0 || s.TargetHeight < 0 {
		return pkgerrors.NewEncodeError(string(s.Format), "negative target size", nil)
	}
	return nil
}

func checkpoint(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewCancelledError("image transform cancelled before "+stage, err)
	}
	return nil
}

// applyGeometry crops to a centered square when asked, then resamples with
// Lanczos unless the original size is kept or no target is given.
func applyGeometry(img image.Image, s model.ImageSettings) image.Image {
	if s.CropToSquare {
		b := img.Bounds()
		side := min(b.Dx(), b.Dy())
		img = imaging.CropCenter(img, side, side)
	}
	if s.KeepOriginalSize || (s.TargetWidth == 0 && s.TargetHeight == 0) {
		return img
	}
	if s.CropToSquare {
		side := s.TargetWidth
		if side == 0 {
			side = s.TargetHeight
		}
		return imaging.Resize(img, side, side, imaging.Lanczos)
	}
	return imaging.Resize(img, s.TargetWidth, s.TargetHeight, imaging.Lanczos)
}

func encode(img image.Image, format model.ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case model.ImageJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case model.ImagePNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case model.ImageWebP:
		// lossless VP8L; quality does not apply
		err = nativewebp.Encode(&buf, img, nil)
	default:
		err = fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
