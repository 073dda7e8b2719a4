package tagging

import (
	"context"
	"fmt"

	"github.com/Skryldev/media-workbench/domain/model"
	"github.com/bogem/id3v2/v2"
)

// ID3Tagger writes ID3v2 frames into MP3 files.
type ID3Tagger struct{}

func (ID3Tagger) Supports(format model.AudioFormat) bool {
	return format == model.AudioMP3
}

// Tag sets title/artist/album and replaces any attached front cover.
func (ID3Tagger) Tag(_ context.Context, path string, meta model.Metadata, cover *model.CoverArt) error {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3 tag: %w", err)
	}
	defer t.Close()

	t.SetDefaultEncoding(id3v2.EncodingUTF8)
	if meta.Title != "" {
		t.SetTitle(meta.Title)
	}
	if meta.Artist != "" {
		t.SetArtist(meta.Artist)
	}
	if meta.Album != "" {
		t.SetAlbum(meta.Album)
	}

	if cover != nil && len(cover.Data) > 0 {
		t.DeleteFrames(t.CommonID("Attached picture"))
		t.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    cover.MimeType,
			PictureType: id3v2.PTFrontCover,
			Description: "Front cover",
			Picture:     cover.Data,
		})
	}

	if err := t.Save(); err != nil {
		return fmt.Errorf("save id3 tag: %w", err)
	}
	return nil
}
