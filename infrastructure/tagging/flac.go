package tagging

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skryldev/media-workbench/domain/model"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// FLACTagger rewrites the Vorbis comment and PICTURE metadata blocks.
type FLACTagger struct{}

func (FLACTagger) Supports(format model.AudioFormat) bool {
	return format == model.AudioFLAC
}

func (FLACTagger) Tag(_ context.Context, path string, meta model.Metadata, cover *model.CoverArt) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parse flac: %w", err)
	}

	comments, err := mergeComments(f, meta)
	if err != nil {
		return err
	}

	kept := make([]*flac.MetaDataBlock, 0, len(f.Meta)+2)
	for _, block := range f.Meta {
		switch {
		case block.Type == flac.VorbisComment:
			continue
		case block.Type == flac.Picture && cover != nil:
			continue
		}
		kept = append(kept, block)
	}
	cmtBlock := comments.Marshal()
	kept = append(kept, &cmtBlock)

	if cover != nil && len(cover.Data) > 0 {
		pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front cover", cover.Data, cover.MimeType)
		if err != nil {
			return fmt.Errorf("build flac picture: %w", err)
		}
		picBlock := pic.Marshal()
		kept = append(kept, &picBlock)
	}
	f.Meta = kept

	if err := f.Save(path); err != nil {
		return fmt.Errorf("save flac: %w", err)
	}
	return nil
}

// mergeComments keeps every existing comment except the fields being set.
func mergeComments(f *flac.File, meta model.Metadata) (*flacvorbis.MetaDataBlockVorbisComment, error) {
	out := flacvorbis.New()
	set := map[string]string{
		flacvorbis.FIELD_TITLE:  meta.Title,
		flacvorbis.FIELD_ARTIST: meta.Artist,
		flacvorbis.FIELD_ALBUM:  meta.Album,
	}

	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		existing, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			return nil, fmt.Errorf("parse vorbis comment: %w", err)
		}
		out.Vendor = existing.Vendor
		for _, c := range existing.Comments {
			key, _, _ := strings.Cut(c, "=")
			if v, ok := set[strings.ToUpper(key)]; ok && v != "" {
				continue
			}
			out.Comments = append(out.Comments, c)
		}
	}

	for _, key := range []string{flacvorbis.FIELD_TITLE, flacvorbis.FIELD_ARTIST, flacvorbis.FIELD_ALBUM} {
		if v := set[key]; v != "" {
			if err := out.Add(key, v); err != nil {
				return nil, fmt.Errorf("add %s: %w", key, err)
			}
		}
	}
	return out, nil
}
