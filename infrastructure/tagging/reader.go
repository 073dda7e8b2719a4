package tagging

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/Skryldev/media-workbench/domain/model"
	"github.com/dhowden/tag"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ReadMetadata returns the title/artist/album already present in an audio
// file. Missing titles are derived from the file name.
func ReadMetadata(file model.File) model.Metadata {
	var meta model.Metadata
	if m, err := tag.ReadFrom(bytes.NewReader(file.Data)); err == nil {
		meta = model.Metadata{
			Title:  strings.TrimSpace(m.Title()),
			Artist: strings.TrimSpace(m.Artist()),
			Album:  strings.TrimSpace(m.Album()),
		}
	}
	if meta.Title == "" {
		meta.Title = DeriveTitle(file.Name)
	}
	return meta
}

// ReadCover returns the picture embedded in an audio file, if any.
func ReadCover(data []byte) (*model.CoverArt, bool) {
	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	pic := m.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return nil, false
	}
	return &model.CoverArt{Data: pic.Data, MimeType: pic.MIMEType}, true
}

// DeriveTitle turns "01_night-drive (final).wav" into "01 Night Drive Final".
func DeriveTitle(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var cleaned strings.Builder
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return ""
	}
	return cases.Title(language.Und).String(title)
}
