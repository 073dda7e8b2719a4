// Package sniff classifies dropped files by content, falling back to the
// file extension when the content is ambiguous.
package sniff

import (
	"path/filepath"
	"strings"

	"github.com/Skryldev/media-workbench/domain/model"
	"github.com/gabriel-vasile/mimetype"
)

var audioExtensions = map[string]struct{}{
	".mp3": {}, ".wav": {}, ".flac": {}, ".aac": {}, ".m4a": {},
	".ogg": {}, ".oga": {}, ".opus": {}, ".aiff": {}, ".aif": {},
}

// Detect reports the media kind of file and its detected MIME type.
// ok is false when neither the content nor the extension identify it.
func Detect(file model.File) (kind model.MediaKind, mime string, ok bool) {
	detected := mimetype.Detect(file.Data)
	for m := detected; m != nil; m = m.Parent() {
		switch {
		case strings.HasPrefix(m.String(), "audio/"):
			return model.KindAudio, detected.String(), true
		case strings.HasPrefix(m.String(), "image/"):
			return model.KindImage, detected.String(), true
		}
	}

	// Ogg and some MP4 brands sniff as application/* or video/*. Images
	// always carry a recognizable signature, so only audio falls back.
	ext := strings.ToLower(filepath.Ext(file.Name))
	if _, found := audioExtensions[ext]; found {
		return model.KindAudio, detected.String(), true
	}
	return "", detected.String(), false
}
