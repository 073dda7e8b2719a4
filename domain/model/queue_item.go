package model

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// QueueItem is one user-submitted file plus its settings and lifecycle.
type QueueItem struct {
	ID       string
	Source   File
	Kind     MediaKind
	Status   Status
	Progress int

	// Result is set iff Status is StatusCompleted. ResultExtension pins the
	// container it was encoded to, even if settings change afterwards.
	Result          []byte
	ResultExtension string
	// Error is set iff Status is StatusError.
	Error string

	// Exactly one of Audio/Image is non-nil, matching Kind.
	Audio *AudioSettings
	Image *ImageSettings

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// Clone returns a deep copy safe to hand to callers. The source bytes are
// shared because they are never mutated.
func (i *QueueItem) Clone() QueueItem {
	cp := *i
	if i.Result != nil {
		cp.Result = bytes.Clone(i.Result)
	}
	if i.Audio != nil {
		a := *i.Audio
		cp.Audio = &a
	}
	if i.Image != nil {
		img := *i.Image
		cp.Image = &img
	}
	return cp
}

// MarkProcessing moves a pending item into processing and records the
// extension of the result its current settings will produce.
func (i *QueueItem) MarkProcessing(now time.Time) {
	i.ResultExtension = i.settingsExtension()
	i.Status = StatusProcessing
	i.Progress = 0
	i.Error = ""
	i.StartedAt = now
}

// MarkCompleted stores the result, replacing any previous one. The result
// keeps the extension recorded when processing started.
func (i *QueueItem) MarkCompleted(result []byte, now time.Time) {
	if i.ResultExtension == "" {
		i.ResultExtension = i.settingsExtension()
	}
	i.Status = StatusCompleted
	i.Progress = 100
	i.Result = result
	i.Error = ""
	i.CompletedAt = now
}

// MarkFailed records a per-item error.
func (i *QueueItem) MarkFailed(message string, now time.Time) {
	i.Status = StatusError
	i.Progress = 0
	i.Result = nil
	i.ResultExtension = ""
	i.Error = message
	i.CompletedAt = now
}

// Reset returns the item to pending and drops any result or error.
func (i *QueueItem) Reset() {
	i.Status = StatusPending
	i.Progress = 0
	i.Result = nil
	i.ResultExtension = ""
	i.Error = ""
	i.StartedAt = time.Time{}
	i.CompletedAt = time.Time{}
}

// OutputExtension is the extension of the item's processed result.
func (i *QueueItem) OutputExtension() string {
	if i.Status == StatusCompleted && i.ResultExtension != "" {
		return i.ResultExtension
	}
	return i.settingsExtension()
}

func (i *QueueItem) settingsExtension() string {
	switch {
	case i.Audio != nil:
		return i.Audio.Format.Extension()
	case i.Image != nil:
		return i.Image.Format.Extension()
	}
	return "bin"
}

// SuggestedFilename returns "{title}_processed.{ext}".
func (i *QueueItem) SuggestedFilename() string {
	title := ""
	if i.Audio != nil {
		title = i.Audio.Metadata.Title
	}
	if strings.TrimSpace(title) == "" {
		title = i.Source.BaseName()
	}
	title = SanitizeFileName(title)
	if title == "" {
		title = "untitled"
	}
	return fmt.Sprintf("%s_processed.%s", title, i.OutputExtension())
}

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}
