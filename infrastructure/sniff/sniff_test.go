package sniff

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/Skryldev/media-workbench/domain/model"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	wav := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)
	cases := []struct {
		name   string
		file   model.File
		want   model.MediaKind
		wantOK bool
	}{
		{"png content", model.File{Name: "cover.bin", Data: pngBytes(t)}, model.KindImage, true},
		{"wav content", model.File{Name: "take.dat", Data: wav}, model.KindAudio, true},
		{"mp3 by id3 header", model.File{Name: "x", Data: append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 16)...)}, model.KindAudio, true},
		{"unknown bytes with audio extension", model.File{Name: "take.opus", Data: []byte{0x00, 0x01}}, model.KindAudio, true},
		{"garbage with image extension is rejected", model.File{Name: "cover.png", Data: []byte{0x00, 0x01}}, "", false},
		{"text file", model.File{Name: "notes.txt", Data: []byte("hello")}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, _, ok := Detect(tc.file)
			if ok != tc.wantOK || kind != tc.want {
				t.Fatalf("Detect = (%q, %v), want (%q, %v)", kind, ok, tc.want, tc.wantOK)
			}
		})
	}
}
