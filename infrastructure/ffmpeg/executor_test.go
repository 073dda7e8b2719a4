package ffmpeg

import (
	"strings"
	"testing"
	"time"

	"github.com/Skryldev/media-workbench/domain/ports"
)

func TestParseProgressEmitsPerBlock(t *testing.T) {
	stream := strings.Join([]string{
		"frame=0",
		"out_time_us=1500000",
		"out_time=00:00:01.500000",
		"progress=continue",
		"out_time_us=N/A",
		"progress=continue",
		"out_time_ms=4000000",
		"progress=end",
	}, "\n")

	var samples []ports.ProgressSample
	ParseProgress(strings.NewReader(stream), func(s ports.ProgressSample) {
		samples = append(samples, s)
	})

	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d: %+v", len(samples), samples)
	}
	if samples[0].OutTime != 1500*time.Millisecond || samples[0].Done {
		t.Fatalf("unexpected first sample: %+v", samples[0])
	}
	if samples[1].OutTime != 1500*time.Millisecond {
		t.Fatalf("unparseable value should keep previous time, got %+v", samples[1])
	}
	if samples[2].OutTime != 4*time.Second || !samples[2].Done {
		t.Fatalf("unexpected last sample: %+v", samples[2])
	}
}

func TestParseEncodersKeepsAudioOnly(t *testing.T) {
	out := `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264
 A....D aac                  AAC (Advanced Audio Coding)
 A....D libmp3lame           libmp3lame MP3 (MPEG audio layer 3)
 A....D flac                 FLAC (Free Lossless Audio Codec)
`
	got := ParseEncoders(strings.NewReader(out))
	want := []string{"aac", "libmp3lame", "flac"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFilterChainBuilder(t *testing.T) {
	cases := []struct {
		name  string
		build func(*FilterChainBuilder)
		want  string
	}{
		{"empty", func(*FilterChainBuilder) {}, ""},
		{"trim window", func(b *FilterChainBuilder) { b.AddTrim(10, 20) }, "atrim=start=10:end=20,asetpts=PTS-STARTPTS"},
		{"trim start only", func(b *FilterChainBuilder) { b.AddTrim(2.5, 0) }, "atrim=start=2.5,asetpts=PTS-STARTPTS"},
		{"zero trim is ignored", func(b *FilterChainBuilder) { b.AddTrim(0, 0) }, ""},
		{"trim then loudnorm", func(b *FilterChainBuilder) { b.AddTrim(0, 30).AddLoudnorm(-16, -1.5, 11) }, "atrim=end=30,asetpts=PTS-STARTPTS,loudnorm=I=-16.0:TP=-1.5:LRA=11.0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewFilterChainBuilder()
			tc.build(b)
			if got := b.Build(); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
			if b.IsEmpty() != (tc.want == "") {
				t.Fatalf("IsEmpty mismatch for %q", tc.want)
			}
		})
	}
}
