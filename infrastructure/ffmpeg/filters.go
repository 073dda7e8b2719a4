package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterChainBuilder constructs an ffmpeg audio filter string
type FilterChainBuilder struct {
	filters []string
}

func NewFilterChainBuilder() *FilterChainBuilder {
	return &FilterChainBuilder{}
}

// AddTrim clips the stream to [start, end) seconds and rebases timestamps.
// A non-positive end leaves the tail untouched.
func (b *FilterChainBuilder) AddTrim(start, end float64) *FilterChainBuilder {
	parts := []string{}
	if start > 0 {
		parts = append(parts, "start="+formatSeconds(start))
	}
	if end > 0 {
		parts = append(parts, "end="+formatSeconds(end))
	}
	if len(parts) == 0 {
		return b
	}
	b.filters = append(b.filters, "atrim="+strings.Join(parts, ":"), "asetpts=PTS-STARTPTS")
	return b
}

// AddLoudnorm appends single-pass EBU R128 normalization.
func (b *FilterChainBuilder) AddLoudnorm(targetLUFS, truePeak, LRA float64) *FilterChainBuilder {
	filter := fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f", targetLUFS, truePeak, LRA)
	b.filters = append(b.filters, filter)
	return b
}

func (b *FilterChainBuilder) AddResample(hz int) *FilterChainBuilder {
	b.filters = append(b.filters, fmt.Sprintf("aresample=%d", hz))
	return b
}

func (b *FilterChainBuilder) Build() string {
	return strings.Join(b.filters, ",")
}

func (b *FilterChainBuilder) IsEmpty() bool {
	return len(b.filters) == 0
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
