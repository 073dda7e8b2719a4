package pipeline

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestResolveTrim(t *testing.T) {
	d := 120 * time.Second
	cases := []struct {
		name       string
		start, end string
		want       TrimWindow
		wantLen    time.Duration
		wantErr    bool
	}{
		{"no trim", "", "", TrimWindow{}, d, false},
		{"window", "10", "20", TrimWindow{Start: 10, End: 20}, 10 * time.Second, false},
		{"fractional", "1.5", "3", TrimWindow{Start: 1.5, End: 3}, 1500 * time.Millisecond, false},
		{"end past duration clips", "10", "500", TrimWindow{Start: 10}, 110 * time.Second, false},
		{"negative start clamps", "-5", "20", TrimWindow{End: 20}, 20 * time.Second, false},
		{"unparseable is ignored", "ten", "x", TrimWindow{}, d, false},
		{"start only", "100", "", TrimWindow{Start: 100}, 20 * time.Second, false},
		{"clock values", "1:00", "01:30.5", TrimWindow{Start: 60, End: 90.5}, 30500 * time.Millisecond, false},
		{"malformed clock is ignored", "1:75", "x:10", TrimWindow{}, d, false},
		// a start past the end clips to the end, which leaves nothing to encode
		{"start beyond duration", "200", "", TrimWindow{}, 0, true},
		{"start at duration", "2:00", "", TrimWindow{}, 0, true},
		{"empty window", "30", "20", TrimWindow{}, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveTrim(tc.start, tc.end, d)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				if !errors.Is(err, ErrEmptyTrimWindow) {
					t.Fatalf("expected ErrEmptyTrimWindow, got %v", err)
				}
				return
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			if l := got.Length(d); l != tc.wantLen {
				t.Fatalf("length = %v, want %v", l, tc.wantLen)
			}
		})
	}
}

func TestParseSeconds(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{" 90 ", 90, true},
		{"1:30", 90, true},
		{"01:02:03.25", 3723.25, true},
		{"0:00:00", 0, true},
		{"-5", -5, true},
		{"", 0, false},
		{"1:60", 0, false},
		{"1.5:00", 0, false},
		{"1:-5", 0, false},
		{"1:2:3:4", 0, false},
		{"1:", 0, false},
		{"NaN", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseSeconds(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("parseSeconds(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestResolveTrimUnknownDuration(t *testing.T) {
	w, err := ResolveTrim("5", "500", 0)
	if err != nil {
		t.Fatal(err)
	}
	if w.End != 500 || w.Length(0) != 495*time.Second {
		t.Fatalf("unexpected window for unknown duration: %+v", w)
	}
}

func TestEncodeFraction(t *testing.T) {
	if got := encodeFraction(0, 10*time.Second); got != probedFraction {
		t.Fatalf("start fraction = %v", got)
	}
	if got := encodeFraction(20*time.Second, 10*time.Second); math.Abs(got-encodedFraction) > 1e-9 {
		t.Fatalf("overshoot should cap at %v, got %v", encodedFraction, got)
	}
	a := encodeFraction(30*time.Second, 0)
	b := encodeFraction(90*time.Second, 0)
	if !(a > probedFraction && b > a && b < encodedFraction) {
		t.Fatalf("unknown-length progress should creep forward: %v %v", a, b)
	}
}
