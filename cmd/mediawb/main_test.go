package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"
	"github.com/jedib0t/go-pretty/v6/text"

	workbench "github.com/Skryldev/media-workbench"
	"github.com/Skryldev/media-workbench/pkg/progress"
)

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected path in output, got %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigInitSkipsBrokenConfig(t *testing.T) {
	broken := writeConfig(t, "not = [valid")
	target := filepath.Join(t.TempDir(), "config.toml")
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, broken); err != nil {
		t.Fatalf("config init should not load the existing config: %v", err)
	}
}

func TestConfigShowReportsSource(t *testing.T) {
	path := writeConfig(t, "[audio]\nformat = \"flac\"\nbitrate = \"\"\n")

	out, _, err := runCLI(t, []string{"config", "show"}, path)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "# source: "+path) {
		t.Fatalf("missing source line in %q", out)
	}
	if strings.Contains(out, "not found") {
		t.Fatalf("existing file reported missing: %q", out)
	}
	if !strings.Contains(out, "format = 'flac'") && !strings.Contains(out, `format = "flac"`) {
		t.Fatalf("override not reflected in %q", out)
	}

	missing := filepath.Join(t.TempDir(), "absent.toml")
	out, _, err = runCLI(t, []string{"config", "show"}, missing)
	if err != nil {
		t.Fatalf("config show with missing file: %v", err)
	}
	if !strings.Contains(out, "not found, using defaults") {
		t.Fatalf("expected defaults notice, got %q", out)
	}
}

func TestInvalidConfigFailsCommands(t *testing.T) {
	path := writeConfig(t, "[audio]\nformat = \"mp4\"\n")
	if _, _, err := runCLI(t, []string{"presets"}, path); err == nil {
		t.Fatal("expected invalid config to fail")
	}
}

func TestPresetsListsBuiltinsAndConfigured(t *testing.T) {
	path := writeConfig(t, `[[presets]]
name = "radio"
format = "mp3"
bitrate = "192k"
normalize = true
`)
	out, _, err := runCLI(t, []string{"presets"}, path)
	if err != nil {
		t.Fatalf("presets: %v", err)
	}
	for _, want := range []string{"streaming", "podcast", "archive", "mobile", "radio", "192k"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestProcessRequiresFiles(t *testing.T) {
	if _, _, err := runCLI(t, []string{"process"}, writeConfig(t, "")); err == nil {
		t.Fatal("expected error without input files")
	}
}

func TestProcessRefusesLockedOutputDir(t *testing.T) {
	out := t.TempDir()
	held := flock.New(filepath.Join(out, lockFileName))
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("take lock: locked=%v err=%v", locked, err)
	}
	defer held.Unlock()

	input := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(input, []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err = runCLI(t, []string{"process", "--out", out, input}, writeConfig(t, ""))
	if err == nil || !strings.Contains(err.Error(), "another mediawb process") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestProgressPrinterThrottles(t *testing.T) {
	var buf bytes.Buffer
	names := &sync.Map{}
	names.Store("a1", "song.wav")
	r := progressPrinter(&buf, names)

	r.Report(progress.Update{ItemID: "a1", Kind: "audio", Stage: progress.StageQueued})
	r.Report(progress.Update{ItemID: "", Kind: "audio", Stage: progress.StageBootstrap})
	for _, pct := range []int{0, 5, 10, 30, 40, 55, 100} {
		r.Report(progress.Update{ItemID: "a1", Kind: "audio", Stage: progress.StageProcessing, Percent: pct})
	}
	r.Report(progress.Update{ItemID: "a1", Kind: "audio", Stage: progress.StageCompleted})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// bootstrap, 0%, 30%, 55%, 100%, completed
	if len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "song.wav") {
		t.Fatalf("expected item name, got %q", lines[1])
	}
	if !strings.HasSuffix(lines[5], "completed") {
		t.Fatalf("unexpected final line %q", lines[5])
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]tableColumn{{Header: "A"}, {Header: "B", AlignRight: true}}, [][]string{{"only"}}, false)
	if !strings.Contains(out, "only") || !strings.Contains(out, "A") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if renderTable(nil, nil, false) != "" {
		t.Fatal("expected empty table for no columns")
	}
}

func TestRenderTableColorsStatus(t *testing.T) {
	text.EnableColors()
	rows := resultRows([]workbench.QueueItem{
		{ID: "a1", Kind: workbench.KindAudio, Source: workbench.File{Name: "song.wav"}, Status: workbench.StatusCompleted},
		{ID: "i1", Kind: workbench.KindImage, Source: workbench.File{Name: "bad.png"}, Status: workbench.StatusError, Error: "decode failed"},
	}, []workbench.ExportedFile{{ItemID: "a1", Path: "/out/Song_processed.mp3", Bytes: 2048}})

	if rows[0][4] != "/out/Song_processed.mp3" || rows[0][3] != "2048" {
		t.Fatalf("completed row should show the export: %v", rows[0])
	}
	if rows[1][4] != "decode failed" || rows[1][3] != "" {
		t.Fatalf("failed row should show the error: %v", rows[1])
	}

	plain := renderTable(resultColumns, rows, false)
	if strings.Contains(plain, "\x1b[") {
		t.Fatalf("plain output must not carry escape codes:\n%s", plain)
	}
	colored := renderTable(resultColumns, rows, true)
	if !strings.Contains(colored, text.FgGreen.Sprint("completed")) && !strings.Contains(colored, "\x1b[32m") {
		t.Fatalf("completed status should be green:\n%s", colored)
	}
	if !strings.Contains(colored, "\x1b[") || !strings.Contains(colored, "decode failed") {
		t.Fatalf("expected colored status column:\n%s", colored)
	}
}
