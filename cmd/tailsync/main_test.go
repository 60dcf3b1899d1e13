package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/modoterra/tailsync/pkg/core"
	"github.com/modoterra/tailsync/pkg/manifest"
)

// execute runs the root command with fresh flag values.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, fs := range []*pflag.FlagSet{rootCmd.Flags(), rootCmd.PersistentFlags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				sv.Replace(nil)
			} else {
				f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}

	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "tailsync dev") {
		t.Errorf("version output: %q", out)
	}
}

func TestConfigValidateCommand(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "tailsync.yaml")
	content := []byte(`version: 1
root: /var/log/app
sources:
  - "${root}/a.log"
  - "${root}/b.log"
`)
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "config", "validate", tmp)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "valid (2 sources)") {
		t.Errorf("output: %q", out)
	}
}

func TestConfigValidateInvalid(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "bad.yaml")
	content := []byte(`version: 2
sources: [a.log, a.log]
`)
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "config", "validate", tmp)
	if err == nil {
		t.Fatal("expected error for invalid manifest")
	}
	if !strings.Contains(out, "2 error(s)") {
		t.Errorf("output: %q", out)
	}
}

func TestConfigInit(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"api.log", "worker.log"} {
		if err := os.WriteFile(filepath.Join(root, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	tmp := filepath.Join(t.TempDir(), "tailsync.toml")
	out, err := execute(t, "config", "init", "--dir", root, "--output", tmp, "--report", "out.csv")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "with 2 sources") {
		t.Errorf("output: %q", out)
	}

	m, err := manifest.Load(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Sources) != 2 || m.Output != "out.csv" {
		t.Errorf("generated manifest: %+v", m)
	}
}

func TestCaptureRequiresSources(t *testing.T) {
	_, err := execute(t)
	if err == nil || !strings.Contains(err.Error(), "no log files") {
		t.Errorf("expected missing sources error, got %v", err)
	}
}

func TestCaptureInvalidPrecision(t *testing.T) {
	for _, p := range []string{"0", "-10", "9223372036855"} {
		_, err := execute(t, "-l", "a.log,b.log", "--precision="+p)
		if !errors.Is(err, core.ErrInvalidPrecision) {
			t.Errorf("precision %s: got %v", p, err)
		}
	}
}

func TestCaptureErrorPrintedOnce(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing", "a.log")
	out, err := execute(t, "-l", missing)
	if err == nil || !strings.Contains(err.Error(), "add source") {
		t.Fatalf("expected add source error, got %v", err)
	}
	if n := strings.Count(out, "add source"); n != 1 {
		t.Errorf("error printed %d times:\n%s", n, out)
	}
}

func TestCaptureUnknownFormat(t *testing.T) {
	_, err := execute(t, "-l", "a.log", "-f", "xml")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected format error, got %v", err)
	}
}

func TestResolveManifestFlagsOverride(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "tailsync.yaml")
	content := []byte(`version: 1
sources: [a.log, b.log]
output: from-manifest.csv
precision_ms: 250
`)
	if err := os.WriteFile(cfg, content, 0644); err != nil {
		t.Fatal(err)
	}

	// Parse flags without running the capture.
	execute(t, "version")
	if err := rootCmd.ParseFlags([]string{"-c", cfg, "-o", "override.json"}); err != nil {
		t.Fatal(err)
	}
	m, err := resolveManifest(rootCmd)
	if err != nil {
		t.Fatal(err)
	}
	if m.Output != "override.json" {
		t.Errorf("output: got %q", m.Output)
	}
	if m.PrecisionMS != 250 {
		t.Errorf("precision from manifest lost: %d", m.PrecisionMS)
	}
	if len(m.Sources) != 2 {
		t.Errorf("sources: %v", m.Sources)
	}
	if m.Socket != "" {
		t.Errorf("socket enabled without --socket: %q", m.Socket)
	}
}
