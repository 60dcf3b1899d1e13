package manifest

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/modoterra/tailsync/pkg/report"
)

// MaxPrecisionMS is the largest step that still fits in a time.Duration.
const MaxPrecisionMS = int64(math.MaxInt64 / int64(time.Millisecond))

// Validate checks the manifest for structural correctness.
func Validate(m *Manifest) []error {
	var errs []error

	if m.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", m.Version))
	}

	if len(m.Sources) == 0 {
		errs = append(errs, fmt.Errorf("manifest must define at least one source"))
	}

	seen := make(map[string]int, len(m.Sources))
	for i, src := range m.Sources {
		if strings.TrimSpace(src) == "" {
			errs = append(errs, fmt.Errorf("source %d: path is required", i))
			continue
		}
		// a.log and ./a.log name one file and would share one tail.
		key := sourceKey(src)
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("source %d: %q duplicates source %d (%q)", i, src, prev, m.Sources[prev]))
			continue
		}
		seen[key] = i
	}

	if m.PrecisionMS < 0 {
		errs = append(errs, fmt.Errorf("precision_ms must be positive, got %d", m.PrecisionMS))
	} else if int64(m.PrecisionMS) > MaxPrecisionMS {
		errs = append(errs, fmt.Errorf("precision_ms must be at most %d, got %d", MaxPrecisionMS, m.PrecisionMS))
	}

	if f, err := report.ParseFormat(m.Format); err != nil {
		errs = append(errs, err)
	} else if f == report.FormatSQLite && m.Output == report.Stdout {
		errs = append(errs, fmt.Errorf("format sqlite needs an output file, not stdout"))
	}

	return errs
}

func sourceKey(src string) string {
	if abs, err := filepath.Abs(src); err == nil {
		return abs
	}
	return filepath.Clean(src)
}
