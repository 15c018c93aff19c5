// Package artifacts writes a finished run to disk for the CLI.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/mohammad-safakhou/deepresearch/internal/research"
)

const maxSlugLen = 48

// Writer lays out one directory per run:
//
//	{dir}/{YYYYMMDD-HHMMSS}-{slug}/
//	  plan.md
//	  subtasks.json
//	  report.md
//	  outcomes/{index}-{id}.md
type Writer struct {
	Dir string
}

// Write stores res and returns the run directory.
func (w Writer) Write(res *research.Result) (string, error) {
	if res == nil {
		return "", fmt.Errorf("artifacts: nil result")
	}
	stamp := res.StartedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	dir := filepath.Join(w.Dir, stamp.Format("20060102-150405")+"-"+slugify(res.Query))
	if err := os.MkdirAll(filepath.Join(dir, "outcomes"), 0o755); err != nil {
		return "", fmt.Errorf("artifacts: create run dir: %w", err)
	}

	subtasks, err := json.MarshalIndent(res.Subtasks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("artifacts: encode subtasks: %w", err)
	}
	files := map[string][]byte{
		"plan.md":       []byte(res.Plan),
		"subtasks.json": subtasks,
		"report.md":     []byte(res.Report),
	}
	for i, o := range res.Bundle {
		name := fmt.Sprintf("%02d-%s.md", i+1, slugify(o.SubtaskID))
		files[filepath.Join("outcomes", name)] = []byte(renderOutcome(o))
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
			return "", fmt.Errorf("artifacts: write %s: %w", name, err)
		}
	}
	return dir, nil
}

func renderOutcome(o research.WorkerOutcome) string {
	if o.Failed() {
		return fmt.Sprintf("# %s %s\n\n**Failed:** %s\n", o.SubtaskID, o.Title, o.Payload)
	}
	return o.Payload
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "research"
	}
	return out
}
