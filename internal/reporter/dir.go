package reporter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// Files written by WriteDir.
const (
	FileJSON       = "report.json"
	FileMarkdown   = "report.md"
	FileMarkdownEN = "report_en.md"
	FileMarkdownZH = "report_zh-TW.md"
)

// WriteDir writes the JSON report and the markdown renderings into dir,
// creating it if needed. report.md is the English rendering.
func WriteDir(dir string, report *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	var js bytes.Buffer
	if err := writeJSON(&js, report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	var en, zh bytes.Buffer
	if err := writeMarkdown(&en, report, LangEnglish); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	if err := writeMarkdown(&zh, report, LangTraditional); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{FileJSON, js.Bytes()},
		{FileMarkdown, en.Bytes()},
		{FileMarkdownEN, en.Bytes()},
		{FileMarkdownZH, zh.Bytes()},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), f.data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}
