package repoingest

import (
	"strings"

	"code-analysis-api/internal/shared/telemetry"
)

const filePathMarker = `<file path="`

// ParseFiles extracts file contents from a repo-files bundle. Each file's
// lines are trimmed, blank lines dropped and "N: " line-number prefixes
// removed.
func ParseFiles(bundle string) (map[string]string, error) {
	start := strings.Index(bundle, "<files>")
	end := strings.Index(bundle, "</files>")
	if start == -1 || end == -1 || end < start {
		return nil, ErrMissingFilesSection
	}

	files := make(map[string]string)
	sections := strings.Split(bundle[start:end], filePathMarker)
	for _, section := range sections[1:] {
		pathEnd := strings.Index(section, `">`)
		contentEnd := strings.Index(section, "</file>")
		if pathEnd == -1 || contentEnd == -1 || contentEnd < pathEnd+2 {
			telemetry.Warn("repoingest.section_skipped", map[string]any{"section": preview(section)})
			continue
		}
		path := section[:pathEnd]
		files[path] = cleanContent(section[pathEnd+2 : contentEnd])
	}

	if len(files) == 0 {
		return nil, ErrNoFilesParsed
	}
	return files, nil
}

func cleanContent(content string) string {
	lines := make([]string, 0, strings.Count(content, "\n")+1)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if idx := strings.Index(line, ": "); idx > 0 && allDigits(strings.TrimSpace(line[:idx])) {
			line = line[idx+2:]
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func preview(s string) string {
	if len(s) > 80 {
		return s[:80]
	}
	return s
}
