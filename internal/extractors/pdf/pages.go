package pdf

import "strings"

// cleanPages turns pdftotext form feeds into blank lines and trims
// trailing whitespace from layout padding.
func cleanPages(text string) string {
	text = strings.ReplaceAll(text, "\f", "\n\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
