package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// defaultWidth is used when the output is not a terminal.
const defaultWidth = 100

// palette is the colour set used for status output.
var palette = struct {
	Primary, Muted, Success, Warning, Error lipgloss.Color
}{
	Primary: lipgloss.Color("#7C3AED"),
	Muted:   lipgloss.Color("#6C7086"),
	Success: lipgloss.Color("#A6E3A1"),
	Warning: lipgloss.Color("#F9E2AF"),
	Error:   lipgloss.Color("#F38BA8"),
}

// styles renders status output. Colour is only used on terminals.
type styles struct {
	width int

	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newStyles(w io.Writer) *styles {
	r := lipgloss.NewRenderer(w)
	s := &styles{
		width:   defaultWidth,
		title:   r.NewStyle().Bold(true).Foreground(palette.Primary),
		label:   r.NewStyle().Bold(true),
		muted:   r.NewStyle().Foreground(palette.Muted),
		success: r.NewStyle().Foreground(palette.Success),
		warning: r.NewStyle().Foreground(palette.Warning),
		failure: r.NewStyle().Foreground(palette.Error),
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			s.width = width
		}
	}
	return s
}

// documentStatus colours a document status.
func (s *styles) documentStatus(st domain.DocumentStatus) string {
	switch st {
	case domain.DocumentIndexed:
		return s.success.Render(st.String())
	case domain.DocumentFailed:
		return s.failure.Render(st.String())
	case domain.DocumentProcessing:
		return s.warning.Render(st.String())
	default:
		return s.muted.Render(st.String())
	}
}

// jobStatus colours a job status.
func (s *styles) jobStatus(st domain.JobStatus) string {
	switch st {
	case domain.JobCompleted:
		return s.success.Render(st.String())
	case domain.JobFailed:
		return s.failure.Render(st.String())
	case domain.JobClaimed:
		return s.warning.Render(st.String())
	default:
		return s.muted.Render(st.String())
	}
}

// truncate shortens text to fit the output width after indent columns.
func (s *styles) truncate(text string, indent int) string {
	text = strings.Join(strings.Fields(text), " ")
	limit := s.width - indent
	if limit < 20 {
		limit = 20
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-3]) + "..."
}

// renderReport writes a document status report.
func renderReport(w io.Writer, r *domain.DocumentReport) {
	s := newStyles(w)
	d := r.Document

	fmt.Fprintln(w, s.title.Render("Document "+d.ID))
	fmt.Fprintf(w, "  %s %s\n", s.label.Render("Status:   "), s.documentStatus(d.Status))
	if job, ok := r.CurrentStage(); ok {
		fmt.Fprintf(w, "  %s %s\n", s.label.Render("Stage:    "), job.Stage)
	}
	fmt.Fprintf(w, "  %s %s\n", s.label.Render("Location: "), d.URL)
	fmt.Fprintf(w, "  %s %s\n", s.label.Render("Type:     "), d.FileType)
	if d.Checksum != "" {
		fmt.Fprintf(w, "  %s %s\n", s.label.Render("Checksum: "), d.Checksum)
	}
	if d.PendingChecksum != "" {
		fmt.Fprintf(w, "  %s %s (rerun after this run)\n", s.label.Render("Pending:  "), d.PendingChecksum)
	}
	fmt.Fprintf(w, "  %s %d\n", s.label.Render("Chunks:   "), r.ChunkCount)
	fmt.Fprintf(w, "  %s %s\n", s.label.Render("Updated:  "), formatTime(d.UpdatedAt))
	if d.LastError != "" {
		fmt.Fprintf(w, "  %s %s\n", s.label.Render("Error:    "), s.failure.Render(s.truncate(d.LastError, 14)))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, s.title.Render("Jobs"))
	if len(r.Jobs) == 0 {
		fmt.Fprintln(w, s.muted.Render("  (none)"))
	}
	for _, j := range r.Jobs {
		fmt.Fprintf(w, "  %-8s %s  attempts=%d", j.Stage, s.jobStatus(j.Status), j.Attempts)
		if j.Status == domain.JobPending && !j.NotBefore.IsZero() && j.NotBefore.After(time.Now()) {
			fmt.Fprintf(w, "  retry at %s", formatTime(j.NotBefore))
		}
		fmt.Fprintln(w)
		if j.Error != "" {
			fmt.Fprintf(w, "           %s\n", s.muted.Render(s.truncate(j.Error, 11)))
		}
	}

	if len(r.Artifacts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, s.title.Render("Artifacts"))
		for _, a := range r.Artifacts {
			fmt.Fprintf(w, "  %-15s %s\n", a.Type, a.URL)
		}
	}
}

// renderDocuments writes one line per document.
func renderDocuments(w io.Writer, docs []domain.Document) {
	s := newStyles(w)
	for i := range docs {
		d := &docs[i]
		fmt.Fprintf(w, "%s  %s  %s\n", d.ID, s.documentStatus(d.Status), d.Location())
		if d.LastError != "" {
			fmt.Fprintf(w, "    %s\n", s.muted.Render(s.truncate(d.LastError, 4)))
		}
	}
}

// renderStats writes job counts as a stage by status table.
func renderStats(w io.Writer, counts []domain.JobCount) {
	s := newStyles(w)
	statuses := []domain.JobStatus{domain.JobPending, domain.JobClaimed, domain.JobCompleted, domain.JobFailed}

	table := make(map[domain.Stage]map[domain.JobStatus]int)
	for _, c := range counts {
		if table[c.Stage] == nil {
			table[c.Stage] = make(map[domain.JobStatus]int)
		}
		table[c.Stage][c.Status] += c.Count
	}

	header := fmt.Sprintf("%-8s", "stage")
	for _, st := range statuses {
		header += fmt.Sprintf(" %10s", st)
	}
	fmt.Fprintln(w, s.title.Render(header))
	for _, stage := range domain.Stages() {
		line := fmt.Sprintf("%-8s", stage)
		for _, st := range statuses {
			line += fmt.Sprintf(" %10d", table[stage][st])
		}
		fmt.Fprintln(w, line)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
