// Package report renders lint results for people (styled text) and for
// machines (JSON).
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/joblint/internal/expressions"
	"github.com/rendis/joblint/pkg/schema"
)

// Report is the outcome of linting one document.
type Report struct {
	Source   string                   `json:"source"`
	RunID    string                   `json:"run_id,omitempty"`
	Messages []schema.Finding         `json:"messages"`
	Warnings int                      `json:"warnings"`
	Errors   int                      `json:"errors"`
	Hidden   int                      `json:"hidden,omitempty"`
	Failed   bool                     `json:"failed"`
	Policy   string                   `json:"policy,omitempty"`
	Schema   *schema.ValidationResult `json:"schema,omitempty"`
}

// New snapshots a FindingLog into a Report. Counters always reflect the
// whole log, even after findings are hidden by a filter.
func New(source, runID string, log *schema.FindingLog) *Report {
	msgs := log.Findings()
	if msgs == nil {
		msgs = []schema.Finding{}
	}
	return &Report{
		Source:   source,
		RunID:    runID,
		Messages: msgs,
		Warnings: log.Warnings(),
		Errors:   log.Errors(),
	}
}

// Filter hides the findings the filter rejects. A nil filter keeps all.
func (r *Report) Filter(ctx context.Context, f *expressions.FindingFilter) error {
	kept, err := f.Apply(ctx, r.Messages)
	if err != nil {
		return err
	}
	r.Hidden += len(r.Messages) - len(kept)
	r.Messages = kept
	return nil
}

// Gate records the outcome of the failure policy.
func (r *Report) Gate(policy string, failed bool) {
	r.Policy = policy
	r.Failed = failed
}

// Summary is a one-line count of the findings.
func (r *Report) Summary() string {
	s := fmt.Sprintf("%s, %s", plural(r.Errors, "error"), plural(r.Warnings, "warning"))
	if r.Hidden > 0 {
		s += fmt.Sprintf(" (%d hidden)", r.Hidden)
	}
	return s
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// WriteJSON writes reports as an indented JSON array.
func WriteJSON(w io.Writer, reports ...*Report) error {
	if reports == nil {
		reports = []*Report{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

// TextOptions controls text rendering.
type TextOptions struct {
	// Color enables lipgloss styling. Styles still degrade to plain text
	// when w is not a color-capable terminal.
	Color bool
}

var (
	colorError   = lipgloss.AdaptiveColor{Light: "#D73737", Dark: "#FF5555"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#B7791A", Dark: "#F1FA8C"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#2D6A2D", Dark: "#50FA7B"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#9A9A9A"}
)

type styles struct {
	source, errLabel, warnLabel, schemaLabel, ok, failed, muted lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain}
	}
	r := lipgloss.NewRenderer(w)
	return styles{
		source:      r.NewStyle().Bold(true).Underline(true),
		errLabel:    r.NewStyle().Foreground(colorError).Bold(true),
		warnLabel:   r.NewStyle().Foreground(colorWarning),
		schemaLabel: r.NewStyle().Foreground(colorMuted).Italic(true),
		ok:          r.NewStyle().Foreground(colorSuccess).Bold(true),
		failed:      r.NewStyle().Foreground(colorError).Bold(true),
		muted:       r.NewStyle().Foreground(colorMuted),
	}
}

// WriteText writes each report as a titled block of findings followed by
// a summary line.
func WriteText(w io.Writer, opts TextOptions, reports ...*Report) error {
	st := newStyles(w, opts.Color)

	var b strings.Builder
	for i, r := range reports {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(st.source.Render(r.Source))
		b.WriteByte('\n')

		for _, f := range r.Messages {
			label := st.warnLabel.Render(fmt.Sprintf("%-8s", "warning"))
			if f.Kind == schema.FindingError {
				label = st.errLabel.Render(fmt.Sprintf("%-8s", "error"))
			}
			fmt.Fprintf(&b, "  %s %s\n", label, f.Text)
		}

		if r.Schema != nil {
			for _, issue := range r.Schema.Errors {
				fmt.Fprintf(&b, "  %s %s\n", st.schemaLabel.Render(fmt.Sprintf("%-8s", "schema")), issue.String())
			}
			for _, issue := range r.Schema.Warnings {
				fmt.Fprintf(&b, "  %s %s\n", st.muted.Render(fmt.Sprintf("%-8s", "advice")), issue.String())
			}
		}

		verdict := st.ok.Render("ok")
		if r.Failed {
			verdict = st.failed.Render("FAILED")
		}
		fmt.Fprintf(&b, "  %s %s\n", verdict, st.muted.Render(r.Summary()))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
