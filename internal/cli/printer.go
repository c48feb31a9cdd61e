package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(16)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	phaseStyles = map[models.Phase]lipgloss.Style{
		models.PhaseInProgress:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		models.PhaseReviewPending: lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		models.PhaseTerminal:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
	}
)

// Printer renders cases and review screens for a terminal.
type Printer struct {
	out io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: w}
}

func statusBadge(s models.CaseStatus) string {
	style, ok := phaseStyles[s.Phase()]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}

func field(label, value string) string {
	return labelStyle.Render(label) + value
}

// Case prints the summary box of a case followed by its audit log.
func (p *Printer) Case(c *domain.Case) {
	lines := []string{
		headerStyle.Render(fmt.Sprintf("Case %d  %s", c.ID, c.BusinessName)),
		field("Status", statusBadge(c.Status)),
		field("External id", c.ExternalID),
		field("Owner", c.OwnerName),
	}
	if c.SourceDocumentRef != "" {
		lines = append(lines, field("Document", c.SourceDocumentRef))
	}
	if c.Status == models.StatusAwaitingReview {
		lines = append(lines, field("Review reason", c.ReviewReason), field("Raised in", string(c.ReviewTriggerState)))
	}
	if c.ErrorOrigin != "" {
		lines = append(lines, field("Failed in", string(c.ErrorOrigin)))
	}
	if c.FinalDecision != nil {
		lines = append(lines, field("Decision", c.FinalDecision.String()))
	}
	if c.FinalNotification != nil {
		lines = append(lines, field("Notified", c.FinalNotification.ToEmail))
	}
	fmt.Fprintln(p.out, boxStyle.Render(strings.Join(lines, "\n")))
	p.AuditLog(c.AuditLog)
}

func (p *Printer) AuditLog(lines []string) {
	for i, line := range lines {
		if strings.HasPrefix(line, "ERROR:") {
			line = errorStyle.Render(line)
		}
		fmt.Fprintf(p.out, "%3d  %s\n", i+1, line)
	}
}

// Step prints a transition and the audit lines it added.
func (p *Printer) Step(before, after *domain.Case) {
	fmt.Fprintf(p.out, "%s -> %s\n", statusBadge(before.Status), statusBadge(after.Status))
	if len(after.AuditLog) > len(before.AuditLog) {
		p.AuditLog(after.AuditLog[len(before.AuditLog):])
	}
}

func (p *Printer) Actions(actions []domain.CaseAction) {
	for _, a := range actions {
		fmt.Fprintf(p.out, "%s  %-12s %-22s %-10s %s\n",
			a.DateTime.UTC().Format("2006-01-02 15:04:05"), a.Type, a.Name, a.Actor, a.Text)
	}
}

func (p *Printer) Review(v *models.ReviewView) {
	options := make([]string, 0, len(v.Options))
	for _, o := range v.Options {
		options = append(options, string(o))
	}
	fmt.Fprintln(p.out, boxStyle.Render(strings.Join([]string{
		headerStyle.Render(fmt.Sprintf("Review case %d", v.CaseID)),
		field("Reason", v.Reason),
		field("Raised in", string(v.TriggerState)),
		field("Options", strings.Join(options, ", ")),
	}, "\n")))
	fmt.Fprintln(p.out, v.Digest)
}

func (p *Printer) Cases(cases []domain.Case) {
	for _, c := range cases {
		fmt.Fprintf(p.out, "%6d  %-24s %s\n", c.ID, statusBadge(c.Status), c.BusinessName)
	}
}

func (p *Printer) Error(err error) {
	fmt.Fprintln(p.out, errorStyle.Render("Error: "+err.Error()))
}
