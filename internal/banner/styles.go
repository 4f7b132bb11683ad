package banner

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/health"
)

// styles renders for one writer. Writers that are not terminals get plain
// text.
type styles struct {
	logo    lipgloss.Style
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	dim     lipgloss.Style
	ok      lipgloss.Style
	warning lipgloss.Style
	fail    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		logo:    r.NewStyle().Foreground(lipgloss.Color("#7eb8da")),             // steel blue
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7eb8da")), // steel blue
		label:   r.NewStyle().Foreground(lipgloss.Color("#c9d1d9")),             // light gray
		value:   r.NewStyle().Foreground(lipgloss.Color("#7eb8da")),             // steel blue
		dim:     r.NewStyle().Foreground(lipgloss.Color("#8b949e")),             // mid gray
		ok:      r.NewStyle().Foreground(lipgloss.Color("#7ec699")),             // sage green
		warning: r.NewStyle().Foreground(lipgloss.Color("#d4a054")),             // amber
		fail:    r.NewStyle().Foreground(lipgloss.Color("#d48a8a")),             // dusty rose
	}
}

// status renders a status symbol in its color.
func (s styles) status(st health.Status) string {
	switch st {
	case health.StatusOK:
		return s.ok.Render(st.Symbol())
	case health.StatusWarning:
		return s.warning.Render(st.Symbol())
	case health.StatusError:
		return s.fail.Render(st.Symbol())
	default:
		return s.dim.Render(st.Symbol())
	}
}
