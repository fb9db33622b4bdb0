// Package ui renders the terminal side of an interview: captions, the
// share link and advisory hints.
package ui

import (
	"interview_room/native/internal/domain"

	"github.com/pterm/pterm"
)

// Compile-time interface check.
var _ domain.CaptionRenderer = (*Captions)(nil)

// Captions prints caption lines, coloring the speaker by role.
type Captions struct {
	local domain.Role
}

func NewCaptions(local domain.Role) *Captions {
	return &Captions{local: local}
}

func (c *Captions) Render(line domain.CaptionLine) {
	style := pterm.NewStyle(pterm.FgLightMagenta, pterm.Bold)
	switch line.Sender {
	case c.local:
		style = pterm.NewStyle(pterm.FgLightCyan, pterm.Bold)
	case domain.RoleCandidate, domain.RoleRecruiter:
		style = pterm.NewStyle(pterm.FgLightGreen, pterm.Bold)
	}
	pterm.Printfln("%s: %s", style.Sprint(line.Sender), line.Text)
}

// Banner prints the room and role once the peer starts.
func Banner(version, room string, role domain.Role) {
	pterm.Info.Printfln("Interview Room v%s", version)
	pterm.Printfln("room %s, joined as %s", pterm.Bold.Sprint(room), pterm.Bold.Sprint(role))
	pterm.Println()
}

// ShareBox shows the link a recruiter sends to the candidate.
func ShareBox(link string) {
	pterm.DefaultBox.WithTitle("Share with the candidate").Println(link)
	pterm.Println()
}

// Hint prints an advisory message. Failures never affect the session.
func Hint(text string, err error) {
	if err != nil {
		pterm.Error.Println(err.Error())
		return
	}
	if text != "" {
		pterm.Success.Println(text)
	}
}

// State prints a session state change.
func State(state domain.SessionState, err error) {
	switch {
	case err != nil:
		pterm.Error.Printfln("session %s: %v", state, err)
	case state == domain.StateConnected:
		pterm.Success.Printfln("session %s", state)
	default:
		pterm.Info.Printfln("session %s", state)
	}
}

// Help lists the interactive commands.
func Help() {
	pterm.DefaultSection.Println("Commands")
	rows := [][]string{{"Command", "Action"}}
	for _, c := range commandHelp {
		rows = append(rows, []string{c.usage, c.text})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	pterm.Println("Any other line is sent as your caption.")
	pterm.Println()
}
