package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tatianab/prairie/internal/session"
)

// Renderer forwards session events into the running bubbletea program.
type Renderer struct {
	p *tea.Program
}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) RenderTurn(v session.TurnView) { r.send(turnMsg(v)) }
func (r *Renderer) RenderMessage(msg string)      { r.send(systemMsg(msg)) }
func (r *Renderer) RenderError(msg string)        { r.send(errorMsg(msg)) }
func (r *Renderer) RequestConfiguration()         { r.send(configNeededMsg{}) }

func (r *Renderer) send(msg tea.Msg) {
	if r.p != nil {
		r.p.Send(msg)
	}
}

// Run drives ctrl until the player quits. r must be the renderer ctrl was
// built with.
func Run(ctrl *session.Controller, r *Renderer) error {
	p := tea.NewProgram(newModel(ctrl), tea.WithAltScreen())
	r.p = p
	_, err := p.Run()
	return err
}
