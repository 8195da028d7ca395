package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cvgrid/sequencer"
)

var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("84"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Bold(true)
)

// Model is the engine monitor: transport state on top, one row per track
// with activity, gate, CV and progress.
type Model struct {
	player   *sequencer.Player
	quitting bool
}

type UpdateMsg struct{}

type frameMsg time.Time

// NewModel creates the monitor for a player
func NewModel(player *sequencer.Player) Model {
	return Model{player: player}
}

func listenForUpdates(player *sequencer.Player) tea.Cmd {
	return func() tea.Msg {
		<-player.UpdateChan
		return UpdateMsg{}
	}
}

func frameTick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(listenForUpdates(m.player), frameTick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.player.Stop()
			return m, tea.Quit

		case " ":
			if m.player.Playing() {
				m.player.Stop()
			} else {
				m.player.Play()
			}

		case "r":
			m.player.Do(func(e *sequencer.Engine) {
				e.SetRecording(!e.State().Recording)
			})

		case "+", "=":
			m.player.Do(func(e *sequencer.Engine) {
				e.Project().SetTempo(e.Project().Tempo() + 5)
			})

		case "-", "_":
			m.player.Do(func(e *sequencer.Engine) {
				e.Project().SetTempo(e.Project().Tempo() - 5)
			})

		case "j", "down":
			m.player.Do(func(e *sequencer.Engine) {
				e.Project().SetSelectedTrackIndex(e.Project().SelectedTrackIndex() + 1)
			})

		case "k", "up":
			m.player.Do(func(e *sequencer.Engine) {
				e.Project().SetSelectedTrackIndex(e.Project().SelectedTrackIndex() - 1)
			})

		case "m":
			m.player.Do(func(e *sequencer.Engine) {
				t := e.Project().Track(e.Project().SelectedTrackIndex())
				t.SetMute(!t.Mute())
			})

		case "f":
			m.player.Do(func(e *sequencer.Engine) {
				t := e.Project().Track(e.Project().SelectedTrackIndex())
				t.SetFill(!t.Fill())
			})

		case "1", "2", "3", "4", "5", "6", "7", "8":
			pattern := int(msg.String()[0] - '1')
			m.player.Do(func(e *sequencer.Engine) {
				e.Project().Track(e.Project().SelectedTrackIndex()).RequestPattern(pattern)
			})
		}

	case UpdateMsg:
		return m, listenForUpdates(m.player)

	case frameMsg:
		return m, frameTick()
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var out strings.Builder

	playState := "STOP"
	if m.player.Playing() {
		playState = "PLAY"
	}

	var tempo float64
	var recording bool
	var selected int
	m.player.Do(func(e *sequencer.Engine) {
		tempo = e.Project().Tempo()
		recording = e.State().Recording
		selected = e.Project().SelectedTrackIndex()
	})

	recState := ""
	if recording {
		recState = "  REC"
	}

	out.WriteString("\n")
	out.WriteString(headerStyle.Render(fmt.Sprintf("cvgrid  %s  %3.0fbpm  tick:%08d%s", playState, tempo, m.player.CurrentTick(), recState)))
	out.WriteString("\n\n")

	m.player.Do(func(e *sequencer.Engine) {
		for i := 0; i < sequencer.TrackCount; i++ {
			track := e.Project().Track(i)
			te := e.TrackEngine(i)

			cursor := "  "
			if i == selected {
				cursor = "> "
			}

			gate := "○"
			if te.GateOutput(0) {
				gate = "●"
			}

			mute := " "
			if track.Mute() {
				mute = "M"
			}
			fill := " "
			if track.Fill() {
				fill = "F"
			}

			row := fmt.Sprintf("%sT%d %-7s %s %s%s  %+6.2fV  %s  pat:%2d",
				cursor, i+1, te.TrackMode(), gate, mute, fill,
				te.CvOutput(0), progressBar(te.SequenceProgress(), 16), track.Pattern()+1)

			switch {
			case i == selected:
				out.WriteString(selectedStyle.Render(row))
			case track.Mute():
				out.WriteString(mutedStyle.Render(row))
			case te.Activity():
				out.WriteString(activeStyle.Render(row))
			default:
				out.WriteString(row)
			}
			out.WriteString("\n")
		}
	})

	out.WriteString("\n")
	out.WriteString(dimStyle.Render("space:play  r:rec  j/k:track  m:mute  f:fill  1-8:pattern  +/-:tempo  q:quit"))
	out.WriteString("\n")

	return out.String()
}

func progressBar(progress float32, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float32(width-1))
	var b strings.Builder
	for i := 0; i < width; i++ {
		if i == filled {
			b.WriteString("▒")
		} else {
			b.WriteString("─")
		}
	}
	return b.String()
}
