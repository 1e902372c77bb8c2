// Package tui provides a terminal user interface for touch2midi
package tui

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/touch2midi/pkg/decoder"
	"github.com/james-see/touch2midi/pkg/script"
)

// Continuum-inspired color scheme (glowing blue over black)
var (
	glideBlue  = lipgloss.Color("#00BFFF")
	glideCyan  = lipgloss.Color("#7FFFD4")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(glideBlue).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(glideBlue).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(glideCyan).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(glideBlue).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateWorking
	StateResult
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Action      string
}

var menuItems = []MenuItem{
	{Title: "Script → RAW", Description: "Render a gesture script to a raw MIDI stream", Action: "raw"},
	{Title: "Script → MID", Description: "Render a gesture script to a standard MIDI file", Action: "smf"},
	{Title: "Decode stream", Description: "Decode a MIDI stream back into gesture events", Action: "decode"},
	{Title: "Exit", Description: "Exit the application", Action: ""},
}

// Model represents the TUI model
type Model struct {
	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	selectedFile string
	outputFile   string
	action       string
	err          error
	width        int
	height       int
}

// workDoneMsg signals completion of a render or decode
type workDoneMsg struct {
	outputFile string
	err        error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model
func New() Model {
	// Initialize file picker
	fp := filepicker.New()
	fp.AllowedTypes = []string{".json", ".bin", ".mid", ".midi"}
	fp.CurrentDirectory, _ = os.Getwd()

	// Initialize spinner
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(glideBlue)

	return Model{
		state:      StateMenu,
		menuIndex:  0,
		filePicker: fp,
		spinner:    s,
	}
}

// Update handles TUI updates. Lifecycle messages (resize, spinner ticks,
// work completion) are consumed here; everything else is routed to the
// handler for the current state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil
	case spinner.TickMsg:
		if m.state != StateWorking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case workDoneMsg:
		m.outputFile = msg.outputFile
		m.err = msg.err
		m.state = StateResult
		return m, nil
	}

	switch m.state {
	case StateMenu:
		return m.updateMenu(msg)
	case StateFilePicker:
		return m.updatePicker(msg)
	case StateResult:
		return m.updateResult(msg)
	}
	return m, nil
}

func (m Model) updateMenu(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		m.menuIndex = max(m.menuIndex-1, 0)
	case "down", "j":
		m.menuIndex = min(m.menuIndex+1, len(menuItems)-1)
	case "enter":
		return m.chooseMenuItem()
	}
	return m, nil
}

func (m Model) chooseMenuItem() (tea.Model, tea.Cmd) {
	item := menuItems[m.menuIndex]
	if item.Action == "" {
		return m, tea.Quit
	}
	m.action = item.Action
	if item.Action == "decode" {
		m.filePicker.AllowedTypes = []string{".bin", ".mid", ".midi"}
	} else {
		m.filePicker.AllowedTypes = []string{".json"}
	}
	m.state = StateFilePicker
	return m, m.filePicker.Init()
}

func (m Model) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.state = StateMenu
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)
	didSelect, path := m.filePicker.DidSelectFile(msg)
	if !didSelect {
		return m, cmd
	}
	m.selectedFile = path
	m.state = StateWorking
	return m, tea.Batch(m.spinner.Tick, m.performAction())
}

func (m Model) updateResult(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if s := key.String(); s == "q" || s == "ctrl+c" {
		return m, tea.Quit
	}
	// Any other key returns to the menu.
	m.state = StateMenu
	m.err = nil
	m.selectedFile = ""
	m.outputFile = ""
	return m, nil
}

func (m Model) performAction() tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(m.selectedFile)
		if err != nil {
			return workDoneMsg{err: err}
		}

		base := strings.TrimSuffix(m.selectedFile, filepath.Ext(m.selectedFile))
		var result []byte
		var outputFile string

		switch m.action {
		case "raw", "smf":
			s, err := script.Load(data)
			if err != nil {
				return workDoneMsg{err: err}
			}
			result, err = s.RenderBytes()
			if err != nil {
				return workDoneMsg{err: err}
			}
			outputFile = base + ".bin"
			if m.action == "smf" {
				result, err = script.WrapSMF(result)
				if err != nil {
					return workDoneMsg{err: err}
				}
				outputFile = base + ".mid"
			}
		case "decode":
			ext := strings.ToLower(filepath.Ext(m.selectedFile))
			if ext == ".mid" || ext == ".midi" {
				data, err = script.UnwrapSMF(data)
				if err != nil {
					return workDoneMsg{err: err}
				}
			}
			result, err = decodeToJSON(data)
			if err != nil {
				return workDoneMsg{err: err}
			}
			outputFile = base + ".events.json"
		}

		if err := os.WriteFile(outputFile, result, 0644); err != nil {
			return workDoneMsg{err: err}
		}

		return workDoneMsg{outputFile: outputFile}
	}
}

// decodeToJSON runs the stream through the decoder and marshals the engine
// events.
func decodeToJSON(data []byte) ([]byte, error) {
	type event struct {
		Channel  int     `json:"channel"`
		Attack   int     `json:"attack"`
		Pitch    float64 `json:"pitch"`
		Volume   float64 `json:"volume"`
		ExprParm int     `json:"exprParm"`
		Expr     int     `json:"expr"`
	}
	var events []event
	d := decoder.New(func(channel, attack int, pitch, volume float64, exprParm, expr int) {
		events = append(events, event{channel, attack, pitch, volume, exprParm, expr})
	})
	d.Feed(data)
	return json.MarshalIndent(events, "", "  ")
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("touch2midi"))
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateWorking:
		s.WriteString(m.viewWorking())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	// Footer help
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder
	for i, item := range menuItems {
		line := fmt.Sprintf("%s — %s", item.Title, item.Description)
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render("> " + line))
		} else {
			s.WriteString(menuStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}
	return s.String()
}

func (m Model) viewFilePicker() string {
	var s strings.Builder
	s.WriteString(statusStyle.Render("Pick a file:"))
	s.WriteString("\n")
	s.WriteString(m.filePicker.View())
	return s.String()
}

func (m Model) viewWorking() string {
	return statusStyle.Render(fmt.Sprintf("%s Working on %s...", m.spinner.View(), m.selectedFile))
}

func (m Model) viewResult() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}
	return successStyle.Render(fmt.Sprintf("Wrote %s", m.outputFile))
}

// Run starts the TUI
func Run() error {
	p := tea.NewProgram(New(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
