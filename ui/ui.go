// Package ui provides the practice TUI: a word list that pronounces the
// selected word through the playback service.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/indent"
	te "github.com/muesli/termenv"

	"github.com/wordsprout/wordsprout/internal/cache"
	"github.com/wordsprout/wordsprout/internal/capability"
	"github.com/wordsprout/wordsprout/internal/content"
	"github.com/wordsprout/wordsprout/internal/diagnostics"
	"github.com/wordsprout/wordsprout/internal/gesture"
	"github.com/wordsprout/wordsprout/playback"
)

const (
	statusMessageTimeout = time.Second * 3
	ellipsis             = "…"
)

// Service is the part of the playback service the TUI drives.
type Service interface {
	Pronounce(ctx context.Context, req playback.Request) playback.Outcome
	Stop()
	ObserveInput(ev gesture.Event) bool
	CanPlay() bool
	Prompt() string
	Feedback(ctx context.Context, f playback.Feedback) error
	SetSoundEnabled(enabled bool)
	SoundEnabled() bool
	Profile() capability.Profile
	CacheStats() cache.Stats
	LogStats() diagnostics.Stats
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, svc Service, catalog *content.Catalog) *tea.Program {
	log.Debug("Starting practice TUI", "mouse", cfg.EnableMouse, "category", cfg.Category)

	if cfg.NoColor {
		lipgloss.SetColorProfile(te.Ascii)
	} else {
		lipgloss.SetHasDarkBackground(te.HasDarkBackground())
	}

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, svc, catalog), opts...)
}

type (
	pronouncedMsg struct {
		seq     int
		outcome playback.Outcome
	}
	clearDisplayMsg         struct{ seq int }
	statusMessageTimeoutMsg struct{ seq int }
)

// state is the top-level application state.
type state int

const (
	stateBrowse state = iota
	stateFilter
)

func (s state) String() string {
	return map[state]string{
		stateBrowse: "browsing words",
		stateFilter: "filtering words",
	}[s]
}

type commonModel struct {
	cfg    Config
	width  int
	height int
}

type model struct {
	common   *commonModel
	svc      Service
	state    state
	fatalErr error
	showHelp bool

	list        wordList
	filterInput textinput.Model
	spinner     spinner.Model

	pronouncing bool
	current     string
	seq         int // incremented for every request; stale replies are dropped
	last        *playback.Outcome
	display     string

	statusMessage    string
	statusMessageSeq int
}

func newModel(cfg Config, svc Service, catalog *content.Catalog) model {
	common := &commonModel{cfg: cfg}

	entries := catalog.Words
	if cfg.Category != "" {
		entries = catalog.InCategory(cfg.Category)
	}

	fi := textinput.New()
	fi.Prompt = "Find: "
	fi.PromptStyle = lipgloss.NewStyle().Foreground(fuchsia)
	fi.Cursor.Style = lipgloss.NewStyle().Foreground(fuchsia)
	fi.CharLimit = 32

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(fuchsia)

	m := model{
		common:      common,
		svc:         svc,
		state:       stateBrowse,
		list:        newWordList(entries),
		filterInput: fi,
		spinner:     sp,
	}
	if len(entries) == 0 {
		m.fatalErr = fmt.Errorf("no words in category %q", cfg.Category)
	}
	return m
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmds = append(cmds, m.observe(gesture.EventKeyDown))
		if m.state == stateFilter {
			return m.updateFilter(msg, cmds)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			m.svc.Stop()
			return m, tea.Quit

		case "ctrl+z":
			return m, tea.Suspend

		case "up", "k":
			m.list.moveUp()

		case "down", "j":
			m.list.moveDown()

		case "enter", " ":
			cmds = append(cmds, m.pronounceSelected())

		case "/":
			m.state = stateFilter
			cmds = append(cmds, m.filterInput.Focus())

		case "esc":
			if m.list.filter != "" {
				m.filterInput.SetValue("")
				m.list.applyFilter("")
			}

		case "s":
			m.svc.Stop()

		case "m":
			m.svc.SetSoundEnabled(!m.svc.SoundEnabled())
			text := "Sound on"
			if !m.svc.SoundEnabled() {
				text = "Sound off"
			}
			cmds = append(cmds, m.showStatusMessage(text))

		case "?":
			m.showHelp = !m.showHelp
			m.resize()
		}

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress {
			switch msg.Button { //nolint:exhaustive
			case tea.MouseButtonWheelUp:
				m.list.moveUp()
			case tea.MouseButtonWheelDown:
				m.list.moveDown()
			default:
				cmds = append(cmds, m.observe(gesture.EventPointerDown))
			}
		}

	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.resize()

	case spinner.TickMsg:
		if m.pronouncing {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case pronouncedMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.pronouncing = false
		out := msg.outcome
		m.last = &out
		log.Debug("Pronunciation finished", "text", out.Text, "outcome", out)

		switch {
		case out.Kind == playback.DegradedToText:
			m.display = out.Text
			seq := m.seq
			cmds = append(cmds, tea.Tick(out.DisplayFor, func(time.Time) tea.Msg {
				return clearDisplayMsg{seq}
			}))
		case out.Kind == playback.Failed && out.Reason == playback.ReasonGestureRequired:
			cmds = append(cmds, m.showStatusMessage(out.Prompt))
		}

	case clearDisplayMsg:
		if msg.seq == m.seq {
			m.display = ""
		}

	case statusMessageTimeoutMsg:
		if msg.seq == m.statusMessageSeq {
			m.statusMessage = ""
		}
	}

	return m, tea.Batch(cmds...)
}

func (m model) updateFilter(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.svc.Stop()
		return m, tea.Quit
	case "esc":
		m.filterInput.SetValue("")
		m.list.applyFilter("")
		m.filterInput.Blur()
		m.state = stateBrowse
		return m, tea.Batch(cmds...)
	case "enter", "tab", "up", "down":
		m.filterInput.Blur()
		m.state = stateBrowse
		if msg.String() == "enter" && m.list.Len() == 1 {
			cmds = append(cmds, m.pronounceSelected())
		}
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	m.list.applyFilter(m.filterInput.Value())
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// observe feeds an input event to the gesture gate.
func (m *model) observe(kind gesture.EventKind) tea.Cmd {
	if m.svc.ObserveInput(gesture.Event{Kind: kind}) {
		log.Debug("Audio unlocked", "event", kind)
		return m.showStatusMessage("Sound is on")
	}
	return nil
}

// pronounceSelected starts pronouncing the highlighted word. A new request
// replaces the one in flight.
func (m *model) pronounceSelected() tea.Cmd {
	entry, ok := m.list.selected()
	if !ok {
		return nil
	}
	m.seq++
	m.pronouncing = true
	m.current = entry.Text
	m.display = ""

	say := pronounceCmd(m.svc, entry, m.seq)
	if m.common.cfg.FeedbackTones {
		// the tap has to finish before the word starts or it is cut off
		say = tea.Sequence(feedbackCmd(m.svc, playback.FeedbackTap), say)
	}
	return tea.Batch(m.spinner.Tick, say)
}

func (m *model) showStatusMessage(text string) tea.Cmd {
	m.statusMessage = text
	m.statusMessageSeq++
	seq := m.statusMessageSeq
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{seq}
	})
}

func (m *model) resize() {
	// header, blank line, filter, blank line, display box, status bar
	reserved := 8
	if m.showHelp {
		reserved += strings.Count(m.helpView(), "\n") + 1
	}
	m.list.setHeight(m.common.height - reserved)
	m.filterInput.Width = max(10, m.common.width-10)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n\n")

	if m.state == stateFilter || m.list.filter != "" {
		b.WriteString("  " + m.filterInput.View() + "\n\n")
	}

	b.WriteString(m.list.view(m.common.cfg.ShowCategory))
	b.WriteString("\n\n")

	if m.display != "" {
		b.WriteString(indent.String(degradedView(m.display, m.common.width), 2))
		b.WriteString("\n")
	}

	if m.showHelp {
		b.WriteString(m.helpView())
		b.WriteString("\n")
	}

	b.WriteString(m.statusBar())
	return b.String()
}

func (m model) headerView() string {
	p := m.svc.Profile()
	sound := "sound on"
	if !m.svc.SoundEnabled() {
		sound = "sound off"
	}
	return subtleStyle.Render(fmt.Sprintf("  %s · %s · %d words · %s",
		p.PlatformID, p.DeviceClass, m.list.Len(), sound))
}

func (m model) statusBar() string {
	if m.statusMessage != "" {
		return statusBarView(m.common.width, m.statusMessage, true)
	}

	var note string
	switch {
	case m.pronouncing:
		note = m.spinner.View() + " " + m.current
	case !m.svc.CanPlay():
		note = promptStyle.Render(m.svc.Prompt())
	case m.last != nil:
		icon, color := outcomeIcon(*m.last)
		note = lipgloss.NewStyle().Foreground(color).Render(icon) + " " + describeOutcome(*m.last)
	default:
		note = "Press enter to hear a word"
	}
	return statusBarView(m.common.width, note, false)
}

func (m model) helpView() string {
	lines := []string{
		"  enter/space  say word      /      find word",
		"  ↑/k ↓/j      move          esc    clear filter",
		"  s            stop          m      sound on/off",
		"  q            quit          ?      close help",
	}
	if m.last != nil {
		if trail := attemptTrail(*m.last); trail != "" {
			lines = append(lines, "", "  last: "+trail)
		}
	}
	st := m.svc.CacheStats()
	ls := m.svc.LogStats()
	lines = append(lines,
		fmt.Sprintf("  cache: %d/%d recordings, %.0f%% hits", st.Size, st.MaxSize, st.HitRate*100),
		fmt.Sprintf("  log:   %d records, %d errors", ls.Total, ls.ErrorCount))
	return helpViewStyle(strings.Join(lines, "\n"))
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent.String(s, 3)
}

// COMMANDS

func pronounceCmd(svc Service, entry content.Entry, seq int) tea.Cmd {
	return func() tea.Msg {
		out := svc.Pronounce(context.Background(), playback.Request{
			Text:             entry.Text,
			Language:         entry.Language,
			FallbackAssetKey: entry.Asset,
		})
		return pronouncedMsg{seq: seq, outcome: out}
	}
}

func feedbackCmd(svc Service, f playback.Feedback) tea.Cmd {
	return func() tea.Msg {
		if err := svc.Feedback(context.Background(), f); err != nil {
			log.Debug("Feedback tone failed", "error", err)
		}
		return nil
	}
}
