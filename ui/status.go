package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/wordsprout/wordsprout/playback"
)

var (
	fuchsia  = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}
	green    = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	red      = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	yellow   = lipgloss.AdaptiveColor{Light: "#C48D00", Dark: "#ECFD65"}
	gray     = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	darkGray = lipgloss.AdaptiveColor{Light: "#DDDADA", Dark: "#3C3C3C"}

	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(fuchsia).
			Bold(true)

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1F1F1")).
			Background(red).
			Padding(0, 1)

	subtleStyle = lipgloss.NewStyle().Foreground(gray)

	promptStyle = lipgloss.NewStyle().
			Foreground(yellow).
			Bold(true)

	degradedStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(fuchsia).
			Padding(1, 4).
			Bold(true)

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Render
)

// reasonText is the user-facing explanation of a failure reason.
var reasonText = map[playback.Reason]string{
	playback.ReasonGestureRequired:        "Press any key to turn on sound",
	playback.ReasonStrategyUnavailable:    "No way to play audio here",
	playback.ReasonSynthesisEngineError:   "Speech engine failed",
	playback.ReasonMediaFetchTimeout:      "Recording took too long to load",
	playback.ReasonMediaPlaybackError:     "Recording could not be played",
	playback.ReasonCancelled:              "Stopped",
	playback.ReasonAllStrategiesExhausted: "Could not play this word",
	playback.ReasonSoundDisabled:          "Sound is off",
}

// outcomeIcon returns the status icon and color for an outcome.
func outcomeIcon(o playback.Outcome) (string, lipgloss.TerminalColor) {
	switch o.Kind {
	case playback.Completed:
		return "▶", green
	case playback.DegradedToText:
		return "▤", yellow
	case playback.Failed:
		if o.Reason == playback.ReasonCancelled {
			return "◼", gray
		}
		if o.Reason == playback.ReasonGestureRequired || o.Reason == playback.ReasonSoundDisabled {
			return "🔇", yellow
		}
		return "✗", red
	default:
		return "⟳", fuchsia
	}
}

// describeOutcome returns a one-line summary of an outcome.
func describeOutcome(o playback.Outcome) string {
	switch o.Kind {
	case playback.Completed:
		if o.Strategy == playback.StrategyMedia {
			return fmt.Sprintf("Played recording of %q", o.Text)
		}
		return fmt.Sprintf("Said %q", o.Text)
	case playback.DegradedToText:
		return fmt.Sprintf("Showing %q (no audio)", o.Text)
	case playback.Failed:
		if s, ok := reasonText[o.Reason]; ok {
			return s
		}
		return string(o.Reason)
	default:
		return "Playing…"
	}
}

// attemptTrail renders the strategies a request went through, for the help
// panel: "speech ✗ → media ✗ → text".
func attemptTrail(o playback.Outcome) string {
	if len(o.Attempts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(o.Attempts))
	for _, a := range o.Attempts {
		p := string(a.Strategy)
		if a.Err != nil {
			p += " ✗"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " → ")
}

// statusBarView renders the bottom bar: logo, note, padding and help hint.
func statusBarView(width int, note string, message bool) string {
	logo := logoStyle.Render(" Wordsprout ")
	helpNote := statusBarHelpStyle(" ? Help ")

	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	if message {
		note = statusBarMessageStyle(note)
	} else {
		note = statusBarNoteStyle(note)
	}

	padding := max(0,
		width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := strings.Repeat(" ", padding)
	if message {
		emptySpace = statusBarMessageStyle(emptySpace)
	} else {
		emptySpace = statusBarNoteStyle(emptySpace)
	}

	return logo + note + emptySpace + helpNote
}

// degradedView renders the word in large type when no audio could play.
func degradedView(text string, width int) string {
	if width > 12 {
		text = wordwrap.String(text, width-12)
	}
	return degradedStyle.Render(text)
}
