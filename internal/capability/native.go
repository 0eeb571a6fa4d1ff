package capability

import (
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
)

// NativeProbe inspects the local machine the process runs on. Speech is
// available when a local synthesizer binary or cloud credentials exist;
// media and tone playback are available when an audio device is present.
type NativeProbe struct {
	// UserAgent, when set, makes the probe report a browser environment so
	// the browser rules can be exercised from the command line.
	UserAgent string

	// TouchPoints is reported as Environment.MaxTouchPoints.
	TouchPoints int

	// DisableSpeech hides every speech engine (speech.engine = none).
	DisableSpeech bool

	// lookPath and stat are swapped in tests.
	lookPath func(string) (string, error)
	stat     func(string) (os.FileInfo, error)
	getenv   func(string) string
}

// Probe implements Probe.
func (n NativeProbe) Probe() Environment {
	n.defaults()

	audio := n.hasAudioDevice()
	env := Environment{
		UserAgent:       n.UserAgent,
		SpeechSynthesis: !n.DisableSpeech && n.hasSpeechEngine(),
		AudioContext:    audio,
		MediaElement:    audio,
		MaxTouchPoints:  n.TouchPoints,
	}

	log.Debug("Native host probed",
		"os", runtime.GOOS,
		"arch", runtime.GOARCH,
		"audio", audio,
		"speech", env.SpeechSynthesis)

	return env
}

func (n *NativeProbe) defaults() {
	if n.lookPath == nil {
		n.lookPath = exec.LookPath
	}
	if n.stat == nil {
		n.stat = os.Stat
	}
	if n.getenv == nil {
		n.getenv = os.Getenv
	}
}

func (n NativeProbe) isCommandAvailable(command string) bool {
	_, err := n.lookPath(command)
	return err == nil
}

// hasSpeechEngine reports whether espeak or Google Cloud credentials exist.
func (n NativeProbe) hasSpeechEngine() bool {
	if n.getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		return true
	}
	return n.isCommandAvailable("espeak-ng") || n.isCommandAvailable("espeak")
}

// hasAudioDevice checks for an audio output path on the current OS.
func (n NativeProbe) hasAudioDevice() bool {
	// CI machines rarely have a sound card even when ALSA is installed.
	if n.getenv("CI") != "" {
		return false
	}

	switch runtime.GOOS {
	case "linux", "freebsd":
		return n.hasLinuxAudio()
	case "darwin", "windows":
		// CoreAudio and WASAPI are always present on desktop installs.
		return true
	default:
		return false
	}
}

func (n NativeProbe) hasLinuxAudio() bool {
	if n.isCommandAvailable("pactl") {
		if out, err := exec.Command("pactl", "info").Output(); err == nil &&
			strings.Contains(string(out), "Server Name") {
			return true
		}
	}

	if _, err := n.stat("/dev/snd"); err == nil {
		entries, err := os.ReadDir("/dev/snd")
		if err == nil {
			for _, entry := range entries {
				if strings.HasPrefix(entry.Name(), "pcm") {
					return true
				}
			}
		}
	}

	if content, err := os.ReadFile("/proc/asound/cards"); err == nil &&
		len(content) > 0 && !strings.Contains(string(content), "no soundcards") {
		return true
	}

	return false
}
