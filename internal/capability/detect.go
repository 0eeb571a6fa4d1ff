package capability

import (
	"regexp"
	"sync"

	"github.com/charmbracelet/log"
)

// Environment is the raw host snapshot a Probe reports. Feature flags are
// presence tests taken at probe time.
type Environment struct {
	UserAgent       string
	SpeechSynthesis bool // a speech synthesis engine is reachable
	AudioContext    bool // a tone/audio processing context can be created
	MediaElement    bool // encoded media can be decoded and played
	MaxTouchPoints  int
}

// Probe inspects the host environment.
type Probe interface {
	Probe() Environment
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func() Environment

// Probe implements Probe.
func (f ProbeFunc) Probe() Environment { return f() }

// StaticProbe always reports the same environment. Useful in tests and for
// hosts configured up front.
type StaticProbe Environment

// Probe implements Probe.
func (s StaticProbe) Probe() Environment { return Environment(s) }

// platformPatterns are matched in order; the first match wins.
var platformPatterns = []struct {
	id string
	re *regexp.Regexp
}{
	{PlatformWeChat, regexp.MustCompile(`(?i)MicroMessenger`)},
	{PlatformIOS, regexp.MustCompile(`(?i)iPhone|iPad|iPod`)},
	{PlatformAndroid, regexp.MustCompile(`(?i)Android`)},
	{PlatformMacOS, regexp.MustCompile(`(?i)Macintosh|Mac OS X`)},
	{PlatformWindows, regexp.MustCompile(`(?i)Windows`)},
	{PlatformLinux, regexp.MustCompile(`(?i)Linux|X11|CrOS`)},
}

var (
	tabletPattern = regexp.MustCompile(`(?i)iPad|Tablet|PlayBook|Silk|Kindle`)
	mobilePattern = regexp.MustCompile(`(?i)Mobi|iPhone|iPod|Windows Phone`)
)

// Classify derives a Profile from a host snapshot. It is a pure function of
// its input.
func Classify(env Environment) Profile {
	p := Profile{
		HasSpeechSynth:   env.SpeechSynthesis,
		HasToneSynthesis: env.AudioContext,
		HasMediaPlayback: env.MediaElement,
		PlatformID:       classifyPlatform(env.UserAgent),
		DeviceClass:      classifyDevice(env),
	}

	// Browsers hold audio until a user gesture; the native host does not.
	p.RequiresGesture = p.PlatformID != PlatformNative
	return p
}

func classifyPlatform(ua string) string {
	if ua == "" {
		return PlatformNative
	}
	for _, pp := range platformPatterns {
		if pp.re.MatchString(ua) {
			return pp.id
		}
	}
	return PlatformUnknown
}

func classifyDevice(env Environment) DeviceClass {
	ua := env.UserAgent
	switch {
	case ua == "":
		return DeviceDesktop
	case tabletPattern.MatchString(ua):
		return DeviceTablet
	case mobilePattern.MatchString(ua):
		return DeviceMobile
	case platformPatterns[2].re.MatchString(ua):
		// Android without "Mobile" is a tablet.
		return DeviceTablet
	case platformPatterns[3].re.MatchString(ua) && env.MaxTouchPoints > 1:
		// iPadOS reports a desktop Safari user agent.
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

// Detector derives the capability profile once and serves it for the rest
// of the session.
type Detector struct {
	probe  Probe
	logger *log.Logger

	mu       sync.Mutex
	profile  Profile
	detected bool
}

// NewDetector creates a detector over the given probe.
func NewDetector(probe Probe, logger *log.Logger) *Detector {
	if logger == nil {
		logger = log.Default().WithPrefix("capability")
	}
	return &Detector{probe: probe, logger: logger}
}

// Detect returns the session profile, probing the host on first use.
func (d *Detector) Detect() Profile {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.detected {
		return d.profile
	}

	env := d.probe.Probe()
	d.profile = Classify(env)
	d.detected = true

	d.logger.Debug("Capabilities detected",
		"platform", d.profile.PlatformID,
		"device", d.profile.DeviceClass,
		"speech", d.profile.HasSpeechSynth,
		"tone", d.profile.HasToneSynthesis,
		"media", d.profile.HasMediaPlayback,
		"gesture", d.profile.RequiresGesture)

	return d.profile
}

// Reset discards the cached profile so the next Detect probes again.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detected = false
	d.profile = Profile{}
}
