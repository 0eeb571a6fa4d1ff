// Package capability derives what audio playback features a runtime offers
// and recommends an audio quality tier for it.
//
// Raw host inspection happens in a [Probe]; everything downstream branches on
// the immutable [Profile] returned by [Classify], never on raw platform strings.
package capability

import "fmt"

// DeviceClass is the coarse form factor of the client device.
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
)

// Platform identifiers produced by Classify.
const (
	PlatformNative  = "native"
	PlatformWeChat  = "wechat"
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformMacOS   = "macos"
	PlatformWindows = "windows"
	PlatformLinux   = "linux"
	PlatformUnknown = "unknown"
)

// Profile is an immutable snapshot of the playback capabilities of a runtime.
type Profile struct {
	HasSpeechSynth   bool
	HasToneSynthesis bool
	HasMediaPlayback bool
	DeviceClass      DeviceClass
	PlatformID       string
	RequiresGesture  bool
}

// IsEmbedded reports whether the profile describes the constrained in-app
// browser that needs the embedded workaround layer.
func (p Profile) IsEmbedded() bool {
	return p.PlatformID == PlatformWeChat
}

// IsHandheld reports whether the device is a phone or a tablet.
func (p Profile) IsHandheld() bool {
	return p.DeviceClass == DeviceMobile || p.DeviceClass == DeviceTablet
}

// String returns a string representation of the profile.
func (p Profile) String() string {
	return fmt.Sprintf("Profile{Platform: %s, Device: %s, Speech: %v, Tone: %v, Media: %v, Gesture: %v}",
		p.PlatformID, p.DeviceClass, p.HasSpeechSynth, p.HasToneSynthesis, p.HasMediaPlayback, p.RequiresGesture)
}
