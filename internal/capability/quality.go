package capability

import "strings"

// Tier is a coarse audio quality level.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// PreloadStrategy controls how eagerly assets are fetched ahead of use.
type PreloadStrategy string

const (
	PreloadMinimal    PreloadStrategy = "minimal"
	PreloadBalanced   PreloadStrategy = "balanced"
	PreloadAggressive PreloadStrategy = "aggressive"
)

// NetworkClass is the caller's hint about connection quality.
type NetworkClass string

const (
	NetworkUnknown NetworkClass = "unknown"
	NetworkOffline NetworkClass = "offline"
	NetworkSlow    NetworkClass = "2g"
	Network3G      NetworkClass = "3g"
	Network4G      NetworkClass = "4g"
	NetworkWiFi    NetworkClass = "wifi"
)

// ParseNetworkClass maps a free-form hint to a NetworkClass.
func ParseNetworkClass(s string) NetworkClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "offline", "none":
		return NetworkOffline
	case "2g", "slow-2g", "slow":
		return NetworkSlow
	case "3g":
		return Network3G
	case "4g", "5g", "lte":
		return Network4G
	case "wifi", "ethernet", "fast":
		return NetworkWiFi
	default:
		return NetworkUnknown
	}
}

// NetworkHint describes the connection and the device memory.
type NetworkHint struct {
	Class    NetworkClass
	MemoryGB float64 // 0 when unknown
}

// Recommendation is the estimator's output.
type Recommendation struct {
	Score       int
	Tier        Tier
	Format      string
	BitrateKbps int
	Preload     PreloadStrategy
}

// Tier thresholds.
const (
	HighThreshold   = 80
	MediumThreshold = 50
)

// Rubric weights.
var (
	capabilityWeights = struct{ speech, tone, media int }{10, 5, 15}

	deviceWeights = map[DeviceClass]int{
		DeviceDesktop: 30,
		DeviceTablet:  20,
		DeviceMobile:  10,
	}

	networkWeights = map[NetworkClass]int{
		NetworkOffline: 0,
		NetworkSlow:    5,
		Network3G:      15,
		NetworkUnknown: 20,
		Network4G:      25,
		NetworkWiFi:    30,
	}
)

// Score computes the rubric score for a profile and hint, clipped to [0,100].
func Score(p Profile, hint NetworkHint) int {
	score := 0
	if p.HasSpeechSynth {
		score += capabilityWeights.speech
	}
	if p.HasToneSynthesis {
		score += capabilityWeights.tone
	}
	if p.HasMediaPlayback {
		score += capabilityWeights.media
	}

	score += deviceWeights[p.DeviceClass]

	class := hint.Class
	if class == "" {
		class = NetworkUnknown
	}
	score += networkWeights[class]

	switch {
	case hint.MemoryGB >= 8:
		score += 10
	case hint.MemoryGB >= 4:
		score += 5
	case hint.MemoryGB > 0 && hint.MemoryGB < 2:
		score -= 10
	}

	// The embedded browser decodes slowly; never push it to the top tier.
	if p.IsEmbedded() {
		score -= 10
	}

	return min(max(score, 0), 100)
}

// Estimate recommends a quality tier, format and preload strategy.
func Estimate(p Profile, hint NetworkHint) Recommendation {
	score := Score(p, hint)
	rec := Recommendation{Score: score}

	switch {
	case score >= HighThreshold:
		rec.Tier = TierHigh
		rec.BitrateKbps = 128
		rec.Preload = PreloadAggressive
	case score >= MediumThreshold:
		rec.Tier = TierMedium
		rec.BitrateKbps = 96
		rec.Preload = PreloadBalanced
	default:
		rec.Tier = TierLow
		rec.BitrateKbps = 48
		rec.Preload = PreloadMinimal
	}

	// mp3 is the only format every target decodes; wav is used on the
	// native desktop host where bandwidth is irrelevant and decoding is free.
	rec.Format = "mp3"
	if p.PlatformID == PlatformNative && rec.Tier == TierHigh {
		rec.Format = "wav"
	}

	if hint.Class == NetworkOffline {
		rec.Preload = PreloadMinimal
	}

	return rec
}
