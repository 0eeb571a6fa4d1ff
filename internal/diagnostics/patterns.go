package diagnostics

import (
	"sort"
	"strings"
)

// Category groups error messages by subsystem.
type Category string

const (
	CategorySpeechSynthesis Category = "speech-synthesis"
	CategoryAudioPlayback   Category = "audio-playback"
	CategoryAudioLoading    Category = "audio-loading"
	CategoryNetwork         Category = "network"
	CategoryPermission      Category = "permission"
	CategoryTimeout         Category = "timeout"
	CategoryUnknown         Category = "unknown"
)

// categoryKeywords is checked in order; the first match wins. Timeouts come
// first so "speech synthesis timed out" is reported as a timeout.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryTimeout, []string{"timeout", "timed out", "deadline"}},
	{CategoryPermission, []string{"permission", "not allowed", "gesture", "denied", "blocked"}},
	{CategorySpeechSynthesis, []string{"speech", "synthesis", "utterance", "voice", "espeak"}},
	{CategoryNetwork, []string{"network", "fetch", "http", "connection", "dns"}},
	{CategoryAudioLoading, []string{"load", "decode", "format", "asset"}},
	{CategoryAudioPlayback, []string{"play", "audio", "media", "device"}},
}

// Classify maps a message to its category by keyword.
func Classify(message string) Category {
	m := strings.ToLower(message)
	for _, ck := range categoryKeywords {
		for _, kw := range ck.keywords {
			if strings.Contains(m, kw) {
				return ck.category
			}
		}
	}
	return CategoryUnknown
}

// MessageCount is one entry of the most common messages.
type MessageCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// Patterns aggregates warning and error records.
type Patterns struct {
	ByCategory map[Category]int `json:"byCategory"`
	ByMessage  map[string]int   `json:"byMessage"`
	MostCommon []MessageCount   `json:"mostCommon"`
}

const mostCommonLimit = 5

// AnalyzePatterns aggregates warning and error records by category and by
// message.
func (l *Log) AnalyzePatterns() Patterns {
	return analyze(l.Records())
}

func analyze(records []Record) Patterns {
	p := Patterns{
		ByCategory: make(map[Category]int),
		ByMessage:  make(map[string]int),
	}
	for _, r := range records {
		if r.Level == LevelInfo {
			continue
		}
		p.ByCategory[Classify(r.Message)]++
		p.ByMessage[r.Message]++
	}

	for msg, n := range p.ByMessage {
		p.MostCommon = append(p.MostCommon, MessageCount{Message: msg, Count: n})
	}
	sort.Slice(p.MostCommon, func(i, j int) bool {
		if p.MostCommon[i].Count != p.MostCommon[j].Count {
			return p.MostCommon[i].Count > p.MostCommon[j].Count
		}
		return p.MostCommon[i].Message < p.MostCommon[j].Message
	})
	if len(p.MostCommon) > mostCommonLimit {
		p.MostCommon = p.MostCommon[:mostCommonLimit]
	}
	return p
}
