package ui

// Config contains TUI-specific configuration.
type Config struct {
	EnableMouse bool

	// Category limits the word list; empty shows every word.
	Category string

	// ShowCategory adds the category column to the word list.
	ShowCategory bool `env:"WORDSPROUT_SHOW_CATEGORY" envDefault:"true"`

	// NoColor forces the ASCII color profile.
	NoColor bool `env:"NO_COLOR"`

	// FeedbackTones plays a short tone on every selection.
	FeedbackTones bool `env:"WORDSPROUT_FEEDBACK_TONES" envDefault:"true"`
}
