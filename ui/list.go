package ui

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"github.com/wordsprout/wordsprout/internal/content"
)

const maxTextColumn = 24

var (
	cursorStyle   = lipgloss.NewStyle().Foreground(fuchsia).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(fuchsia)
	matchStyle    = lipgloss.NewStyle().Foreground(green).Underline(true)
	categoryStyle = lipgloss.NewStyle().Foreground(gray)
	recordedMark  = lipgloss.NewStyle().Foreground(darkGray).Render("♪")
)

// listItem is one visible row: an entry and the byte offsets the filter
// matched in its text.
type listItem struct {
	entry   content.Entry
	matches []int
}

// entrySource lets fuzzy search the entry texts without copying them.
type entrySource []content.Entry

func (s entrySource) String(i int) string { return s[i].Text }
func (s entrySource) Len() int            { return len(s) }

// wordList is the filterable, scrollable list of catalog entries.
type wordList struct {
	entries []content.Entry
	items   []listItem
	filter  string
	cursor  int
	offset  int
	height  int
}

func newWordList(entries []content.Entry) wordList {
	l := wordList{entries: entries, height: 10}
	l.applyFilter("")
	return l
}

// applyFilter narrows the list to fuzzy matches of pattern, best first.
// An empty pattern restores catalog order.
func (l *wordList) applyFilter(pattern string) {
	l.filter = strings.TrimSpace(pattern)
	l.items = l.items[:0]
	l.cursor, l.offset = 0, 0

	if l.filter == "" {
		for _, e := range l.entries {
			l.items = append(l.items, listItem{entry: e})
		}
		return
	}
	for _, m := range fuzzy.FindFrom(l.filter, entrySource(l.entries)) {
		l.items = append(l.items, listItem{entry: l.entries[m.Index], matches: m.MatchedIndexes})
	}
}

func (l *wordList) setHeight(h int) {
	l.height = max(1, h)
	l.scroll()
}

func (l *wordList) moveUp() {
	if l.cursor > 0 {
		l.cursor--
	}
	l.scroll()
}

func (l *wordList) moveDown() {
	if l.cursor < len(l.items)-1 {
		l.cursor++
	}
	l.scroll()
}

// scroll keeps the cursor inside the visible window.
func (l *wordList) scroll() {
	switch {
	case l.cursor < l.offset:
		l.offset = l.cursor
	case l.cursor >= l.offset+l.height:
		l.offset = l.cursor - l.height + 1
	}
}

func (l wordList) selected() (content.Entry, bool) {
	if l.cursor < 0 || l.cursor >= len(l.items) {
		return content.Entry{}, false
	}
	return l.items[l.cursor].entry, true
}

func (l wordList) Len() int { return len(l.items) }

// textColumn is the display width of the text column. CJK words occupy two
// cells per rune.
func (l wordList) textColumn() int {
	w := 0
	for _, it := range l.items {
		w = max(w, runewidth.StringWidth(it.entry.Text))
	}
	return min(w, maxTextColumn)
}

func (l wordList) view(showCategory bool) string {
	if len(l.items) == 0 {
		return subtleStyle.Render("  No words match " + `"` + l.filter + `"`)
	}

	col := l.textColumn()
	end := min(len(l.items), l.offset+l.height)
	var b strings.Builder
	for i := l.offset; i < end; i++ {
		it := l.items[i]
		text := runewidth.Truncate(it.entry.Text, col, ellipsis)
		pad := strings.Repeat(" ", max(0, col-runewidth.StringWidth(text)))

		if i == l.cursor {
			b.WriteString(cursorStyle.Render("› "))
			b.WriteString(highlightMatches(text, it.matches, selectedStyle))
		} else {
			b.WriteString("  ")
			b.WriteString(highlightMatches(text, it.matches, lipgloss.NewStyle()))
		}
		b.WriteString(pad)

		if showCategory && it.entry.Category != "" {
			b.WriteString("  " + categoryStyle.Render(it.entry.Category))
		}
		if it.entry.Asset != "" {
			b.WriteString(" " + recordedMark)
		}
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// highlightMatches renders the matched bytes of s with matchStyle and the
// rest with base.
func highlightMatches(s string, matches []int, base lipgloss.Style) string {
	if len(matches) == 0 {
		return base.Render(s)
	}
	var b strings.Builder
	for i, r := range s {
		if slices.Contains(matches, i) {
			b.WriteString(matchStyle.Render(string(r)))
		} else {
			b.WriteString(base.Render(string(r)))
		}
	}
	return b.String()
}
