package content

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wordsprout/wordsprout/internal/speech"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}

	apple, ok := c.Find("Apple")
	if !ok {
		t.Fatal("apple missing from default catalog")
	}
	if apple.Language != speech.English || apple.Asset == "" || apple.Category != "fruit" {
		t.Errorf("unexpected apple entry: %+v", apple)
	}

	if e, ok := c.Find("猫"); !ok || e.Language != speech.Chinese {
		t.Errorf("Find(猫) = %+v, %v", e, ok)
	}

	for _, item := range c.PreloadItems() {
		if item.Key == "" {
			t.Error("preload item without key")
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    int
		wantErr error
	}{
		{
			name: "normalizes language and category",
			yaml: "words:\n  - text: hello\n    language: en-GB\n    category: Phrases\n",
			want: 1,
		},
		{
			name: "defaults to english",
			yaml: "words:\n  - text: sun\n",
			want: 1,
		},
		{
			name: "drops blank text",
			yaml: "words:\n  - text: '  '\n  - text: moon\n",
			want: 1,
		},
		{
			name:    "empty",
			yaml:    "words: []\n",
			wantErr: ErrEmptyCatalog,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.yaml))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(c.Words) != tt.want {
				t.Fatalf("got %d words, want %d", len(c.Words), tt.want)
			}
			for _, w := range c.Words {
				if w.Language != speech.English {
					t.Errorf("language = %q, want en", w.Language)
				}
			}
		})
	}

	if _, err := Parse([]byte("words:\n  - text: bonjour\n    language: fr\n")); err == nil {
		t.Error("expected an error for an unsupported language")
	}
	if _, err := Parse([]byte("words: [")); err == nil {
		t.Error("expected an error for malformed yaml")
	}
}

func TestCategoriesAndPreloadItems(t *testing.T) {
	c, err := Parse([]byte(`words:
  - {text: A, asset: a.mp3, category: alphabet}
  - {text: a, asset: a.mp3, category: alphabet}
  - {text: red, asset: red.mp3, category: colors}
  - {text: hi, category: phrases}
`))
	if err != nil {
		t.Fatal(err)
	}

	cats := c.Categories()
	if len(cats) != 3 || cats[0] != "alphabet" || cats[2] != "phrases" {
		t.Errorf("Categories() = %v", cats)
	}
	if got := len(c.InCategory("ALPHABET")); got != 2 {
		t.Errorf("InCategory(alphabet) = %d entries, want 2", got)
	}

	items := c.PreloadItems()
	if len(items) != 2 {
		t.Fatalf("PreloadItems() = %v, want 2 unique assets", items)
	}
	if items[0].Key != "a.mp3" || items[0].Category != "alphabet" {
		t.Errorf("first item = %+v", items[0])
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.yml")
	if err := os.WriteFile(path, []byte("words:\n  - text: star\n    language: zh\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Words[0].Language != speech.Chinese {
		t.Errorf("language = %q, want zh", c.Words[0].Language)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected an error for a missing file")
	}
	if _, err := Load(""); err != nil {
		t.Errorf("Load(\"\") should return the default catalog: %v", err)
	}
}
