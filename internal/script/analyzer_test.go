package script

import (
	"errors"
	"testing"
)

func TestAnalyze_WordIndexing(t *testing.T) {
	t.Parallel()

	a, err := Analyze("The quick brown fox jumps.")
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if a.TotalWords != 5 {
		t.Errorf("TotalWords = %d, want 5", a.TotalWords)
	}
	for i, w := range a.Words {
		if w.Index != i {
			t.Errorf("Words[%d].Index = %d, want %d", i, w.Index, i)
		}
	}
	if a.Words[3].Normalized != "fox" {
		t.Errorf("Words[3].Normalized = %q, want %q", a.Words[3].Normalized, "fox")
	}
	if a.Words[4].Text != "jumps." {
		t.Errorf("Words[4].Text = %q, want %q", a.Words[4].Text, "jumps.")
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	t.Parallel()

	const text = "Good evening.\n\nTonight we talk about well-known results. Don't panic!"
	a1, err := Analyze(text)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	a2, err := Analyze(text)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if len(a1.Words) != len(a2.Words) {
		t.Fatalf("word counts differ: %d vs %d", len(a1.Words), len(a2.Words))
	}
	for i := range a1.Words {
		if a1.Words[i] != a2.Words[i] {
			t.Errorf("Words[%d] differ: %+v vs %+v", i, a1.Words[i], a2.Words[i])
		}
	}
}

func TestAnalyze_SentenceAndParagraphBoundaries(t *testing.T) {
	t.Parallel()

	a, err := Analyze("First sentence. Second one!\n\nNew paragraph here? Yes.")
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if a.TotalParagraphs != 2 {
		t.Errorf("TotalParagraphs = %d, want 2", a.TotalParagraphs)
	}
	if a.TotalSentences != 4 {
		t.Errorf("TotalSentences = %d, want 4", a.TotalSentences)
	}

	// "Second" starts sentence 1, paragraph 0.
	second := a.Words[2]
	if second.SentenceIndex != 1 || second.ParagraphIndex != 0 {
		t.Errorf("word %q: sentence=%d paragraph=%d, want sentence=1 paragraph=0",
			second.Text, second.SentenceIndex, second.ParagraphIndex)
	}

	// "New" starts sentence 2, paragraph 1.
	newWord := a.Words[4]
	if newWord.Text != "New" {
		t.Fatalf("Words[4].Text = %q, want %q", newWord.Text, "New")
	}
	if newWord.SentenceIndex != 2 || newWord.ParagraphIndex != 1 {
		t.Errorf("word %q: sentence=%d paragraph=%d, want sentence=2 paragraph=1",
			newWord.Text, newWord.SentenceIndex, newWord.ParagraphIndex)
	}
}

func TestAnalyze_CharOffsets(t *testing.T) {
	t.Parallel()

	a, err := Analyze("one two three")
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	wantOffsets := []int{0, 4, 8}
	for i, want := range wantOffsets {
		if a.Words[i].CharOffset != want {
			t.Errorf("Words[%d].CharOffset = %d, want %d", i, a.Words[i].CharOffset, want)
		}
	}
}

func TestAnalyze_EmptyScript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"empty string", ""},
		{"whitespace only", "  \n\t \n"},
		{"punctuation only", "... !!! ---"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Analyze(tt.text)
			if !errors.Is(err, ErrEmptyScript) {
				t.Errorf("Analyze(%q) error = %v, want ErrEmptyScript", tt.text, err)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"plain word", "Hello", "hello"},
		{"trailing period", "world.", "world"},
		{"surrounding quotes", `"quoted"`, "quoted"},
		{"internal apostrophe kept", "Don't", "don't"},
		{"internal hyphen kept", "well-known", "well-known"},
		{"pure punctuation", "---", ""},
		{"number", "42,", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.token); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestWordAt(t *testing.T) {
	t.Parallel()

	a, err := Analyze("alpha beta")
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if w, ok := a.WordAt(1); !ok || w.Normalized != "beta" {
		t.Errorf("WordAt(1) = (%+v, %v), want beta", w, ok)
	}
	if _, ok := a.WordAt(-1); ok {
		t.Error("WordAt(-1) ok = true, want false")
	}
	if _, ok := a.WordAt(2); ok {
		t.Error("WordAt(2) ok = true, want false")
	}
}
