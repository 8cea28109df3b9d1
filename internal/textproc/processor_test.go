package textproc

import (
	"testing"

	"github.com/hiuminee/carebot-backend/internal/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})
	return log
}

func TestProcess(t *testing.T) {
	p := NewProcessor(newTestLogger(t))

	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "lowercase_and_punctuation",
			content: "Tôi bị ĐAU ĐẦU, rất khó chịu!!!",
			want:    "tôi bị đau đầu (nhức đầu) rất khó chịu",
		},
		{
			name:    "whitespace_collapse",
			content: "sốt   cao \t ba ngày",
			want:    "sốt trên 38.5°C ba ngày",
		},
		{
			name:    "term_conversion_breathing",
			content: "tôi thấy khó thở về đêm",
			want:    "tôi thấy khó thở (khó hô hấp) về đêm",
		},
		{
			name:    "no_partial_word_match",
			content: "dị ứngày", // not the phrase "dị ứng" on a word boundary
			want:    "dị ứngày",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.Process(tc.content); got != tc.want {
				t.Fatalf("Process(%q)=%q, want %q", tc.content, got, tc.want)
			}
		})
	}
}

func TestKeywords(t *testing.T) {
	p := NewProcessor(newTestLogger(t))

	got := p.Keywords("tôi bị đau đầu và sốt trong ba ngày")
	want := "tôi bị đau đầu sốt ba ngày"
	if got != want {
		t.Fatalf("Keywords=%q, want %q", got, want)
	}
}
