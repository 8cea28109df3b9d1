package respond

import (
	"strings"
	"testing"

	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/rag"
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

func assertNoDuplicates(t *testing.T, suggestions []string) {
	t.Helper()
	seen := map[string]bool{}
	for _, s := range suggestions {
		if seen[s] {
			t.Fatalf("duplicate suggestion %q in %v", s, suggestions)
		}
		seen[s] = true
	}
}

func TestGenerateAlwaysThree(t *testing.T) {
	g := NewSuggestionGenerator(newTestLogger(t))

	got := g.Generate("xin chào", "chào bạn", nil)
	if len(got) != maxSuggestions {
		t.Fatalf("suggestions=%d, want %d: %v", len(got), maxSuggestions, got)
	}
	assertNoDuplicates(t, got)
	for _, s := range got {
		if !containsSuggestion(generalSuggestions, s) {
			t.Fatalf("unexpected non-general suggestion %q", s)
		}
	}
}

func TestGenerateTopicMatch(t *testing.T) {
	g := NewSuggestionGenerator(newTestLogger(t))

	got := g.Generate("tôi muốn cải thiện giấc ngủ", "bạn nên đi ngủ đúng giờ", nil)
	if len(got) != maxSuggestions {
		t.Fatalf("suggestions=%d, want %d: %v", len(got), maxSuggestions, got)
	}
	assertNoDuplicates(t, got)

	var sleep topicSuggestions
	for _, ts := range suggestionTopics {
		if ts.topic == "giấc ngủ" {
			sleep = ts
		}
	}
	topicCount := 0
	for _, s := range got {
		if containsSuggestion(sleep.questions, s) {
			topicCount++
		}
	}
	if topicCount != 2 {
		t.Fatalf("topic questions=%d, want 2: %v", topicCount, got)
	}
}

func TestGenerateFromRetrievedContent(t *testing.T) {
	g := NewSuggestionGenerator(newTestLogger(t))

	docs := []rag.ScoredDocument{
		{Content: "bệnh tiểu đường type 2", Metadata: map[string]any{"title": "Tiểu đường type 2"}},
	}
	got := g.Generate("xin chào", "chào bạn", docs)
	if len(got) != maxSuggestions {
		t.Fatalf("suggestions=%d, want %d: %v", len(got), maxSuggestions, got)
	}
	assertNoDuplicates(t, got)
	if !containsSuggestion(got, "Cho tôi biết thêm về Tiểu đường type 2?") {
		t.Fatalf("content-derived suggestion missing: %v", got)
	}
}

func TestSuggestionsFromContentTermMatch(t *testing.T) {
	docs := []rag.ScoredDocument{
		{Content: "Huyết áp cao kéo dài làm tăng nguy cơ đột quỵ.", Metadata: map[string]any{}},
	}
	got := suggestionsFromContent(docs)
	if len(got) != 1 || !strings.Contains(got[0], "huyết áp") {
		t.Fatalf("got %v", got)
	}
}

func containsSuggestion(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
