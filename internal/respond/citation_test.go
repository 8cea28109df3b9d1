package respond

import (
	"strings"
	"testing"

	"github.com/hiuminee/carebot-backend/internal/rag"
)

func scored(score float64, content string, meta map[string]any) rag.ScoredDocument {
	return rag.ScoredDocument{Content: content, Metadata: meta, Score: score}
}

func TestExtractSourcesThresholdAndDedup(t *testing.T) {
	docs := []rag.ScoredDocument{
		scored(0.95, "nội dung A", map[string]any{"title": "Tăng huyết áp", "url": "https://kb/a"}),
		scored(0.90, "nội dung A2", map[string]any{"title": "Tăng huyết áp", "url": "https://kb/a2"}),
		scored(0.70, "đúng ngưỡng, phải bị loại", map[string]any{"title": "Biên"}),
		scored(0.40, "quá yếu", map[string]any{"title": "Yếu"}),
		scored(0.85, "nội dung B", map[string]any{"title": "Tiểu đường", "url": "https://kb/b"}),
	}

	sources := ExtractSources(docs)
	if len(sources) != 2 {
		t.Fatalf("sources=%d, want 2: %+v", len(sources), sources)
	}
	if sources[0].Title != "Tăng huyết áp" || sources[1].Title != "Tiểu đường" {
		t.Fatalf("titles=%q,%q", sources[0].Title, sources[1].Title)
	}
}

func TestExtractSourcesMissingURLCollapses(t *testing.T) {
	// Two documents without URLs share the empty-url key and must collapse.
	docs := []rag.ScoredDocument{
		scored(0.9, "x", map[string]any{"title": "Một"}),
		scored(0.9, "y", map[string]any{"title": "Hai"}),
	}
	if got := len(ExtractSources(docs)); got != 1 {
		t.Fatalf("sources=%d, want 1", got)
	}
}

func TestExtractSourcesFallbacks(t *testing.T) {
	long := strings.Repeat("từ ", 60) // well past the snippet window
	docs := []rag.ScoredDocument{
		scored(0.9, long, map[string]any{"url": "https://kb/x"}),
	}

	sources := ExtractSources(docs)
	if len(sources) != 1 {
		t.Fatalf("sources=%d, want 1", len(sources))
	}
	if sources[0].Title != "Tài liệu y tế" {
		t.Fatalf("title=%q", sources[0].Title)
	}
	if !strings.HasSuffix(sources[0].Description, "...") {
		t.Fatalf("description not truncated: %q", sources[0].Description)
	}
	if len([]rune(sources[0].Description)) > snippetLength+3 {
		t.Fatalf("description too long: %d runes", len([]rune(sources[0].Description)))
	}
}

func TestExtractSourcesCap(t *testing.T) {
	var docs []rag.ScoredDocument
	for i := 0; i < 8; i++ {
		docs = append(docs, scored(0.9, "c", map[string]any{
			"title": string(rune('A' + i)),
			"url":   "https://kb/" + string(rune('a'+i)),
		}))
	}
	if got := len(ExtractSources(docs)); got != maxSources {
		t.Fatalf("sources=%d, want %d", got, maxSources)
	}
}

func TestFormatCitation(t *testing.T) {
	sources := []Source{
		{Title: "Tăng huyết áp", URL: "https://kb/a", PublicationDate: "2023-05-10"},
		{Title: "Tiểu đường"},
	}

	got := FormatCitation(sources)
	want := "\n\nNguồn tham khảo:\n1. Tăng huyết áp (2023) - https://kb/a\n2. Tiểu đường\n"
	if got != want {
		t.Fatalf("citation=%q, want %q", got, want)
	}

	if FormatCitation(nil) != "" {
		t.Fatalf("empty source list must render nothing")
	}
}

func TestFormatResponseStripsReferenceMarkers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single", "Uống đủ nước [1] mỗi ngày.", "Uống đủ nước  mỗi ngày."},
		{"range", "Xem thêm [2-4].", "Xem thêm ."},
		{"list", "Nguồn [1,2] cho biết.", "Nguồn  cho biết."},
		{"untouched", "Liều 500 [mg] mỗi lần.", "Liều 500 [mg] mỗi lần."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatResponse(tt.in, nil); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatResponseAppendsCitation(t *testing.T) {
	got := FormatResponse("Nội dung chính.", []Source{{Title: "Tài liệu"}})
	if !strings.HasPrefix(got, "Nội dung chính.") {
		t.Fatalf("content lost: %q", got)
	}
	if !strings.Contains(got, "Nguồn tham khảo:") {
		t.Fatalf("citation block missing: %q", got)
	}
}
