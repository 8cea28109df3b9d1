package respond

import (
	"fmt"
	"strings"

	"github.com/hiuminee/carebot-backend/internal/rag"
)

const (
	// sourceScoreThreshold filters out weakly related passages before they
	// can appear as citations.
	sourceScoreThreshold = 0.7
	maxSources           = 5
	defaultSourceTitle   = "Tài liệu y tế"
	snippetLength        = 100
)

// Source is one cited knowledge-base document as surfaced to the client.
type Source struct {
	Title           string `json:"title"`
	URL             string `json:"url,omitempty"`
	Description     string `json:"description,omitempty"`
	PublicationDate string `json:"publication_date,omitempty"`
}

// ExtractSources builds the citation list for a response: passages scoring
// above the threshold, deduplicated by title or URL, capped at maxSources.
func ExtractSources(docs []rag.ScoredDocument) []Source {
	var sources []Source
	for _, doc := range docs {
		if doc.Score <= sourceScoreThreshold {
			continue
		}

		title, _ := doc.Metadata["title"].(string)
		url, _ := doc.Metadata["url"].(string)
		if isDuplicateSource(sources, title, url) {
			continue
		}

		description, _ := doc.Metadata["description"].(string)
		if description == "" {
			description = createSnippet(doc.Content, snippetLength)
		}
		if title == "" {
			title = defaultSourceTitle
		}
		publicationDate, _ := doc.Metadata["publication_date"].(string)

		sources = append(sources, Source{
			Title:           title,
			URL:             url,
			Description:     description,
			PublicationDate: publicationDate,
		})
		if len(sources) == maxSources {
			break
		}
	}
	return sources
}

// FormatCitation renders the reference block appended to cited responses.
func FormatCitation(sources []Source) string {
	if len(sources) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nNguồn tham khảo:\n")
	for i, source := range sources {
		fmt.Fprintf(&b, "%d. %s", i+1, source.Title)
		if year := publicationYear(source.PublicationDate); year != "" {
			fmt.Fprintf(&b, " (%s)", year)
		}
		if source.URL != "" {
			fmt.Fprintf(&b, " - %s", source.URL)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// isDuplicateSource compares against the candidate's raw metadata, so two
// documents that both lack a URL still collapse into one citation.
func isDuplicateSource(sources []Source, title, url string) bool {
	for _, s := range sources {
		if s.Title == title || s.URL == url {
			return true
		}
	}
	return false
}

func createSnippet(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	head := string(runes[:maxLength])
	if idx := strings.LastIndex(head, " "); idx > 0 {
		head = head[:idx]
	}
	return head + "..."
}

// publicationYear pulls the year out of a YYYY-MM-DD metadata date.
func publicationYear(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}
