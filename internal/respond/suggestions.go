package respond

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/rag"
)

const maxSuggestions = 3

var generalSuggestions = []string{
	"Làm thế nào để duy trì lối sống lành mạnh?",
	"Tôi nên uống bao nhiêu nước mỗi ngày?",
	"Các loại vitamin cần thiết cho cơ thể là gì?",
	"Làm sao để ngủ ngon hơn?",
	"Những thực phẩm tốt cho sức khỏe tim mạch?",
	"Cách phòng ngừa cảm lạnh và cúm?",
}

type topicSuggestions struct {
	topic     string
	questions []string
}

// Topics are probed in declaration order; the first one mentioned in the
// conversation wins.
var suggestionTopics = []topicSuggestions{
	{"dinh dưỡng", []string{
		"Chế độ ăn cân bằng gồm những gì?",
		"Các loại thực phẩm giàu protein?",
		"Thực phẩm hỗ trợ hệ miễn dịch?",
	}},
	{"vận động", []string{
		"Các bài tập thể dục đơn giản tại nhà?",
		"Nên tập thể dục bao nhiêu phút mỗi ngày?",
		"Làm sao để duy trì thói quen tập thể dục?",
	}},
	{"stress", []string{
		"Cách giảm stress hiệu quả?",
		"Các bài tập thư giãn đơn giản?",
		"Thiền có tác dụng gì đối với stress?",
	}},
	{"giấc ngủ", []string{
		"Làm sao để cải thiện chất lượng giấc ngủ?",
		"Bao nhiêu giờ ngủ là đủ?",
		"Những thói quen xấu ảnh hưởng đến giấc ngủ?",
	}},
}

// Terms probed against retrieved content to derive follow-up questions.
var medicalSuggestionTerms = []string{
	"tiểu đường", "huyết áp", "cholesterol", "viêm khớp",
	"đau nửa đầu", "trầm cảm", "lo âu", "mất ngủ", "béo phì",
}

// SuggestionGenerator produces follow-up questions shown under a response.
type SuggestionGenerator struct {
	rng *rand.Rand
	log *logger.Logger
}

func NewSuggestionGenerator(log *logger.Logger) *SuggestionGenerator {
	return &SuggestionGenerator{
		rng: rand.New(rand.NewSource(rand.Int63())),
		log: log.With("component", "SuggestionGenerator"),
	}
}

// Generate returns up to three follow-up questions: at most two tied to the
// conversation topic, at most one derived from retrieved content, backfilled
// with general health questions. Duplicates are never returned.
func (g *SuggestionGenerator) Generate(query, response string, docs []rag.ScoredDocument) []string {
	var suggestions []string

	if questions := g.topicQuestions(query, response); len(questions) > 0 {
		suggestions = append(suggestions, questions...)
	}

	if fromContent := suggestionsFromContent(docs); len(fromContent) > 0 {
		suggestions = appendUnique(suggestions, fromContent[0])
	}

	for len(suggestions) < maxSuggestions {
		pick := generalSuggestions[g.rng.Intn(len(generalSuggestions))]
		suggestions = appendUnique(suggestions, pick)
	}

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

func (g *SuggestionGenerator) topicQuestions(query, response string) []string {
	combined := strings.ToLower(query + " " + response)
	for _, ts := range suggestionTopics {
		if !strings.Contains(combined, ts.topic) {
			continue
		}
		picks := g.rng.Perm(len(ts.questions))
		n := 2
		if n > len(picks) {
			n = len(picks)
		}
		questions := make([]string, 0, n)
		for _, idx := range picks[:n] {
			questions = append(questions, ts.questions[idx])
		}
		return questions
	}
	return nil
}

func suggestionsFromContent(docs []rag.ScoredDocument) []string {
	var suggestions []string
	for _, doc := range docs {
		if title, _ := doc.Metadata["title"].(string); title != "" {
			suggestions = append(suggestions, fmt.Sprintf("Cho tôi biết thêm về %s?", title))
		}
		content := strings.ToLower(doc.Content)
		for _, term := range medicalSuggestionTerms {
			if strings.Contains(content, term) {
				suggestions = append(suggestions, fmt.Sprintf("%s là gì?", term))
				break
			}
		}
	}
	return suggestions
}

func appendUnique(suggestions []string, candidate string) []string {
	for _, s := range suggestions {
		if s == candidate {
			return suggestions
		}
	}
	return append(suggestions, candidate)
}
