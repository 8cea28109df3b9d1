package textproc

import (
	"regexp"
	"strings"

	"github.com/hiuminee/carebot-backend/internal/logger"
)

var (
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// termMapping rewrites colloquial complaints into the canonical medical
// phrasing the knowledge base is indexed under.
var termMapping = []struct {
	re      *regexp.Regexp
	medical string
}{
	{termRe("đau đầu"), "đau đầu (nhức đầu)"},
	{termRe("đau bụng"), "đau bụng (đau vùng bụng)"},
	{termRe("ho nhiều"), "ho kéo dài"},
	{termRe("sốt cao"), "sốt trên 38.5°C"},
	{termRe("khó thở"), "khó thở (khó hô hấp)"},
	{termRe("dị ứng"), "phản ứng dị ứng"},
}

// termRe matches a phrase on its own word boundaries. \b is byte-oriented and
// unreliable for Vietnamese, so boundaries are spelled out.
func termRe(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^\p{L}\p{N}])` + regexp.QuoteMeta(phrase) + `($|[^\p{L}\p{N}])`)
}

var stopwords = map[string]struct{}{
	"à": {}, "là": {}, "của": {}, "và": {}, "cho": {},
	"trong": {}, "với": {}, "có": {}, "được": {}, "không": {},
	"những": {}, "này": {}, "về": {}, "từ": {}, "một": {},
	"các": {}, "để": {}, "đến": {}, "theo": {}, "như": {},
}

// Processor normalizes user text before retrieval: lowercase, punctuation
// strip, whitespace collapse, term canonicalization.
type Processor struct {
	log *logger.Logger
}

func NewProcessor(log *logger.Logger) *Processor {
	return &Processor{log: log.With("component", "message_processor")}
}

func (p *Processor) Process(content string) string {
	normalized := normalizeText(content)
	normalized = convertCommonTerms(normalized)

	// Keyword extraction is diagnostic only; it never feeds retrieval.
	p.log.Debug("Normalized query", "normalized", normalized, "keywords", p.Keywords(normalized))
	return normalized
}

// Keywords returns the stopword-filtered token string for diagnostics.
func (p *Processor) Keywords(content string) string {
	words := strings.Fields(content)
	filtered := make([]string, 0, len(words))
	for _, w := range words {
		if _, skip := stopwords[w]; !skip {
			filtered = append(filtered, w)
		}
	}
	return strings.Join(filtered, " ")
}

func normalizeText(text string) string {
	text = strings.ToLower(text)
	text = nonWordRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(text, " "))
}

func convertCommonTerms(text string) string {
	for _, m := range termMapping {
		text = m.re.ReplaceAllString(text, "${1}"+m.medical+"${2}")
	}
	return text
}
