package respond

import "regexp"

// Matches bracketed reference markers like [1], [2,3], [4-6].
var numericReferenceRe = regexp.MustCompile(`\[\d+(?:[-,]\d+)*\]`)

// FormatResponse strips leftover bracketed reference markers from the model
// output and appends the citation block when there are sources.
func FormatResponse(content string, sources []Source) string {
	clean := numericReferenceRe.ReplaceAllString(content, "")
	if len(sources) == 0 {
		return clean
	}
	return clean + FormatCitation(sources)
}
