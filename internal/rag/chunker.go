package rag

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 500
	// DefaultChunkOverlap is how many characters consecutive chunks share.
	DefaultChunkOverlap = 100

	// boundaryWindow is how far back from the cut point we look for a
	// sentence boundary before giving up and cutting mid-sentence.
	boundaryWindow = 100
)

func isSentenceBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

// ChunkDocument splits text into overlapping chunks of roughly chunkSize
// characters. When a chunk would end mid-text, the cut point backs up to the
// nearest sentence boundary within the last boundaryWindow characters.
// Lengths are counted in runes so Vietnamese text chunks the same as ASCII.
func ChunkDocument(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			limit := end - boundaryWindow
			if limit < start {
				limit = start
			}
			for i := end; i > limit; i-- {
				if isSentenceBoundary(runes[i-1]) {
					end = i
					break
				}
			}
		}

		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		// A boundary can pull end back into the overlap region; force the
		// window forward so the loop always terminates.
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}
