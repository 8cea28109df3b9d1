package pipeline

import (
	"fmt"
	"strings"

	"github.com/hiuminee/carebot-backend/internal/llm"
	"github.com/hiuminee/carebot-backend/internal/rag"
)

const systemPrompt = `Bạn là trợ lý y tế CareBot. Cung cấp thông tin y tế chính xác, đáng tin cậy và dễ hiểu.
Luôn trả lời dựa trên nguồn đáng tin cậy. Nếu không có thông tin, hãy nói rõ là bạn không biết.
Không đưa ra chẩn đoán y tế. Nhắc người dùng tham khảo ý kiến bác sĩ khi cần.
Luôn trích dẫn nguồn thông tin của bạn. Thông tin phải ngắn gọn, súc tích nhưng đầy đủ.`

const responseGuidance = "Phản hồi của bạn phải chính xác, rõ ràng và đáng tin cậy. " +
	"Nếu thông tin không đầy đủ, hãy thừa nhận giới hạn và tránh suy đoán. " +
	"Phản hồi nên được định dạng rõ ràng, dễ đọc với đoạn văn ngắn gọn và mạch lạc."

// referenceContentLimit caps how much of each retrieved passage goes into
// the system prompt.
const referenceContentLimit = 1000

// BuildMessages assembles the chat transcript sent to the model: a system
// message carrying the assistant persona, the retrieved reference passages
// and response guidance, then the recent conversation history, then the
// current query.
func BuildMessages(query string, docs []rag.ScoredDocument, history []llm.ChatMessage) []llm.ChatMessage {
	var system strings.Builder
	system.WriteString(systemPrompt)

	if len(docs) > 0 {
		system.WriteString("\n\nThông tin tham khảo:\n")
		for i, doc := range docs {
			title, _ := doc.Metadata["title"].(string)
			if title == "" {
				title = "Không rõ nguồn"
			}
			fmt.Fprintf(&system, "[%d] %s (Nguồn: %s)\n\n", i+1, truncateRunes(doc.Content, referenceContentLimit), title)
		}
	}

	system.WriteString("\n\n")
	system.WriteString(responseGuidance)

	messages := make([]llm.ChatMessage, 0, len(history)+2)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleSystem, Content: system.String()})
	messages = append(messages, history...)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: query})
	return messages
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
