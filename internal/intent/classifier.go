package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hiuminee/carebot-backend/internal/llm"
	"github.com/hiuminee/carebot-backend/internal/logger"
)

// Intent types form a closed set; anything the model says is normalized onto
// one of these.
const (
	TypeMedicalQuery    = "medical_query"
	TypeLocationSearch  = "location_search"
	TypeStreakChallenge = "streak_challenge"
	TypeEmergency       = "emergency"
	TypeGeneralChat     = "general_chat"
	TypeUnsafeContent   = "unsafe_content"
)

const (
	DefaultConfidenceThreshold = 0.7
	fallbackConfidence         = 0.7
	secondaryIntentTrigger     = 0.9
	secondaryIntentFloor       = 0.3
)

// intentSynonyms normalizes raw model output. Exact match is tried first,
// then substring containment over the table in this order.
var intentSynonyms = []struct {
	token  string
	intent string
}{
	{"medical_query", TypeMedicalQuery},
	{"medical", TypeMedicalQuery},
	{"medicine", TypeMedicalQuery},
	{"health", TypeMedicalQuery},
	{"location_search", TypeLocationSearch},
	{"location", TypeLocationSearch},
	{"find", TypeLocationSearch},
	{"nearby", TypeLocationSearch},
	{"streak_challenge", TypeStreakChallenge},
	{"streak", TypeStreakChallenge},
	{"challenge", TypeStreakChallenge},
	{"goal", TypeStreakChallenge},
	{"emergency", TypeEmergency},
	{"urgent", TypeEmergency},
	{"help", TypeEmergency},
	{"general_chat", TypeGeneralChat},
	{"chat", TypeGeneralChat},
	{"general", TypeGeneralChat},
	{"greeting", TypeGeneralChat},
}

// redirectServices maps a primary intent to the downstream service that
// should handle it. unsafe_content deliberately has no target.
var redirectServices = map[string]string{
	TypeMedicalQuery:    "chatbot",
	TypeLocationSearch:  "location",
	TypeStreakChallenge: "streak",
	TypeEmergency:       "emergency",
	TypeGeneralChat:     "chatbot",
}

type SecondaryIntent struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

type Intent struct {
	PrimaryIntent    string              `json:"primary_intent"`
	Confidence       float64             `json:"confidence"`
	SecondaryIntents []SecondaryIntent   `json:"secondary_intents"`
	Entities         map[string][]string `json:"entities"`
}

type ClassificationResponse struct {
	Intent                 Intent `json:"intent"`
	Action                 string `json:"action,omitempty"`
	RedirectService        string `json:"redirect_service,omitempty"`
	ConfidenceThresholdMet bool   `json:"confidence_threshold_met"`
}

// Classifier runs four sequential model sub-calls per message: primary
// intent, entity extraction, confidence, and (when confidence is low) a
// secondary intent. Only a primary-call failure is fatal; every other
// sub-call degrades to a documented default.
type Classifier struct {
	provider            llm.Provider
	confidenceThreshold float64
	log                 *logger.Logger
}

func NewClassifier(provider llm.Provider, confidenceThreshold float64, log *logger.Logger) *Classifier {
	if confidenceThreshold <= 0 || confidenceThreshold > 1 {
		confidenceThreshold = DefaultConfidenceThreshold
	}
	return &Classifier{
		provider:            provider,
		confidenceThreshold: confidenceThreshold,
		log:                 log.With("component", "intent_classifier"),
	}
}

const primaryPrompt = `Bạn là một hệ thống phân loại ý định (intent). Nhiệm vụ của bạn là phân tích tin nhắn của người dùng
và xác định ý định chính của họ. Phản hồi chỉ bao gồm một từ khóa intent không có thêm chú thích.

Các intent có thể:
- medical_query: Khi người dùng hỏi về vấn đề y tế, thuốc, bệnh tật, triệu chứng
- location_search: Khi người dùng muốn tìm cơ sở y tế, bệnh viện, nhà thuốc gần đây
- streak_challenge: Khi người dùng nói về thử thách hàng ngày, streak, mục tiêu sức khỏe
- emergency: Khi người dùng mô tả tình trạng khẩn cấp, cần trợ giúp ngay lập tức
- general_chat: Trò chuyện chung không thuộc các nhóm trên

Chỉ trả về một từ intent, không kèm giải thích.`

const medicalEntitiesPrompt = `Trích xuất các thuật ngữ y tế từ văn bản sau đây. Phân loại thành:
- medical_condition: các bệnh, triệu chứng, tình trạng y tế
- medication: tên thuốc, thực phẩm chức năng, điều trị
- symptom: các biểu hiện, triệu chứng cụ thể

Trả về định dạng JSON:
{
    "medical_condition": ["bệnh 1", "bệnh 2"],
    "medication": ["thuốc 1", "thuốc 2"],
    "symptom": ["triệu chứng 1", "triệu chứng 2"]
}`

const locationEntitiesPrompt = `Trích xuất thông tin về địa điểm từ văn bản sau đây. Phân loại thành:
- location: tên địa điểm, vị trí
- facility_type: loại cơ sở (bệnh viện, phòng khám, nhà thuốc)
- distance: khoảng cách được đề cập

Trả về định dạng JSON:
{
    "location": ["địa điểm 1", "địa điểm 2"],
    "facility_type": ["loại cơ sở 1", "loại cơ sở 2"],
    "distance": ["khoảng cách 1", "khoảng cách 2"]
}`

// Classify determines the message's intent. An upstream failure of the
// primary call propagates: there is no sensible fallback intent when even
// that fails.
func (c *Classifier) Classify(ctx context.Context, message string) (*ClassificationResponse, error) {
	raw, err := c.complete(ctx, primaryPrompt, message, 10)
	if err != nil {
		return nil, fmt.Errorf("primary intent classification: %w", err)
	}
	primary := normalizeIntent(strings.ToLower(strings.TrimSpace(raw)))

	entities := c.extractEntities(ctx, message, primary)
	confidence := c.confidenceScore(ctx, message, primary)

	var secondaries []SecondaryIntent
	if confidence < secondaryIntentTrigger {
		if sec, secConf, ok := c.secondaryIntent(ctx, message, primary); ok && secConf > secondaryIntentFloor {
			secondaries = append(secondaries, SecondaryIntent{Intent: sec, Confidence: secConf})
		}
	}

	return &ClassificationResponse{
		Intent: Intent{
			PrimaryIntent:    primary,
			Confidence:       confidence,
			SecondaryIntents: secondaries,
			Entities:         entities,
		},
		RedirectService:        redirectServices[primary],
		ConfidenceThresholdMet: confidence >= c.confidenceThreshold,
	}, nil
}

// RedirectService exposes the static intent-to-service map.
func RedirectService(intentType string) string {
	return redirectServices[intentType]
}

func (c *Classifier) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	comp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: 0.1,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	return comp.Content, nil
}

func normalizeIntent(raw string) string {
	for _, s := range intentSynonyms {
		if raw == s.token {
			return s.intent
		}
	}
	for _, s := range intentSynonyms {
		if strings.Contains(raw, s.token) {
			return s.intent
		}
	}
	return TypeGeneralChat
}

func (c *Classifier) extractEntities(ctx context.Context, message, intentType string) map[string][]string {
	var prompt string
	switch intentType {
	case TypeMedicalQuery:
		prompt = medicalEntitiesPrompt
	case TypeLocationSearch:
		prompt = locationEntitiesPrompt
	default:
		return map[string][]string{}
	}

	raw, err := c.complete(ctx, prompt, message, 0)
	if err != nil {
		c.log.Warn("Entity extraction failed", "intent", intentType, "error", err)
		return map[string][]string{}
	}
	entities := map[string][]string{}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &entities); err != nil {
		c.log.Warn("Entity extraction returned unparseable JSON", "intent", intentType, "error", err)
		return map[string][]string{}
	}
	return entities
}

func (c *Classifier) confidenceScore(ctx context.Context, message, intentType string) float64 {
	prompt := fmt.Sprintf(`Đánh giá mức độ chắc chắn (0.0 đến 1.0) rằng tin nhắn sau đây thuộc về intent "%s".

Định nghĩa intent:
- medical_query: Hỏi về vấn đề y tế, thuốc, bệnh tật, triệu chứng
- location_search: Tìm cơ sở y tế, bệnh viện, nhà thuốc gần đây
- streak_challenge: Liên quan đến thử thách hàng ngày, streak, mục tiêu sức khỏe
- emergency: Mô tả tình trạng khẩn cấp, cần trợ giúp ngay lập tức
- general_chat: Trò chuyện chung không thuộc các nhóm trên

Chỉ trả về một con số từ 0.0 đến 1.0, không kèm giải thích.`, intentType)

	raw, err := c.complete(ctx, prompt, message, 10)
	if err != nil {
		c.log.Warn("Confidence scoring failed, using fallback", "error", err)
		return fallbackConfidence
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f < 0 || f > 1 {
		c.log.Warn("Confidence score unparseable or out of range, using fallback", "raw", raw)
		return fallbackConfidence
	}
	return f
}

func (c *Classifier) secondaryIntent(ctx context.Context, message, primary string) (string, float64, bool) {
	all := []string{TypeMedicalQuery, TypeLocationSearch, TypeStreakChallenge, TypeEmergency, TypeGeneralChat, TypeUnsafeContent}
	possible := make([]string, 0, len(all)-1)
	for _, it := range all {
		if it != primary {
			possible = append(possible, it)
		}
	}

	prompt := fmt.Sprintf(`Tin nhắn đã được xác định có intent chính là "%s".
Hãy xác định xem tin nhắn còn có thể thuộc intent thứ cấp nào trong số: %s.

Trả về định dạng: intent,confidence
Ví dụ: medical_query,0.4

Chỉ trả về một intent và độ tin cậy, không kèm giải thích.`, primary, strings.Join(possible, ", "))

	raw, err := c.complete(ctx, prompt, message, 20)
	if err != nil {
		c.log.Warn("Secondary intent detection failed", "error", err)
		return "", 0, false
	}
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) != 2 {
		return "", 0, false
	}
	conf, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || conf < 0 || conf > 1 {
		return "", 0, false
	}
	return normalizeIntent(strings.ToLower(strings.TrimSpace(parts[0]))), conf, true
}

// extractJSONObject trims fencing and prose a model may wrap around a JSON
// object, returning the outermost {...} span.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
