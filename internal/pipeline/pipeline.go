package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hiuminee/carebot-backend/internal/guardrails"
	"github.com/hiuminee/carebot-backend/internal/intent"
	"github.com/hiuminee/carebot-backend/internal/llm"
	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/rag"
	"github.com/hiuminee/carebot-backend/internal/respond"
	"github.com/hiuminee/carebot-backend/internal/textproc"
)

const (
	safetyResponseText = "Xin lỗi, tôi không thể cung cấp thông tin cho truy vấn này. " +
		"Vui lòng đặt câu hỏi khác hoặc liên hệ với chuyên gia y tế."

	emergencyPreamble = "ĐÂY CÓ VẺ LÀ TÌNH HUỐNG KHẨN CẤP. Nếu bạn hoặc người khác đang gặp nguy hiểm, " +
		"hãy gọi ngay số cấp cứu 115 hoặc đến cơ sở y tế gần nhất. "

	cardiacFollowUp = "Dấu hiệu đau tim cần được xử lý ngay lập tức bởi chuyên gia y tế."
	strokeFollowUp  = "Dấu hiệu đột quỵ cần được xử lý trong vòng vài giờ để giảm thiểu tổn thương não."

	// GenericFailureText is what callers surface when a stage fails with no
	// defined fallback. Internal detail stays in the logs.
	GenericFailureText = "Xin lỗi, đã có lỗi xảy ra khi xử lý tin nhắn của bạn. Vui lòng thử lại sau."
)

var safetySuggestions = []string{
	"Tôi có thể hỏi về triệu chứng của cảm cúm không?",
	"Làm thế nào để duy trì lối sống lành mạnh?",
}

var emergencySuggestions = []string{
	"Làm thế nào để nhận biết dấu hiệu đau tim?",
	"Cách sơ cứu khi có người bị ngất?",
}

// redirectResponses answers intents served by a different backend service.
var redirectResponses = map[string]string{
	"location": "Tôi sẽ chuyển yêu cầu của bạn đến dịch vụ tìm kiếm địa điểm y tế. " +
		"Bạn có thể cho tôi biết khu vực bạn đang ở không?",
	"streak": "Tôi sẽ chuyển yêu cầu của bạn đến dịch vụ thử thách sức khỏe. " +
		"Bạn muốn xem tiến độ hiện tại hay bắt đầu thử thách mới?",
}

// MessageInput is one user message entering the pipeline.
type MessageInput struct {
	MessageID      uuid.UUID
	ConversationID uuid.UUID
	UserID         uuid.UUID
	Content        string
	CreatedAt      time.Time
}

// IntentSummary is the intent block surfaced on every response.
type IntentSummary struct {
	PrimaryIntent string  `json:"primary_intent"`
	Confidence    float64 `json:"confidence"`
}

// MessageResponse is the pipeline's terminal payload for one user message.
type MessageResponse struct {
	MessageID      uuid.UUID        `json:"message_id"`
	Response       string           `json:"response"`
	ConversationID uuid.UUID        `json:"conversation_id"`
	Sources        []respond.Source `json:"sources"`
	Intent         IntentSummary    `json:"intent"`
	Suggestions    []string         `json:"suggestions"`
	Timestamp      time.Time        `json:"timestamp"`
}

// MessagePipeline sequences the gates and generation stages for one user
// message: input safety, emergency detection, intent routing, normalization,
// retrieval, the tool-calling model loop, output safety, disclaimer,
// citation, suggestions, and final formatting.
type MessagePipeline struct {
	safety      *guardrails.SafetyGuardrails
	emergency   *guardrails.EmergencyDetector
	classifier  *intent.Classifier
	processor   *textproc.Processor
	retriever   rag.Retriever
	runner      *llm.ToolRunner
	suggestions *respond.SuggestionGenerator
	log         *logger.Logger
}

func NewMessagePipeline(
	safety *guardrails.SafetyGuardrails,
	emergency *guardrails.EmergencyDetector,
	classifier *intent.Classifier,
	processor *textproc.Processor,
	retriever rag.Retriever,
	runner *llm.ToolRunner,
	suggestions *respond.SuggestionGenerator,
	log *logger.Logger,
) *MessagePipeline {
	return &MessagePipeline{
		safety:      safety,
		emergency:   emergency,
		classifier:  classifier,
		processor:   processor,
		retriever:   retriever,
		runner:      runner,
		suggestions: suggestions,
		log:         log.With("component", "MessagePipeline"),
	}
}

// Process runs one user message through the full pipeline and returns the
// response to persist and surface. Safety rejections and emergencies are
// expected outcomes, not errors; an error return means a stage with no
// fallback failed and the caller should surface GenericFailureText.
func (p *MessagePipeline) Process(ctx context.Context, in MessageInput, history []llm.ChatMessage) (*MessageResponse, error) {
	return p.process(ctx, in, history, nil)
}

// ProcessStream is Process with incremental frames: text deltas, tool-call
// announcements, tool results, and a terminal finish frame are forwarded to
// emit while the same MessageResponse is built for persistence.
func (p *MessagePipeline) ProcessStream(ctx context.Context, in MessageInput, history []llm.ChatMessage, emit func(llm.StreamFrame)) (*MessageResponse, error) {
	if emit == nil {
		emit = func(llm.StreamFrame) {}
	}
	return p.process(ctx, in, history, emit)
}

func (p *MessagePipeline) process(ctx context.Context, in MessageInput, history []llm.ChatMessage, emit func(llm.StreamFrame)) (*MessageResponse, error) {
	p.log.Info("processing message", "message_id", in.MessageID, "conversation_id", in.ConversationID)

	inVerdict := p.safety.CheckInput(in.Content)
	if !inVerdict.Safe {
		p.log.Warn("unsafe input rejected", "message_id", in.MessageID, "risk_level", inVerdict.RiskLevel, "reason", inVerdict.Reason)
		return p.finishShortCircuit(p.safetyResponse(in), emit), nil
	}

	if isEmergency, category := p.emergency.Detect(in.Content); isEmergency {
		p.log.Info("emergency detected", "message_id", in.MessageID, "category", category)
		return p.finishShortCircuit(p.emergencyResponse(in, category), emit), nil
	}

	classification, err := p.classifier.Classify(ctx, in.Content)
	if err != nil {
		return nil, fmt.Errorf("classify intent: %w", err)
	}
	primary := classification.Intent.PrimaryIntent
	switch primary {
	case intent.TypeUnsafeContent:
		return p.finishShortCircuit(p.safetyResponse(in), emit), nil
	case intent.TypeEmergency:
		return p.finishShortCircuit(p.emergencyResponse(in, ""), emit), nil
	}
	if redirect := classification.RedirectService; redirect != "" && redirect != "chatbot" {
		return p.finishShortCircuit(p.redirectResponse(in, classification, redirect), emit), nil
	}

	processed := p.processor.Process(in.Content)

	docs, err := p.retriever.Retrieve(ctx, processed)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	req := llm.CompletionRequest{Messages: BuildMessages(processed, docs, history)}
	var result *llm.RunResult
	// The terminal frame is withheld until the output-safety verdict so a
	// rejected completion can be corrected before the stream closes.
	var pendingFinish *llm.StreamFrame
	if emit != nil {
		result, err = p.runner.RunStream(ctx, req, func(f llm.StreamFrame) {
			if f.FinishReason != "" {
				pendingFinish = &f
				return
			}
			emit(f)
		})
	} else {
		result, err = p.runner.Run(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("run completion: %w", err)
	}

	outVerdict := p.safety.CheckOutput(result.Content)
	if !outVerdict.Safe {
		p.log.Warn("unsafe output rejected", "message_id", in.MessageID, "risk_level", outVerdict.RiskLevel, "reason", outVerdict.Reason)
		if emit != nil {
			// The unsafe deltas already reached the client; tell it to swap
			// in the safety response so transcript and persistence agree.
			emit(llm.StreamFrame{Type: llm.FrameReplace, Content: safetyResponseText})
			emit(llm.StreamFrame{FinishReason: "stop"})
		}
		return p.safetyResponse(in), nil
	}
	if emit != nil {
		if pendingFinish != nil {
			emit(*pendingFinish)
		} else {
			emit(llm.StreamFrame{FinishReason: "stop"})
		}
	}

	riskLevel := inVerdict.RiskLevel
	if outVerdict.RiskLevel > riskLevel {
		riskLevel = outVerdict.RiskLevel
	}
	content := p.safety.AddMedicalDisclaimer(result.Content, riskLevel)

	sources := respond.ExtractSources(docs)
	suggestions := p.suggestions.Generate(in.Content, content, docs)
	formatted := respond.FormatResponse(content, sources)

	return &MessageResponse{
		MessageID:      in.MessageID,
		Response:       formatted,
		ConversationID: in.ConversationID,
		Sources:        sources,
		Intent: IntentSummary{
			PrimaryIntent: primary,
			Confidence:    classification.Intent.Confidence,
		},
		Suggestions: suggestions,
		Timestamp:   in.timestamp(),
	}, nil
}

// finishShortCircuit streams a short-circuit response as a single content
// frame plus a terminal frame, so streaming callers see the same protocol
// shape as a full model turn.
func (p *MessagePipeline) finishShortCircuit(resp *MessageResponse, emit func(llm.StreamFrame)) *MessageResponse {
	if emit != nil {
		emit(llm.StreamFrame{Content: resp.Response})
		emit(llm.StreamFrame{FinishReason: "stop"})
	}
	return resp
}

func (p *MessagePipeline) safetyResponse(in MessageInput) *MessageResponse {
	return &MessageResponse{
		MessageID:      in.MessageID,
		Response:       safetyResponseText,
		ConversationID: in.ConversationID,
		Sources:        []respond.Source{},
		Intent:         IntentSummary{PrimaryIntent: intent.TypeUnsafeContent, Confidence: 0.95},
		Suggestions:    append([]string(nil), safetySuggestions...),
		Timestamp:      in.timestamp(),
	}
}

func (p *MessagePipeline) emergencyResponse(in MessageInput, category string) *MessageResponse {
	response := emergencyPreamble
	switch category {
	case "cardiac":
		response += cardiacFollowUp
	case "stroke":
		response += strokeFollowUp
	}

	return &MessageResponse{
		MessageID:      in.MessageID,
		Response:       response,
		ConversationID: in.ConversationID,
		Sources:        []respond.Source{},
		Intent:         IntentSummary{PrimaryIntent: intent.TypeEmergency, Confidence: 0.98},
		Suggestions:    append([]string(nil), emergencySuggestions...),
		Timestamp:      in.timestamp(),
	}
}

func (p *MessagePipeline) redirectResponse(in MessageInput, classification *intent.ClassificationResponse, redirect string) *MessageResponse {
	response, ok := redirectResponses[redirect]
	if !ok {
		response = safetyResponseText
	}
	return &MessageResponse{
		MessageID:      in.MessageID,
		Response:       response,
		ConversationID: in.ConversationID,
		Sources:        []respond.Source{},
		Intent: IntentSummary{
			PrimaryIntent: classification.Intent.PrimaryIntent,
			Confidence:    classification.Intent.Confidence,
		},
		Suggestions: p.suggestions.Generate(in.Content, response, nil),
		Timestamp:   in.timestamp(),
	}
}

func (in MessageInput) timestamp() time.Time {
	if !in.CreatedAt.IsZero() {
		return in.CreatedAt
	}
	return time.Now().UTC()
}
