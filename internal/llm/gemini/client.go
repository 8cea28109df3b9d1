package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hiuminee/carebot-backend/internal/llm"
	"github.com/hiuminee/carebot-backend/internal/logger"
	"github.com/hiuminee/carebot-backend/internal/pkg/httpx"
	"github.com/hiuminee/carebot-backend/internal/utils"
)

// Client talks to the Gemini generateContent API and adapts its
// function-calling shape onto llm.Provider. Gemini does not assign tool-call
// ids, so this client synthesizes them; correlation back to Gemini is by
// function name and ordering, which the API defines as stable within a turn.
type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(utils.GetEnv("GEMINI_API_KEY", "", nil))
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimRight(utils.GetEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com", log), "/")
	timeoutSec := utils.GetEnvAsInt("GEMINI_TIMEOUT_SECONDS", 180, log)

	return &Client{
		log:        log.With("service", "GeminiClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      utils.GetEnv("GEMINI_MODEL", "gemini-2.0-flash", log),
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: utils.GetEnvAsInt("GEMINI_MAX_RETRIES", 4, log),
	}, nil
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Body)
}

func (e *httpError) HTTPStatusCode() int { return e.StatusCode }

type part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type functionResponse struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Tools             []toolDecls       `json:"tools,omitempty"`
	ToolConfig        *toolConfig       `json:"toolConfig,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type toolDecls struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type toolConfig struct {
	FunctionCallingConfig struct {
		Mode string `json:"mode"`
	} `json:"functionCallingConfig"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

func (c *Client) buildRequest(req llm.CompletionRequest) (generateRequest, error) {
	out := generateRequest{}

	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			out.SystemInstruction = &content{Parts: []part{{Text: msg.Content}}}
		case llm.RoleAssistant:
			ct := content{Role: "model"}
			if msg.Content != "" {
				ct.Parts = append(ct.Parts, part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args := json.RawMessage(tc.Function.Arguments)
				if len(args) == 0 {
					args = json.RawMessage("{}")
				}
				ct.Parts = append(ct.Parts, part{FunctionCall: &functionCall{Name: tc.Function.Name, Args: args}})
			}
			out.Contents = append(out.Contents, ct)
		case llm.RoleTool:
			resp := json.RawMessage(msg.Content)
			if !json.Valid(resp) {
				wrapped, err := json.Marshal(map[string]string{"result": msg.Content})
				if err != nil {
					return out, err
				}
				resp = wrapped
			}
			out.Contents = append(out.Contents, content{
				Role:  "user",
				Parts: []part{{FunctionResponse: &functionResponse{Name: msg.Name, Response: resp}}},
			})
		default:
			out.Contents = append(out.Contents, content{Role: "user", Parts: []part{{Text: msg.Content}}})
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]functionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, functionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			})
		}
		out.Tools = []toolDecls{{FunctionDeclarations: decls}}
		tc := &toolConfig{}
		switch req.ToolChoice {
		case "none":
			tc.FunctionCallingConfig.Mode = "NONE"
		case "required":
			tc.FunctionCallingConfig.Mode = "ANY"
		default:
			tc.FunctionCallingConfig.Mode = "AUTO"
		}
		out.ToolConfig = tc
	}

	if req.Temperature > 0 || req.MaxTokens > 0 {
		gc := &generationConfig{MaxOutputTokens: req.MaxTokens}
		if req.Temperature > 0 {
			t := req.Temperature
			gc.Temperature = &t
		}
		out.GenerationConfig = gc
	}
	return out, nil
}

func (c *Client) completionFromCandidates(resp generateResponse) (*llm.Completion, error) {
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini completion: empty candidates")
	}
	cand := resp.Candidates[0]
	out := &llm.Completion{FinishReason: strings.ToLower(cand.FinishReason)}
	for _, p := range cand.Content.Parts {
		if p.Text != "" {
			out.Content += p.Text
		}
		if p.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				ID:   "call_" + uuid.NewString(),
				Type: "function",
				Function: llm.FunctionCall{
					Name:      p.FunctionCall.Name,
					Arguments: string(p.FunctionCall.Args),
				},
			})
		}
	}
	if out.FinishReason == "" {
		out.FinishReason = "stop"
	}
	return out, nil
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	body, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	var resp generateResponse
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", model)
	if err := c.do(ctx, path, body, &resp); err != nil {
		return nil, err
	}
	return c.completionFromCandidates(resp)
}

// CompleteStream consumes the SSE variant of generateContent. Function calls
// arrive as whole parts, never fragmented, so each gets its own delta slot.
func (c *Client) CompleteStream(ctx context.Context, req llm.CompletionRequest, onDelta func(llm.StreamDelta)) (*llm.Completion, error) {
	body, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-goog-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rawBody, _ := io.ReadAll(resp.Body)
		return nil, &httpError{StatusCode: resp.StatusCode, Body: string(rawBody)}
	}

	acc := llm.NewStreamAccumulator()
	callIndex := 0
	br := newSSEReader(resp.Body)
	for {
		data, readErr := br.next()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return acc.Completion(), context.Cause(ctx)
			}
			return nil, readErr
		}
		var chunk generateResponse
		if uErr := json.Unmarshal([]byte(data), &chunk); uErr != nil {
			c.log.Warn("Skipping undecodable stream chunk", "error", uErr)
			continue
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		cand := chunk.Candidates[0]
		delta := llm.StreamDelta{FinishReason: strings.ToLower(cand.FinishReason)}
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				delta.Content += p.Text
			}
			if p.FunctionCall != nil {
				delta.ToolCalls = append(delta.ToolCalls, llm.ToolCallDelta{
					Index:     callIndex,
					ID:        "call_" + uuid.NewString(),
					Type:      "function",
					Name:      p.FunctionCall.Name,
					Arguments: string(p.FunctionCall.Args),
				})
				callIndex++
			}
		}
		acc.Add(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	return acc.Completion(), nil
}

func (c *Client) do(ctx context.Context, path string, body, out any) error {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("gemini decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}
		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}
		backoff := httpx.BackoffDuration(1*time.Second, attempt, 10*time.Second)
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("Gemini request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
	}
	return errors.New("unreachable retry loop")
}

func (c *Client) doOnce(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}
