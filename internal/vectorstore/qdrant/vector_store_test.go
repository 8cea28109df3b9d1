package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/hiuminee/carebot-backend/internal/logger"
)

func TestVectorStoreUpsertRequestShape(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPut {
			t.Fatalf("method: want=%s got=%s", http.MethodPut, r.Method)
		}
		if r.URL.Path != "/collections/medical_knowledge/points" {
			t.Fatalf("path: want=%q got=%q", "/collections/medical_knowledge/points", r.URL.Path)
		}
		if r.URL.RawQuery != "wait=true" {
			t.Fatalf("query: want=%q got=%q", "wait=true", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})

	meta := map[string]any{
		payloadContentKey: "Người trưởng thành cần khoảng hai lít nước mỗi ngày.",
		"title":           "Nhu cầu nước",
	}
	err := s.Upsert(context.Background(), "knowledge", []Vector{
		{ID: "chunk-1", Values: []float32{1, 2, 3}, Metadata: meta},
		{ID: "chunk-2", Values: []float32{4, 5, 6}, Metadata: map[string]any{payloadContentKey: "khác"}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	pointsRaw, ok := captured["points"].([]any)
	if !ok {
		t.Fatalf("points type: got=%T", captured["points"])
	}
	if len(pointsRaw) != 2 {
		t.Fatalf("points length: want=2 got=%d", len(pointsRaw))
	}

	first, ok := pointsRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("point[0] type: got=%T", pointsRaw[0])
	}
	if first["id"] != s.pointID("cb:knowledge", "chunk-1") {
		t.Fatalf("point id mismatch: got=%v", first["id"])
	}
	payload, ok := first["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload type: got=%T", first["payload"])
	}
	if payload[payloadNamespaceKey] != "cb:knowledge" {
		t.Fatalf("payload namespace: want=%q got=%v", "cb:knowledge", payload[payloadNamespaceKey])
	}
	if payload[payloadVectorIDKey] != "chunk-1" {
		t.Fatalf("payload vector id: want=%q got=%v", "chunk-1", payload[payloadVectorIDKey])
	}
	if payload[payloadContentKey] != meta[payloadContentKey] {
		t.Fatalf("payload content: got=%v", payload[payloadContentKey])
	}
	if payload["title"] != "Nhu cầu nước" {
		t.Fatalf("payload title: got=%v", payload["title"])
	}

	if _, exists := meta[payloadNamespaceKey]; exists {
		t.Fatalf("input metadata mutated: namespace key should not exist")
	}
	if _, exists := meta[payloadVectorIDKey]; exists {
		t.Fatalf("input metadata mutated: vector id key should not exist")
	}
}

func TestVectorStoreUpsertDimensionMismatch(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("request must not be sent on validation failure")
		return nil, nil
	})

	err := s.Upsert(context.Background(), "knowledge", []Vector{
		{ID: "chunk-1", Values: []float32{1, 2}},
	})
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if opErr.Code != OperationErrorValidation {
		t.Fatalf("error code: want=%q got=%q", OperationErrorValidation, opErr.Code)
	}
}

func TestVectorStoreQueryMatchesFilterAndContent(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost {
			t.Fatalf("method: want=%s got=%s", http.MethodPost, r.Method)
		}
		if r.URL.Path != "/collections/medical_knowledge/points/search" {
			t.Fatalf("path: want=%q got=%q", "/collections/medical_knowledge/points/search", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, []map[string]any{
			{
				"id":    "ignored-id-a",
				"score": 0.91,
				"payload": map[string]any{
					payloadVectorIDKey: "chunk-a",
					payloadContentKey:  "nội dung a",
					"title":            "Tài liệu A",
				},
			},
			{
				"id":    "ignored-id-b",
				"score": 0.42,
				"payload": map[string]any{
					payloadVectorIDKey: "chunk-b",
					payloadContentKey:  "nội dung b",
				},
			},
		}), nil
	})

	matches, err := s.QueryMatches(context.Background(), "knowledge", []float32{1, 2, 3}, 2)
	if err != nil {
		t.Fatalf("QueryMatches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches length: want=2 got=%d", len(matches))
	}
	if matches[0].ID != "chunk-a" || matches[1].ID != "chunk-b" {
		t.Fatalf("match ordering mismatch: got=%v", []string{matches[0].ID, matches[1].ID})
	}
	if matches[0].Score != 0.91 {
		t.Fatalf("cosine score must pass through: got=%v", matches[0].Score)
	}
	if matches[0].Content != "nội dung a" {
		t.Fatalf("content: got=%q", matches[0].Content)
	}
	if matches[0].Metadata["title"] != "Tài liệu A" {
		t.Fatalf("metadata title: got=%v", matches[0].Metadata["title"])
	}

	if captured["limit"] != float64(2) {
		t.Fatalf("limit: want=2 got=%v", captured["limit"])
	}
	if captured["with_payload"] != true {
		t.Fatalf("with_payload: got=%v", captured["with_payload"])
	}
	filter, ok := captured["filter"].(map[string]any)
	if !ok {
		t.Fatalf("filter type: got=%T", captured["filter"])
	}
	must, ok := filter["must"].([]any)
	if !ok || len(must) != 1 {
		t.Fatalf("must: got=%v", filter["must"])
	}
	cond, ok := must[0].(map[string]any)
	if !ok || cond["key"] != payloadNamespaceKey {
		t.Fatalf("namespace condition: got=%v", must[0])
	}
	condMatch, ok := cond["match"].(map[string]any)
	if !ok || condMatch["value"] != "cb:knowledge" {
		t.Fatalf("namespace match: got=%v", cond["match"])
	}
}

func TestVectorStoreQueryMatchesEuclidNormalization(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		return okResponse(t, []map[string]any{
			{
				"id":    "ignored-far",
				"score": 3.0,
				"payload": map[string]any{
					payloadVectorIDKey: "chunk-far",
				},
			},
			{
				"id":    "ignored-near",
				"score": 1.0,
				"payload": map[string]any{
					payloadVectorIDKey: "chunk-near",
				},
			},
		}), nil
	})
	s.distance = "euclid"

	matches, err := s.QueryMatches(context.Background(), "knowledge", []float32{1, 2, 3}, 2)
	if err != nil {
		t.Fatalf("QueryMatches: %v", err)
	}
	if matches[0].ID != "chunk-near" || matches[1].ID != "chunk-far" {
		t.Fatalf("distance ordering must invert: got=%v", []string{matches[0].ID, matches[1].ID})
	}
	if matches[0].Score != 0.5 {
		t.Fatalf("normalized score: want=0.5 got=%v", matches[0].Score)
	}
	if matches[1].Score != 0.25 {
		t.Fatalf("normalized score: want=0.25 got=%v", matches[1].Score)
	}
}

func TestNormalizeScorePerDistance(t *testing.T) {
	tests := []struct {
		name     string
		distance string
		in       float64
		want     float64
	}{
		{"cosine passthrough", "cosine", 0.8, 0.8},
		{"euclid inverted", "euclid", 1.0, 0.5},
		{"manhattan inverted", "manhattan", 3.0, 0.25},
		{"manhattan negative distance", "manhattan", -1.0, 0.5},
		{"unknown passthrough", "", 0.4, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &VectorStore{distance: tt.distance}
			if got := s.normalizeScore(tt.in); got != tt.want {
				t.Fatalf("normalizeScore(%v): want=%v got=%v", tt.in, tt.want, got)
			}
		})
	}
}

func TestVectorStoreDeleteIDsDedupesAndNamespacedPointIDs(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost {
			t.Fatalf("method: want=%s got=%s", http.MethodPost, r.Method)
		}
		if r.URL.Path != "/collections/medical_knowledge/points/delete" {
			t.Fatalf("path: want=%q got=%q", "/collections/medical_knowledge/points/delete", r.URL.Path)
		}
		if r.URL.RawQuery != "wait=true" {
			t.Fatalf("query: want=%q got=%q", "wait=true", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})

	err := s.DeleteIDs(context.Background(), "knowledge", []string{"chunk-1", "chunk-1", " ", "chunk-2"})
	if err != nil {
		t.Fatalf("DeleteIDs: %v", err)
	}

	points, ok := captured["points"].([]any)
	if !ok {
		t.Fatalf("points type: got=%T", captured["points"])
	}
	if len(points) != 2 {
		t.Fatalf("points length: want=2 got=%d", len(points))
	}
	got := map[string]struct{}{}
	for _, p := range points {
		id, ok := p.(string)
		if !ok {
			t.Fatalf("point id type: got=%T", p)
		}
		got[id] = struct{}{}
	}
	wantA := s.pointID("cb:knowledge", "chunk-1")
	wantB := s.pointID("cb:knowledge", "chunk-2")
	if _, ok := got[wantA]; !ok {
		t.Fatalf("missing point id: %s", wantA)
	}
	if _, ok := got[wantB]; !ok {
		t.Fatalf("missing point id: %s", wantB)
	}
}

func TestVectorStoreErrorStatusSurfaced(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadRequest,
			Header:     make(http.Header),
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"status":{"error":"wrong vector size"}}`))),
		}, nil
	})

	_, err := s.QueryMatches(context.Background(), "knowledge", []float32{1, 2, 3}, 3)
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if opErr.Code != OperationErrorQueryFailed {
		t.Fatalf("error code: want=%q got=%q", OperationErrorQueryFailed, opErr.Code)
	}
	if opErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code: want=%d got=%d", http.StatusBadRequest, opErr.StatusCode)
	}
}

func TestClassifyHTTPCallErrorTimeout(t *testing.T) {
	err := classifyHTTPCallError("query", "timeout", context.DeadlineExceeded)
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if opErr.Code != OperationErrorTimeout {
		t.Fatalf("error code: want=%q got=%q", OperationErrorTimeout, opErr.Code)
	}
}

func TestClassifyHTTPCallErrorTransport(t *testing.T) {
	err := classifyHTTPCallError("query", "transport", fmt.Errorf("boom"))
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if opErr.Code != OperationErrorTransportFailed {
		t.Fatalf("error code: want=%q got=%q", OperationErrorTransportFailed, opErr.Code)
	}
}

func newTestVectorStore(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *VectorStore {
	t.Helper()
	client := &http.Client{
		Transport: roundTripFunc(roundTrip),
	}
	return &VectorStore{
		log:      newTestLogger(t),
		cfg:      Config{Collection: "medical_knowledge", VectorDim: 3},
		baseURL:  "http://qdrant.local",
		nsPrefix: "cb",
		http:     client,
		distance: "cosine",
	}
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})
	return log
}

func okResponse(t *testing.T, result any) *http.Response {
	t.Helper()
	payload := map[string]any{
		"result": result,
		"status": "ok",
		"time":   0.001,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
