// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datachat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/DataChat/services/datachat/pipeline"
	"github.com/AleutianAI/DataChat/services/datachat/schema"
	"github.com/AleutianAI/DataChat/services/datachat/store"
	"github.com/AleutianAI/DataChat/services/llm"
)

// stubProvider answers every completion with the same text or error.
type stubProvider struct {
	text string
	err  error
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	return s.text, s.err
}

// stubExecutor returns a fixed result and ping verdict.
type stubExecutor struct {
	result  *store.Result
	err     error
	pingErr error
}

func (s *stubExecutor) Query(ctx context.Context, query string) (*store.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}
func (s *stubExecutor) Ping(ctx context.Context) error { return s.pingErr }
func (s *stubExecutor) Close() error                   { return nil }

func newTestRouter(provider llm.Client, executor store.Executor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	orch := pipeline.New(provider, executor, schema.NewLoader(nil), nil)
	h := NewHandlers(orch, executor, nil)
	router := gin.New()
	RegisterRoutes(router.Group("/v1"), h)
	return router
}

func postChat(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/datachat/chat", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleChatEmptyQuestion(t *testing.T) {
	router := newTestRouter(&stubProvider{}, nil)

	for _, body := range []any{
		map[string]any{"history": []any{}},
		map[string]any{"question": "   "},
	} {
		w := postChat(t, router, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d for body %v, want 400", w.Code, body)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Error != "invalid_request" {
			t.Errorf("error = %q", resp.Error)
		}
	}
}

func TestHandleChatMalformedJSON(t *testing.T) {
	router := newTestRouter(&stubProvider{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/datachat/chat", bytes.NewReader([]byte("{nope")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleChatConversational(t *testing.T) {
	router := newTestRouter(&stubProvider{}, nil)

	w := postChat(t, router, map[string]any{"question": "who are you?"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp pipeline.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Type != pipeline.TypeConversational {
		t.Errorf("type = %q", resp.Type)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("response must carry a request ID")
	}
}

func TestHandleChatDataQuerySuccess(t *testing.T) {
	provider := &stubProvider{text: "SELECT DISTRIBUTORNAME, NETAMOUNT FROM FACT_SALES_ORDER"}
	executor := &stubExecutor{result: &store.Result{
		Columns:  []string{"DISTRIBUTORNAME", "NETAMOUNT"},
		Rows:     []map[string]any{{"DISTRIBUTORNAME": "ACME", "NETAMOUNT": float64(10)}},
		RowCount: 1,
	}}
	router := newTestRouter(provider, executor)

	w := postChat(t, router, map[string]any{"question": "top distributors by sales this year"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp pipeline.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	// The stub answers composition with the same SQL text; the envelope
	// shape is what matters here.
	if resp.Type != pipeline.TypeSuccess || resp.RowCount != 1 || resp.Table != "primary" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleChatProviderTimeoutIs504(t *testing.T) {
	router := newTestRouter(&stubProvider{err: llm.ErrTimeout}, nil)

	w := postChat(t, router, map[string]any{"question": "total sales by month for 2024"})

	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp pipeline.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Type != pipeline.TypeTimeout {
		t.Errorf("type = %q", resp.Type)
	}
}

func TestHandleChatEchoesRequestID(t *testing.T) {
	router := newTestRouter(&stubProvider{}, nil)

	raw, _ := json.Marshal(map[string]any{"question": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/v1/datachat/chat", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(&stubProvider{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/datachat/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHandleReady(t *testing.T) {
	t.Run("no warehouse", func(t *testing.T) {
		router := newTestRouter(&stubProvider{}, nil)
		req := httptest.NewRequest(http.MethodGet, "/v1/datachat/ready", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})

	t.Run("warehouse up", func(t *testing.T) {
		router := newTestRouter(&stubProvider{}, &stubExecutor{})
		req := httptest.NewRequest(http.MethodGet, "/v1/datachat/ready", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("warehouse down", func(t *testing.T) {
		router := newTestRouter(&stubProvider{}, &stubExecutor{pingErr: errors.New("refused")})
		req := httptest.NewRequest(http.MethodGet, "/v1/datachat/ready", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})
}
