package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/deepfocus-ai/deepfocus/internal/config"
	"github.com/deepfocus-ai/deepfocus/internal/library"
	"github.com/deepfocus-ai/deepfocus/internal/observe"
	"github.com/deepfocus-ai/deepfocus/internal/router"
	"github.com/deepfocus-ai/deepfocus/internal/tools"
	"github.com/deepfocus-ai/deepfocus/pkg/backend"
	"github.com/deepfocus-ai/deepfocus/pkg/backend/mock"
)

// testEnv bundles the mocks behind a ready-to-serve handler.
type testEnv struct {
	local   *mock.Backend
	cloud   *mock.Backend
	lib     *library.Library
	handler http.Handler
}

// newTestEnv builds a server over mock backends and an indexed temp library.
// libraryRoot false leaves the library unconfigured.
func newTestEnv(t *testing.T, withLibrary bool) *testEnv {
	t.Helper()

	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	local := &mock.Backend{BackendName: "local-mock"}
	cloud := &mock.Backend{
		BackendName: "cloud-mock",
		Result:      &backend.InferenceResult{Text: "cloud answer", Confidence: 1.0, Source: backend.SourceCloud},
	}

	root := ""
	if withLibrary {
		root = t.TempDir()
		if err := os.WriteFile(filepath.Join(root, "notes.md"), []byte("entropy always rises"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	lib := library.New(root, library.WithMetrics(m))
	if withLibrary {
		if _, err := lib.Index(context.Background()); err != nil {
			t.Fatalf("Index: %v", err)
		}
	}

	reg := tools.NewRegistry(append(tools.FinanceTools(), library.SearchHubTool(lib, cloud))...)
	rt := router.New(local, cloud, router.PolicyFromConfig(config.Default().Routing), router.WithMetrics(m))
	srv := New(":0", rt, reg, lib, WithMetrics(m))

	return &testEnv{local: local, cloud: cloud, lib: lib, handler: srv.Handler()}
}

// do runs one request against the handler and decodes the JSON reply into out.
func (e *testEnv) do(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if out != nil {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v (body %q)", method, path, err, rec.Body.String())
		}
	}
	return rec
}

func TestChat_CognitionRoutesToCloud(t *testing.T) {
	env := newTestEnv(t, false)

	var resp chatResponse
	rec := env.do(t, "POST", "/api/chat", chatRequest{Message: "summarize my week"}, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.Response != "cloud answer" {
		t.Errorf("Response = %v", resp.Response)
	}
	if resp.Metrics.Source != "cloud" {
		t.Errorf("Source = %q, want cloud", resp.Metrics.Source)
	}
	if resp.Metrics.Decision.Path != router.PathCloudDirect {
		t.Errorf("Decision.Path = %q", resp.Metrics.Decision.Path)
	}
	if env.local.Calls() != 0 {
		t.Errorf("local backend called %d times on a cloud-direct route", env.local.Calls())
	}
	if resp.SessionID == "" {
		t.Error("no session ID minted")
	}
}

func TestChat_LocalToolCallExecuted(t *testing.T) {
	env := newTestEnv(t, false)
	env.local.Result = &backend.InferenceResult{
		Calls:      []backend.ToolCall{{Name: "get_stock_price", Arguments: `{"ticker":"AAPL"}`}},
		Confidence: 0.95,
		Source:     backend.SourceLocal,
	}

	var resp chatResponse
	rec := env.do(t, "POST", "/api/chat", chatRequest{Message: "price of AAPL please"}, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	blocks, ok := resp.Response.([]any)
	if !ok || len(blocks) != 1 {
		t.Fatalf("Response = %v, want one tool block", resp.Response)
	}
	block := blocks[0].(map[string]any)
	if data, _ := block["data"].(string); !strings.Contains(data, "$150.00") {
		t.Errorf("block data = %v", block["data"])
	}
	if resp.Metrics.Source != "local" {
		t.Errorf("Source = %q, want local", resp.Metrics.Source)
	}
	if resp.Metrics.LocalOutcome != "accepted" {
		t.Errorf("LocalOutcome = %q", resp.Metrics.LocalOutcome)
	}
	if resp.ToolCallsMade != 1 {
		t.Errorf("ToolCallsMade = %d, want 1", resp.ToolCallsMade)
	}
	if env.cloud.Calls() != 0 {
		t.Errorf("cloud called %d times after local acceptance", env.cloud.Calls())
	}
}

func TestChat_SearchHubWithheldWithoutRoot(t *testing.T) {
	env := newTestEnv(t, false)
	env.local.Result = &backend.InferenceResult{
		Calls:      []backend.ToolCall{{Name: "get_stock_price", Arguments: `{"ticker":"AAPL"}`}},
		Confidence: 0.95,
		Source:     backend.SourceLocal,
	}

	env.do(t, "POST", "/api/chat", chatRequest{Message: "price of AAPL"}, nil)
	if env.local.Calls() != 1 {
		t.Fatalf("local calls = %d", env.local.Calls())
	}
	for _, tool := range env.local.InferCalls[0].Req.Tools {
		if tool.Name == "search_hub" {
			t.Error("search_hub offered without a library root")
		}
	}
}

func TestChat_SearchHubOfferedWithRoot(t *testing.T) {
	env := newTestEnv(t, true)
	env.local.Result = &backend.InferenceResult{
		Calls:      []backend.ToolCall{{Name: "get_stock_price", Arguments: `{"ticker":"AAPL"}`}},
		Confidence: 0.95,
		Source:     backend.SourceLocal,
	}

	env.do(t, "POST", "/api/chat", chatRequest{Message: "price of AAPL"}, nil)
	if env.local.Calls() != 1 {
		t.Fatalf("local calls = %d", env.local.Calls())
	}
	found := false
	for _, tool := range env.local.InferCalls[0].Req.Tools {
		if tool.Name == "search_hub" {
			found = true
		}
	}
	if !found {
		t.Error("search_hub missing despite configured library root")
	}
}

func TestChat_SessionContinuity(t *testing.T) {
	env := newTestEnv(t, false)

	var first chatResponse
	env.do(t, "POST", "/api/chat", chatRequest{Message: "summarize chapter one"}, &first)
	if first.SessionID == "" {
		t.Fatal("no session ID")
	}

	var second chatResponse
	env.do(t, "POST", "/api/chat", chatRequest{Message: "summarize chapter two", SessionID: first.SessionID}, &second)
	if second.SessionID != first.SessionID {
		t.Errorf("session ID changed: %q vs %q", second.SessionID, first.SessionID)
	}

	// Second turn carries user, assistant, user.
	last := env.cloud.InferCalls[len(env.cloud.InferCalls)-1].Req
	if len(last.Messages) != 3 {
		t.Fatalf("second turn sent %d messages, want 3", len(last.Messages))
	}
	if last.Messages[1].Role != "assistant" || last.Messages[1].Content != "cloud answer" {
		t.Errorf("history[1] = %+v", last.Messages[1])
	}
}

func TestChat_ClearResetsSession(t *testing.T) {
	env := newTestEnv(t, false)

	var first chatResponse
	env.do(t, "POST", "/api/chat", chatRequest{Message: "summarize chapter one"}, &first)

	var cleared chatResponse
	env.do(t, "POST", "/api/chat", chatRequest{Message: "clear", SessionID: first.SessionID}, &cleared)
	if cleared.Response != "Conversation cleared!" {
		t.Errorf("Response = %v", cleared.Response)
	}

	env.do(t, "POST", "/api/chat", chatRequest{Message: "summarize chapter two", SessionID: first.SessionID}, nil)
	last := env.cloud.InferCalls[len(env.cloud.InferCalls)-1].Req
	if len(last.Messages) != 1 {
		t.Errorf("post-clear turn sent %d messages, want 1", len(last.Messages))
	}
}

func TestChat_BadRequests(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, "POST", "/api/chat", chatRequest{Message: "   "}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank message: status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader("{not json"))
	rec2 := httptest.NewRecorder()
	env.handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", rec2.Code)
	}
}

func TestChat_CloudFailureMapsToBadGateway(t *testing.T) {
	env := newTestEnv(t, false)
	env.cloud.Result = nil
	env.cloud.Err = fmt.Errorf("upstream exploded")

	rec := env.do(t, "POST", "/api/chat", chatRequest{Message: "summarize everything"}, nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestChat_BothTiersFailedKeepsAuditInBody(t *testing.T) {
	env := newTestEnv(t, false)
	env.local.Result = &backend.InferenceResult{
		Calls:      []backend.ToolCall{{Name: "get_stock_price", Arguments: `{"ticker":"AAPL"}`}},
		Confidence: 0.10,
		Source:     backend.SourceLocal,
	}
	env.cloud.Result = nil
	env.cloud.Err = fmt.Errorf("upstream exploded")

	var body chatErrorBody
	rec := env.do(t, "POST", "/api/chat", chatRequest{Message: "price of AAPL"}, &body)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if body.Error == "" {
		t.Error("error message missing from body")
	}
	if body.Metrics == nil {
		t.Fatal("audit metrics missing from error body")
	}
	if body.Metrics.LocalOutcome != string(router.OutcomeBelowThreshold) {
		t.Errorf("LocalOutcome = %q, want below_threshold", body.Metrics.LocalOutcome)
	}
	if body.Metrics.LocalConfidence != 0.10 {
		t.Errorf("LocalConfidence = %v, want 0.10", body.Metrics.LocalConfidence)
	}
}

func TestChat_FailingToolRendersErrorBlock(t *testing.T) {
	env := newTestEnv(t, true)
	// search_hub with a blank query passes strict call validation (it is a
	// JSON object) but fails inside the handler.
	env.local.Result = &backend.InferenceResult{
		Calls:      []backend.ToolCall{{Name: "search_hub", Arguments: `{"query":""}`}},
		Confidence: 0.95,
		Source:     backend.SourceLocal,
	}

	var resp chatResponse
	rec := env.do(t, "POST", "/api/chat", chatRequest{Message: "find my notes"}, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	blocks, ok := resp.Response.([]any)
	if !ok || len(blocks) != 1 {
		t.Fatalf("Response = %v", resp.Response)
	}
	block := blocks[0].(map[string]any)
	if data, _ := block["data"].(string); !strings.Contains(data, "failed") {
		t.Errorf("block data = %v, want execution error text", block["data"])
	}
}

func TestLibraryEndpoints(t *testing.T) {
	env := newTestEnv(t, true)

	var root rootBody
	env.do(t, "GET", "/api/library/root", nil, &root)
	if root.Root != env.lib.Root() {
		t.Errorf("root = %q, want %q", root.Root, env.lib.Root())
	}

	next := t.TempDir()
	if err := os.WriteFile(filepath.Join(next, "a.md"), []byte("alpha"), 0o644); err != nil {
		t.Fatal(err)
	}
	var put rootBody
	rec := env.do(t, "PUT", "/api/library/root", rootBody{Root: next}, &put)
	if rec.Code != http.StatusOK || !put.OK || put.Root != next {
		t.Errorf("put root: status %d, body %+v", rec.Code, put)
	}

	rec = env.do(t, "PUT", "/api/library/root", rootBody{Root: "  "}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank root: status = %d, want 400", rec.Code)
	}

	var val validateResult
	env.do(t, "POST", "/api/library/validate", validateBody{Path: next}, &val)
	if !val.OK || val.FileCount != 1 {
		t.Errorf("validate = %+v", val)
	}
	env.do(t, "POST", "/api/library/validate", validateBody{Path: filepath.Join(next, "missing")}, &val)
	if val.OK || val.Error == "" {
		t.Errorf("validate missing path = %+v", val)
	}

	var idx indexResult
	rec = env.do(t, "POST", "/api/library/index", nil, &idx)
	if rec.Code != http.StatusOK || !idx.OK || idx.Status.FilesIndexed != 1 {
		t.Errorf("index: status %d, body %+v", rec.Code, idx)
	}

	var status library.Status
	env.do(t, "GET", "/api/library/status", nil, &status)
	if status.FilesIndexed != 1 || status.Root != next {
		t.Errorf("status = %+v", status)
	}

	var roots map[string][]library.SuggestedRoot
	rec = env.do(t, "GET", "/api/library/suggested-roots", nil, &roots)
	if rec.Code != http.StatusOK {
		t.Errorf("suggested-roots: status = %d", rec.Code)
	}
}

func TestIndexWithoutRoot(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, "POST", "/api/library/index", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTranscribeNotImplemented(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, "POST", "/api/transcribe", nil, nil)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestSessionStore(t *testing.T) {
	t.Parallel()
	s := newSessionStore()

	id, history := s.Resolve("")
	if id == "" || len(history) != 0 {
		t.Fatalf("Resolve empty = %q, %v", id, history)
	}

	s.Set(id, []backend.Message{{Role: "user", Content: "hi"}})
	_, history = s.Resolve(id)
	if len(history) != 1 {
		t.Fatalf("history = %v", history)
	}

	// The returned slice is a copy.
	history[0].Content = "mutated"
	_, fresh := s.Resolve(id)
	if fresh[0].Content != "hi" {
		t.Error("session store leaked its backing slice")
	}

	s.Clear(id)
	_, history = s.Resolve(id)
	if len(history) != 0 {
		t.Errorf("history after clear = %v", history)
	}
}
