package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenticcompany/redditor/internal/pipeline"
	"github.com/agenticcompany/redditor/internal/pipelines"
	"github.com/agenticcompany/redditor/internal/pubsub"
	"github.com/agenticcompany/redditor/internal/reddit"
	"github.com/agenticcompany/redditor/internal/reddit/reddittest"
)

func newTestHandler(t *testing.T) (*Handler, *pubsub.Broker[pipeline.RunEvent]) {
	t.Helper()

	fake := reddittest.NewFake().AddPosts(
		reddit.Post{ID: "p1", Subreddit: "test", Title: "first", Score: 10},
		reddit.Post{ID: "p2", Subreddit: "test", Title: "second", Score: 5},
	)
	reg := pipeline.NewRegistry()
	require.NoError(t, pipelines.RegisterBuiltins(reg, pipelines.Deps{
		NewClient: func(context.Context) (reddit.API, error) { return fake, nil },
	}))

	broker := pubsub.NewBroker[pipeline.RunEvent]()
	t.Cleanup(broker.Close)

	h := NewHandler(HandlerConfig{
		Registry: reg,
		Runner:   pipeline.NewRunner(pipeline.WithEvents(broker)),
		Events:   broker,
		Version:  "1.2.3",
	})
	return h, broker
}

func serve(h *Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	return w
}

func TestHandler_Root(t *testing.T) {
	h, _ := newTestHandler(t)

	w := serve(h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp RootResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, RootResponse{Name: "Redditor API", Version: "1.2.3", Status: "operational"}, resp)
}

func TestHandler_Health(t *testing.T) {
	h, _ := newTestHandler(t)

	w := serve(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestHandler_ListPipelines(t *testing.T) {
	h, _ := newTestHandler(t)

	w := serve(h, http.MethodGet, "/pipelines", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListPipelinesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Total)
	assert.Equal(t, "digest", resp.Pipelines[0].Name)
	assert.Equal(t, []string{"subreddit"}, resp.Pipelines[0].RequiredConfig)
	assert.Equal(t, "thread", resp.Pipelines[2].Name)
}

func TestHandler_ListPipelines_Empty(t *testing.T) {
	h := NewHandler(HandlerConfig{})

	w := serve(h, http.MethodGet, "/pipelines", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pipelines":[],"total":0}`, w.Body.String())
}

func TestHandler_GetPipeline(t *testing.T) {
	h, _ := newTestHandler(t)

	w := serve(h, http.MethodGet, "/pipelines/monitor", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp PipelineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "monitor", resp.Name)
	assert.Equal(t, []string{"subreddit", "query"}, resp.RequiredConfig)
}

func TestHandler_GetPipeline_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	w := serve(h, http.MethodGet, "/pipelines/nonexistent", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Code)
	assert.Equal(t, "Pipeline 'nonexistent' not found.", resp.Error)
}

func TestHandler_RunPipeline(t *testing.T) {
	h, _ := newTestHandler(t)

	w := serve(h, http.MethodPost, "/pipelines/digest/run", `{"config": {"subreddit": "test"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, pipeline.StatusSuccess, res.Status)
	assert.Equal(t, 2, res.ItemsProcessed)
	assert.Equal(t, "digest", res.Pipeline)
	assert.NotEmpty(t, res.RunID)
}

func TestHandler_RunPipeline_MissingConfig(t *testing.T) {
	h, _ := newTestHandler(t)

	w := serve(h, http.MethodPost, "/pipelines/monitor/run", `{"config": {"subreddit": "test"}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "configuration_error", resp.Code)
	assert.Equal(t, []string{"query"}, resp.Missing)
}

func TestHandler_RunPipeline_EmptyBody(t *testing.T) {
	h, _ := newTestHandler(t)

	w := serve(h, http.MethodPost, "/pipelines/digest/run", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"subreddit"}, resp.Missing)
}

func TestHandler_RunPipeline_InvalidJSON(t *testing.T) {
	h, _ := newTestHandler(t)

	w := serve(h, http.MethodPost, "/pipelines/digest/run", "not json")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_json", resp.Code)
}

func TestHandler_RunPipeline_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	w := serve(h, http.MethodPost, "/pipelines/nonexistent/run", `{}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_RunPipeline_ExecutionError(t *testing.T) {
	h, _ := newTestHandler(t)

	w := serve(h, http.MethodPost, "/pipelines/thread/run", `{"config": {"post_id": "missing"}}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "execution_failed", resp.Code)
	assert.Equal(t, "execute", resp.Details)
	require.NotNil(t, resp.Result)
	assert.Equal(t, pipeline.StatusFailure, resp.Result.Status)
	assert.Contains(t, resp.Error, "pipeline thread failed during execute")
}

func TestHandler_Metrics(t *testing.T) {
	h, _ := newTestHandler(t)
	serve(h, http.MethodGet, "/health", "")

	w := serve(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "redditor_http_requests_total")
}

func TestHandler_CORS(t *testing.T) {
	h := NewHandler(HandlerConfig{AllowedOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandler_StreamEvents_Unconfigured(t *testing.T) {
	h := NewHandler(HandlerConfig{})

	w := serve(h, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// readEvent returns the next "event:" name from an SSE stream, skipping
// comments and data lines.
func readEvent(t *testing.T, sc *bufio.Scanner) (string, string) {
	t.Helper()
	var name string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && name != "":
			return name, strings.TrimPrefix(line, "data: ")
		}
	}
	require.NoError(t, sc.Err())
	t.Fatal("stream ended")
	return "", ""
}

func TestHandler_StreamEvents(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	name, _ := readEvent(t, sc)
	require.Equal(t, "connected", name)

	run, err := http.Post(srv.URL+"/pipelines/digest/run", "application/json",
		strings.NewReader(`{"config": {"subreddit": "test"}}`))
	require.NoError(t, err)
	_ = run.Body.Close()
	require.Equal(t, http.StatusOK, run.StatusCode)

	var names []string
	for range 3 {
		name, data := readEvent(t, sc)
		names = append(names, name)

		var ev pipeline.RunEvent
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		assert.Equal(t, "digest", ev.Pipeline)
	}
	assert.Equal(t, []string{
		string(pipeline.EventRunStarted),
		string(pipeline.EventRunSucceeded),
		string(pipeline.EventRunCleanedUp),
	}, names)
}

func TestHandler_StreamEvents_Heartbeat(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Events:    pubsub.NewBroker[pipeline.RunEvent](),
		Heartbeat: 10 * time.Millisecond,
	})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if sc.Text() == ": heartbeat" {
			return
		}
	}
	t.Fatalf("no heartbeat: %v", sc.Err())
}
