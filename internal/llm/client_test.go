package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/wolo-ai/wolo/pkg/types"
)

func sseServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func testClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	ep := types.EndpointConfig{Name: "test", BaseURL: srv.URL, APIKey: "sk-test", Model: "test-model"}
	return NewClient(ep, opts...)
}

func collect(t *testing.T, ch <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestChatCompletion_TextStream(t *testing.T) {
	srv := sseServer(t,
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
	)
	defer srv.Close()

	c := testClient(t, srv)
	ch, err := c.ChatCompletion(context.Background(), Request{Messages: []*types.Message{userMsg("hi")}})
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, ch)

	var text string
	var finish string
	for _, ev := range events {
		switch ev.Type {
		case EventTextDelta:
			text += ev.Text
		case EventFinish:
			finish = ev.FinishReason
		case EventError:
			t.Fatalf("unexpected error: %v", ev.Err)
		}
	}
	if text != "Hello" {
		t.Errorf("text = %q", text)
	}
	if finish != "stop" {
		t.Errorf("finish = %q", finish)
	}
	if u := c.Usage(); u.TotalTokens != 7 || u.PromptTokens != 5 {
		t.Errorf("usage not captured: %+v", u)
	}
}

func TestChatCompletion_ToolCallAssembly(t *testing.T) {
	// The id arrives on the second chunk; arguments split across three.
	srv := sseServer(t,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"read","arguments":"{\"pa"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_abc","function":{"arguments":"th\":\"a"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":".txt\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	)
	defer srv.Close()

	c := testClient(t, srv)
	ch, _ := c.ChatCompletion(context.Background(), Request{Messages: []*types.Message{userMsg("read it")}})
	events := collect(t, ch)

	var calls []StreamEvent
	streaming, progress := 0, 0
	for _, ev := range events {
		switch ev.Type {
		case EventToolCall:
			calls = append(calls, ev)
		case EventToolCallStreaming:
			streaming++
		case EventToolCallProgress:
			progress++
		}
	}
	if len(calls) != 1 {
		t.Fatalf("expected exactly one tool-call event, got %d", len(calls))
	}
	call := calls[0]
	if call.ToolID != "call_abc" || call.ToolName != "read" {
		t.Errorf("call identity wrong: %+v", call)
	}
	if call.Input["path"] != "a.txt" {
		t.Errorf("arguments not assembled: %v", call.Input)
	}
	if streaming != 1 || progress != 2 {
		t.Errorf("ui hints: streaming=%d progress=%d", streaming, progress)
	}
}

func TestChatCompletion_DiscardsUnparseableArgs(t *testing.T) {
	srv := sseServer(t,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"read","arguments":"{not json"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	)
	defer srv.Close()

	c := testClient(t, srv)
	ch, _ := c.ChatCompletion(context.Background(), Request{Messages: []*types.Message{userMsg("x")}})
	for _, ev := range collect(t, ch) {
		if ev.Type == EventToolCall {
			t.Error("unparseable arguments must not produce a tool-call event")
		}
	}
}

func TestChatCompletion_AuthErrorNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	ch, _ := c.ChatCompletion(context.Background(), Request{Messages: []*types.Message{userMsg("x")}})
	events := collect(t, ch)

	last := events[len(events)-1]
	if last.Type != EventError || last.Err.Kind != KindAuth {
		t.Fatalf("expected auth error, got %+v", last)
	}
	if last.Err.Retryable() {
		t.Error("auth errors must not be retryable")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("auth failure was retried %d times", n)
	}
}

func TestChatCompletion_ServerErrorRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := testClient(t, srv, WithMaxAttempts(2))
	ch, _ := c.ChatCompletion(context.Background(), Request{Messages: []*types.Message{userMsg("x")}})
	events := collect(t, ch)

	for _, ev := range events {
		if ev.Type == EventError {
			t.Fatalf("retry should have recovered: %v", ev.Err)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("expected 2 attempts, got %d", n)
	}
}

func TestChatCompletion_CorrelationHeaders(t *testing.T) {
	var gotSession, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.Header.Get(headerSession)
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := testClient(t, srv, WithCorrelation("sess_1", "proj_1"))
	ch, _ := c.ChatCompletion(context.Background(), Request{Messages: []*types.Message{userMsg("x")}})
	collect(t, ch)

	if gotSession != "sess_1" {
		t.Errorf("session header = %q", gotSession)
	}
	if gotUA != userAgent {
		t.Errorf("user agent = %q", gotUA)
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := map[int]ErrorKind{
		401: KindAuth,
		403: KindAuth,
		429: KindRateLimit,
		404: KindResource,
		400: KindInvalidRequest,
		422: KindInvalidRequest,
		500: KindServer,
		503: KindServer,
	}
	for code, want := range cases {
		if got := classifyStatus(code); got != want {
			t.Errorf("classifyStatus(%d) = %s, want %s", code, got, want)
		}
	}
}
