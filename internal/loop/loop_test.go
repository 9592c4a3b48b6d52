package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/wolo-ai/wolo/internal/agent"
	"github.com/wolo-ai/wolo/internal/control"
	"github.com/wolo-ai/wolo/internal/event"
	"github.com/wolo-ai/wolo/internal/llm"
	"github.com/wolo-ai/wolo/internal/pathguard"
	"github.com/wolo-ai/wolo/internal/session"
	"github.com/wolo-ai/wolo/internal/tool"
	"github.com/wolo-ai/wolo/pkg/types"
)

// scriptedServer replays one SSE body per request, in order. Requests
// past the script get the last body again.
func scriptedServer(t *testing.T, scripts ...[]string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&hits, 1)) - 1
		if n >= len(scripts) {
			n = len(scripts) - 1
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range scripts[n] {
			fmt.Fprintf(w, "data: %s\n\n", line)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func textStop(text string) []string {
	return []string{
		fmt.Sprintf(`{"choices":[{"delta":{"content":%q}}]}`, text),
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	}
}

func toolCalls(calls ...string) []string {
	var lines []string
	for i, name := range calls {
		lines = append(lines, fmt.Sprintf(
			`{"choices":[{"delta":{"tool_calls":[{"index":%d,"id":"call_%d","function":{"name":%q,"arguments":"{}"}}]}}]}`,
			i, i, name))
	}
	return append(lines, `{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`)
}

// stubTool runs a callback and reports its result.
type stubTool struct {
	name string
	run  func() (*tool.Result, error)
}

func (s *stubTool) ID() string                   { return s.name }
func (s *stubTool) Description() string          { return "stub" }
func (s *stubTool) Parameters() json.RawMessage  { return json.RawMessage(`{"type":"object"}`) }
func (s *stubTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
	return s.run()
}

type fixture struct {
	store   *session.Store
	control *control.Manager
	metrics *Metrics
	sessID  string
	loop    *Loop
}

func newFixture(t *testing.T, srv *httptest.Server, tools ...tool.Tool) *fixture {
	t.Helper()
	event.Reset()
	t.Cleanup(event.Reset)

	store := session.NewStore(t.TempDir())
	sess, err := store.CreateSession(context.Background(), "", "general")
	if err != nil {
		t.Fatal(err)
	}

	registry := tool.NewRegistry()
	for _, tl := range tools {
		registry.Register(tl)
	}
	ctrl := control.NewManager()
	dispatcher := tool.NewDispatcher(registry, store, nil, ctrl, nil, t.TempDir())

	cfg, err := agent.Get("general")
	if err != nil {
		t.Fatal(err)
	}
	metrics := NewMetrics()
	client := llm.NewClient(types.EndpointConfig{BaseURL: srv.URL, Model: "test-model"})

	l := New(sess.ID, Deps{
		Store:      store,
		Client:     client,
		Dispatcher: dispatcher,
		Control:    ctrl,
		Agent:      cfg,
		Mode:       ModeFor(types.ModeSolo),
		Metrics:    metrics,
	})
	return &fixture{store: store, control: ctrl, metrics: metrics, sessID: sess.ID, loop: l}
}

func TestRun_PlainTextTurn(t *testing.T) {
	srv, hits := scriptedServer(t, textStop("Done."))
	f := newFixture(t, srv)

	reason, err := f.loop.Run(context.Background(), "say done")
	if err != nil {
		t.Fatal(err)
	}
	if reason != "stop" {
		t.Errorf("reason = %q", reason)
	}
	if *hits != 1 {
		t.Errorf("expected 1 model call, got %d", *hits)
	}

	messages, _ := f.store.GetAllMessages(context.Background(), f.sessID)
	if len(messages) != 2 {
		t.Fatalf("expected user + assistant, got %d messages", len(messages))
	}
	assistant := messages[1]
	if !assistant.Finished || assistant.TextContent() != "Done." {
		t.Errorf("assistant = finished=%v text=%q", assistant.Finished, assistant.TextContent())
	}

	// First prompt becomes the title.
	sess, _ := f.store.GetSessionMetadata(context.Background(), f.sessID)
	if sess.Title == "" {
		t.Error("session should be titled from the first prompt")
	}
}

func TestRun_SingleToolThenStop(t *testing.T) {
	srv, hits := scriptedServer(t, toolCalls("probe"), textStop("All good."))
	ran := int32(0)
	probe := &stubTool{name: "probe", run: func() (*tool.Result, error) {
		atomic.AddInt32(&ran, 1)
		return &tool.Result{Output: "probe result"}, nil
	}}
	f := newFixture(t, srv, probe)

	reason, err := f.loop.Run(context.Background(), "probe it")
	if err != nil {
		t.Fatal(err)
	}
	if reason != "stop" {
		t.Errorf("reason = %q", reason)
	}
	if ran != 1 {
		t.Errorf("tool ran %d times", ran)
	}
	if *hits != 2 {
		t.Errorf("expected 2 model calls, got %d", *hits)
	}

	export := f.metrics.ExportSession(f.sessID)
	if export["steps"] != 2 {
		t.Errorf("steps = %v", export["steps"])
	}
	counts := export["tool_counts"].(map[string]int)
	if counts["probe"] != 1 {
		t.Errorf("tool_counts = %v", counts)
	}

	messages, _ := f.store.GetAllMessages(context.Background(), f.sessID)
	var part *types.ToolPart
	for _, msg := range messages {
		for _, p := range msg.ToolParts() {
			part = p
		}
	}
	if part == nil || part.Status != types.StatusCompleted || part.Output != "probe result" {
		t.Errorf("tool part = %+v", part)
	}
}

func TestRun_InterruptBetweenTools(t *testing.T) {
	srv, _ := scriptedServer(t, toolCalls("first", "second"))
	var f *fixture
	first := &stubTool{name: "first", run: func() (*tool.Result, error) {
		f.control.Interrupt()
		return &tool.Result{Output: "ok"}, nil
	}}
	secondRan := false
	second := &stubTool{name: "second", run: func() (*tool.Result, error) {
		secondRan = true
		return &tool.Result{Output: "ok"}, nil
	}}
	f = newFixture(t, srv, first, second)

	reason, err := f.loop.Run(context.Background(), "go")
	if err != nil {
		t.Fatal(err)
	}
	if reason != FinishInterrupted {
		t.Errorf("reason = %q", reason)
	}
	if secondRan {
		t.Error("second tool must not run after interrupt")
	}

	messages, _ := f.store.GetAllMessages(context.Background(), f.sessID)
	parts := messages[len(messages)-1].ToolParts()
	if len(parts) != 2 {
		t.Fatalf("expected 2 tool parts, got %d", len(parts))
	}
	if parts[0].Status != types.StatusCompleted {
		t.Errorf("first part status = %q", parts[0].Status)
	}
	if parts[1].Status != types.StatusInterrupted || parts[1].Output == "" {
		t.Errorf("second part = %q %q", parts[1].Status, parts[1].Output)
	}
}

func TestRun_PathSafetyTerminates(t *testing.T) {
	srv, hits := scriptedServer(t, toolCalls("writer"))
	writer := &stubTool{name: "writer", run: func() (*tool.Result, error) {
		return nil, &pathguard.DeniedError{Path: "/etc/passwd"}
	}}
	f := newFixture(t, srv, writer)

	reason, err := f.loop.Run(context.Background(), "write it")
	if err != nil {
		t.Fatal(err)
	}
	if reason != FinishPathSafety {
		t.Errorf("reason = %q", reason)
	}
	if *hits != 1 {
		t.Errorf("denial must stop the run, got %d model calls", *hits)
	}

	messages, _ := f.store.GetAllMessages(context.Background(), f.sessID)
	parts := messages[len(messages)-1].ToolParts()
	if parts[0].Status != types.StatusError {
		t.Errorf("denied part status = %q", parts[0].Status)
	}
}

func TestRun_InterjectionContinues(t *testing.T) {
	srv, hits := scriptedServer(t, textStop("First answer."), textStop("Second answer."))
	f := newFixture(t, srv)
	f.control.Interject("one more thing")

	reason, err := f.loop.Run(context.Background(), "start")
	if err != nil {
		t.Fatal(err)
	}
	if reason != "stop" {
		t.Errorf("reason = %q", reason)
	}
	if *hits != 2 {
		t.Errorf("interjection should trigger a second turn, got %d calls", *hits)
	}

	messages, _ := f.store.GetAllMessages(context.Background(), f.sessID)
	var userTexts []string
	for _, msg := range messages {
		if msg.Role == types.RoleUser {
			userTexts = append(userTexts, msg.TextContent())
		}
	}
	if len(userTexts) != 2 || userTexts[1] != "one more thing" {
		t.Errorf("user messages = %v", userTexts)
	}
}

func TestRun_MaxStepsQuota(t *testing.T) {
	srv, _ := scriptedServer(t, toolCalls("spin"))
	spin := &stubTool{name: "spin", run: func() (*tool.Result, error) {
		return &tool.Result{Output: "again"}, nil
	}}
	f := newFixture(t, srv, spin)
	f.loop.maxSteps = 2

	reason, err := f.loop.Run(context.Background(), "loop forever")
	if err != nil {
		t.Fatal(err)
	}
	if reason != FinishMaxSteps {
		t.Errorf("reason = %q", reason)
	}
}

func TestRun_PublishesFinishAndClearsPID(t *testing.T) {
	srv, _ := scriptedServer(t, textStop("ok"))
	f := newFixture(t, srv)

	ctx := context.Background()
	if ok, _ := f.store.CheckAndSetPID(ctx, f.sessID); !ok {
		t.Fatal("could not acquire pid lock")
	}

	var finish *event.FinishData
	unsub := event.Subscribe(event.Finish, func(ev event.Event) {
		data := ev.Data.(event.FinishData)
		finish = &data
	})
	defer unsub()

	stopped := false
	f.loop.deps.OnStop = func() { stopped = true }

	if _, err := f.loop.Run(ctx, "hi"); err != nil {
		t.Fatal(err)
	}
	if finish == nil || finish.Reason != "stop" {
		t.Errorf("finish event = %+v", finish)
	}
	if !stopped {
		t.Error("OnStop must run on the terminal path")
	}
	sess, _ := f.store.GetSessionMetadata(ctx, f.sessID)
	if sess.PID != 0 {
		t.Errorf("pid lock not cleared: %d", sess.PID)
	}
}
