package agent

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/baalimago/agentloop/internal/history"
	"github.com/baalimago/agentloop/internal/models"
	"github.com/baalimago/agentloop/internal/prompts"
	"github.com/baalimago/agentloop/internal/scratch"
	"github.com/baalimago/agentloop/internal/tools"
	"github.com/baalimago/agentloop/internal/utils"
	"github.com/baalimago/go_away_boilerplate/pkg/testboil"
)

const finalAnswer = `{"thoughts":["done"],"tool_name":"response","tool_args":{"text":"all done"}}`

// scriptedModel replies with one script per call. A script item is either
// a CompletionEvent, or a func() which is run in the streaming goroutine
// before the next item is sent.
type scriptedModel struct {
	mu       sync.Mutex
	scripts  [][]any
	startErr []error
	chats    []models.Chat
}

func (s *scriptedModel) Setup() error { return nil }

func (s *scriptedModel) StreamCompletions(ctx context.Context, chat models.Chat) (chan models.CompletionEvent, error) {
	s.mu.Lock()
	s.chats = append(s.chats, chat)
	if len(s.startErr) > 0 {
		err := s.startErr[0]
		s.startErr = s.startErr[1:]
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	var script []any
	if len(s.scripts) > 0 {
		script = s.scripts[0]
		s.scripts = s.scripts[1:]
	} else {
		script = []any{finalAnswer}
	}
	s.mu.Unlock()

	out := make(chan models.CompletionEvent)
	go func() {
		defer close(out)
		for _, item := range script {
			if f, ok := item.(func()); ok {
				f()
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- item:
			}
		}
	}()
	return out, nil
}

func (s *scriptedModel) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}

type fakeMemory struct {
	forced []bool
}

func (f *fakeMemory) Fetch(ctx context.Context, force bool, conversation []history.Message) (string, error) {
	f.forced = append(f.forced, force)
	return "# Memories on the topic\n- the user likes tea", nil
}

type fakeGateway struct {
	got gatewayCall
}

type gatewayCall struct {
	apiKey string
	req    tools.PaymentRequest
}

func (f *fakeGateway) factory(apiKey string) tools.PaymentGateway {
	f.got.apiKey = apiKey
	return f
}

func (f *fakeGateway) CreatePaymentIntent(ctx context.Context, req tools.PaymentRequest) (tools.PaymentIntent, error) {
	f.got.req = req
	return tools.PaymentIntent{ID: "pi_123", Status: "requires_payment_method", Amount: req.Amount, Currency: req.Currency}, nil
}

func unlimited() Configurations {
	c := Default
	c.RateLimitRequests = -1
	c.RateLimitInputTokens = -1
	c.RateLimitOutputTokens = -1
	return c
}

func newTestAgent(t *testing.T, model models.StreamCompleter, registry *tools.Registry, opts ...Option) *Agent {
	t.Helper()
	if registry == nil {
		registry = tools.Init(tools.Dependencies{})
	}
	opts = append([]Option{
		WithConfigurations(unlimited()),
		WithPrinter(utils.NewPrinter(io.Discard, false, utils.DefaultTheme())),
	}, opts...)
	return New(model, prompts.Defaults(), registry, opts...)
}

func rendered(t *testing.T, id string, vars map[string]string) string {
	t.Helper()
	s, err := prompts.Defaults().ReadTemplate(id, vars)
	if err != nil {
		t.Fatalf("failed to read template %v: %v", id, err)
	}
	return s
}

func contents(h *history.History) []string {
	var ret []string
	for _, m := range h.Messages() {
		ret = append(ret, string(m.Role)+": "+m.Content)
	}
	return ret
}

func runLoop(t *testing.T, a *Agent, msg string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := a.MessageLoop(ctx, msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return got
}

func TestMessageLoop_ResponseEndsLoop(t *testing.T) {
	model := &scriptedModel{scripts: [][]any{{`{"tool_name":"response",`, `"tool_args":{"text":"all done"}}`}}}
	a := newTestAgent(t, model, nil)

	got := runLoop(t, a, "hello")
	testboil.FailTestIfDiff(t, got, "all done")
	testboil.FailTestIfDiff(t, model.calls(), 1)
	testboil.FailTestIfDiff(t, strings.Join(contents(a.History()), "\n"),
		"human: # User message\nhello\nagent: "+`{"tool_name":"response","tool_args":{"text":"all done"}}`)
	testboil.FailTestIfDiff(t, a.limiter.Usage().Calls, 1)
}

func TestMessageLoop_Misformat(t *testing.T) {
	model := &scriptedModel{scripts: [][]any{{"I will just chat instead."}}}
	a := newTestAgent(t, model, nil)

	runLoop(t, a, "hello")
	msgs := a.History().Messages()
	testboil.FailTestIfDiff(t, len(msgs), 4)
	testboil.FailTestIfDiff(t, msgs[2].Content, rendered(t, prompts.MsgMisformat, nil))
	testboil.FailTestIfDiff(t, msgs[2].Role, history.Human)
}

func TestMessageLoop_RepeatWarning(t *testing.T) {
	model := &scriptedModel{scripts: [][]any{{"thinking"}, {"thinking"}}}
	a := newTestAgent(t, model, nil)

	runLoop(t, a, "hello")
	want := []string{
		"human: " + rendered(t, prompts.UserMessage, map[string]string{"message": "hello"}),
		"agent: thinking",
		"human: " + rendered(t, prompts.MsgMisformat, nil),
		"agent: thinking",
		"human: " + rendered(t, prompts.MsgRepeat, nil),
		"agent: " + finalAnswer,
	}
	testboil.FailTestIfDiff(t, strings.Join(contents(a.History()), "\n"), strings.Join(want, "\n"))
}

func TestMessageLoop_UnknownTool(t *testing.T) {
	model := &scriptedModel{scripts: [][]any{{`{"tool_name":"teleport","tool_args":{}}`}}}
	a := newTestAgent(t, model, nil)

	runLoop(t, a, "hello")
	msgs := a.History().Messages()
	testboil.AssertStringContains(t, msgs[2].Content, "Tool 'teleport' not found. Available tools:")
	testboil.AssertStringContains(t, msgs[2].Content, "response")
}

func TestMessageLoop_ToolResponseAppended(t *testing.T) {
	model := &scriptedModel{scripts: [][]any{
		{`{"tool_name":"dynamic_prompt","tool_args":{"text":"remember the milk"}}`},
	}}
	a := newTestAgent(t, model, nil)

	runLoop(t, a, "hello")
	msgs := a.History().Messages()
	testboil.AssertStringContains(t, msgs[2].Content, "# Response from tool 'dynamic_prompt'")
	// The dynamic section is part of the system prompt of the next call
	testboil.AssertStringContains(t, model.chats[1].Messages[0].Content, "# Dynamic Section\nremember the milk")
}

func TestMessageLoop_ModelErrorRecovery(t *testing.T) {
	t.Run("error event", func(t *testing.T) {
		model := &scriptedModel{scripts: [][]any{{"partial", errors.New("connection reset")}}}
		a := newTestAgent(t, model, nil)

		got := runLoop(t, a, "hello")
		testboil.FailTestIfDiff(t, got, "all done")
		msgs := a.History().Messages()
		testboil.FailTestIfDiff(t, msgs[1].Role, history.Human)
		testboil.AssertStringContains(t, msgs[1].Content, "# Error")
		testboil.AssertStringContains(t, msgs[1].Content, "connection reset")
	})

	t.Run("stream fails to start", func(t *testing.T) {
		model := &scriptedModel{startErr: []error{errors.New("status 503")}}
		a := newTestAgent(t, model, nil)

		got := runLoop(t, a, "hello")
		testboil.FailTestIfDiff(t, got, "all done")
		testboil.FailTestIfDiff(t, model.calls(), 2)
		testboil.AssertStringContains(t, a.History().Messages()[1].Content, "status 503")
	})

	t.Run("tool validation error", func(t *testing.T) {
		model := &scriptedModel{scripts: [][]any{{`{"tool_name":"payment","tool_args":{"amount":100}}`}}}
		a := newTestAgent(t, model, nil)

		runLoop(t, a, "hello")
		testboil.AssertStringContains(t, a.History().Messages()[2].Content, "currency")
	})
}

func TestMessageLoop_InterventionDuringStream(t *testing.T) {
	var a *Agent
	model := &scriptedModel{scripts: [][]any{{
		func() { a.Intervene("use the other account") },
		"partial ",
		`{"tool_name":"response","tool_args":{"text":"too early"}}`,
	}}}
	a = newTestAgent(t, model, nil)

	got := runLoop(t, a, "hello")
	testboil.FailTestIfDiff(t, got, "all done")
	want := []string{
		"human: " + rendered(t, prompts.UserMessage, map[string]string{"message": "hello"}),
		"agent: partial ",
		"human: " + rendered(t, prompts.Intervention, map[string]string{"user_message": "use the other account"}),
		"agent: " + finalAnswer,
	}
	testboil.FailTestIfDiff(t, strings.Join(contents(a.History()), "\n"), strings.Join(want, "\n"))
}

type hookTool struct {
	tools.Base
	exec func()
}

func (h *hookTool) Execute(ctx context.Context, args tools.Args) tools.Response {
	h.exec()
	return tools.Response{Message: "hooked"}
}

func hookRegistry(exec func()) *tools.Registry {
	r := tools.Init(tools.Dependencies{})
	r.Set(tools.Specification{
		Name:        "hook",
		Description: "Runs a hook.",
		Inputs:      tools.InputSchema{Type: "object"},
	}, func(b tools.Base) tools.Tool {
		return &hookTool{Base: b, exec: exec}
	})
	return r
}

func TestMessageLoop_InterventionDuringTool(t *testing.T) {
	var a *Agent
	call := `{"tool_name":"hook","tool_args":{}}`
	model := &scriptedModel{scripts: [][]any{{call}}}
	a = newTestAgent(t, model, hookRegistry(func() { a.Intervene("stop") }))

	runLoop(t, a, "hello")
	want := []string{
		"human: " + rendered(t, prompts.UserMessage, map[string]string{"message": "hello"}),
		"agent: " + call,
		"human: " + rendered(t, prompts.Intervention, map[string]string{"user_message": "stop"}),
		"agent: " + finalAnswer,
	}
	testboil.FailTestIfDiff(t, strings.Join(contents(a.History()), "\n"), strings.Join(want, "\n"))
}

func TestMessageLoop_StaleInterventionDropped(t *testing.T) {
	model := &scriptedModel{}
	a := newTestAgent(t, model, nil)
	// Arrives after the previous task has already finished
	a.Intervene("late message")

	got := runLoop(t, a, "hello")
	testboil.FailTestIfDiff(t, got, "all done")
	want := []string{
		"human: " + rendered(t, prompts.UserMessage, map[string]string{"message": "hello"}),
		"agent: " + finalAnswer,
	}
	testboil.FailTestIfDiff(t, strings.Join(contents(a.History()), "\n"), strings.Join(want, "\n"))
}

func TestMessageLoop_RepeatedToolCallNotDispatched(t *testing.T) {
	call := `{"tool_name":"hook","tool_args":{}}`
	executions := 0
	model := &scriptedModel{scripts: [][]any{{call}, {call}}}
	a := newTestAgent(t, model, hookRegistry(func() { executions++ }))

	got := runLoop(t, a, "hello")
	testboil.FailTestIfDiff(t, got, "all done")
	testboil.FailTestIfDiff(t, executions, 1)
	testboil.FailTestIfDiff(t, model.calls(), 3)
	msgs := a.History().Messages()
	testboil.FailTestIfDiff(t, len(msgs), 6)
	testboil.FailTestIfDiff(t, msgs[3].Content, call)
	testboil.FailTestIfDiff(t, msgs[4].Content, rendered(t, prompts.MsgRepeat, nil))
}

func TestMessageLoop_ToolPanicRecovered(t *testing.T) {
	model := &scriptedModel{scripts: [][]any{{`{"tool_name":"hook","tool_args":{}}`}}}
	a := newTestAgent(t, model, hookRegistry(func() { panic("kaboom") }))

	got := runLoop(t, a, "hello")
	testboil.FailTestIfDiff(t, got, "all done")
	msgs := a.History().Messages()
	testboil.AssertStringContains(t, msgs[2].Content, "tool 'hook' panicked: kaboom")
}

func TestMessageLoop_PauseAndResume(t *testing.T) {
	model := &scriptedModel{}
	a := newTestAgent(t, model, nil)
	a.Pause()

	type result struct {
		msg string
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := a.MessageLoop(context.Background(), "hello")
		done <- result{msg, err}
	}()

	select {
	case <-done:
		t.Fatal("expected paused agent to wait")
	case <-time.After(3 * pausePollInterval):
	}
	if !a.Paused() {
		t.Fatal("expected agent to be paused")
	}
	a.Resume()
	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("unexpected error: %v", r.err)
		}
		testboil.FailTestIfDiff(t, r.msg, "all done")
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not resume")
	}
}

func TestMessageLoop_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &scriptedModel{scripts: [][]any{{"partial", func() { cancel() }, "more"}}}
	a := newTestAgent(t, model, nil)

	_, err := a.MessageLoop(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
	if a.streaming.Current() != nil {
		t.Fatal("expected streaming registry to be cleared")
	}
}

func TestMessageLoop_StreamingRegistry(t *testing.T) {
	reg := &StreamingRegistry{}
	var a *Agent
	var during *Agent
	model := &scriptedModel{scripts: [][]any{{func() { during = reg.Current() }, finalAnswer}}}
	a = newTestAgent(t, model, nil, WithStreamingRegistry(reg))

	runLoop(t, a, "hello")
	if during != a {
		t.Fatal("expected agent to be marked as streaming during its loop")
	}
	if reg.Current() != nil {
		t.Fatal("expected registry to be cleared after the loop")
	}
}

func TestStreamingRegistry_UnmarkOnlyOwn(t *testing.T) {
	reg := &StreamingRegistry{}
	first, second := &Agent{}, &Agent{}
	reg.mark(first)
	reg.mark(second)
	reg.unmark(first)
	if reg.Current() != second {
		t.Fatal("expected unmark of a stale agent to keep the current one")
	}
	reg.unmark(second)
	if reg.Current() != nil {
		t.Fatal("expected registry to be empty")
	}
}

func TestMessageLoop_Payment(t *testing.T) {
	gw := &fakeGateway{}
	registry := tools.Init(tools.Dependencies{StripeAPIKey: "sk_test_env", NewGateway: gw.factory})
	model := &scriptedModel{scripts: [][]any{
		{`{"tool_name":"payment","tool_args":{"amount":"2500","currency":"usd","description":"consulting"}}`},
	}}
	a := newTestAgent(t, model, registry)

	runLoop(t, a, "charge 25 dollars")
	testboil.FailTestIfDiff(t, gw.got.apiKey, "sk_test_env")
	testboil.FailTestIfDiff(t, gw.got.req, tools.PaymentRequest{Amount: 2500, Currency: "usd", Description: "consulting"})
	id, ok := scratch.Get(a.Data(), tools.LastPaymentIntent)
	if !ok {
		t.Fatal("expected payment intent in scratch data")
	}
	testboil.FailTestIfDiff(t, id, "pi_123")
	testboil.AssertStringContains(t, a.History().Messages()[2].Content, "Payment intent created: pi_123")
}

func TestMessageLoop_Memories(t *testing.T) {
	mem := &fakeMemory{}
	model := &scriptedModel{scripts: [][]any{{"no tool here"}}}
	a := newTestAgent(t, model, nil, WithMemory(mem))

	runLoop(t, a, "hello")
	testboil.FailTestIfDiff(t, len(mem.forced), 2)
	testboil.FailTestIfDiff(t, mem.forced[0], true)
	testboil.FailTestIfDiff(t, mem.forced[1], false)
	testboil.AssertStringContains(t, model.chats[0].Messages[0].Content, "\n\n# Memories on the topic\n- the user likes tea")
}

func TestBuildFullPrompt(t *testing.T) {
	a := newTestAgent(t, &scriptedModel{}, nil)
	got, err := a.buildFullPrompt()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testboil.AssertStringContains(t, got, "You are Agent 0")
	testboil.AssertStringContains(t, got, "## response\n")
	if !strings.HasSuffix(got, "# Dynamic Section\n\n") {
		t.Fatalf("expected empty dynamic section at the end, got: %q", got)
	}
}

func TestToChat(t *testing.T) {
	h := history.New(history.KeepPolicy{}, nil)
	h.Append(history.Human, "hi")
	h.Append(history.Agent, "hello")
	chat := toChat("id", "system", h.Messages())
	testboil.FailTestIfDiff(t, chat.ID, "id")
	want := []models.Message{
		{Role: "system", Content: "system"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	testboil.FailTestIfDiff(t, len(chat.Messages), len(want))
	for i := range want {
		testboil.FailTestIfDiff(t, chat.Messages[i], want[i])
	}
	testboil.FailTestIfDiff(t, estimateTokens(chat), (6+6+4+2+9+5)/4)
}

func TestConfigurations(t *testing.T) {
	testboil.FailTestIfDiff(t, Default.RateLimit().Window, time.Minute)
	testboil.FailTestIfDiff(t, Default.KeepPolicy(), history.KeepPolicy{Max: 25, Start: 5, End: 10})
	testboil.FailTestIfDiff(t, Configurations{}.ShouldSaveConversations(), true)
	no := false
	testboil.FailTestIfDiff(t, Configurations{SaveConversations: &no}.ShouldSaveConversations(), false)
}

type rejectingGateway struct{}

func (rejectingGateway) CreatePaymentIntent(ctx context.Context, req tools.PaymentRequest) (tools.PaymentIntent, error) {
	return tools.PaymentIntent{}, errors.New("your card was declined (code: card_declined)")
}

func TestMessageLoop_PaymentRejected(t *testing.T) {
	registry := tools.Init(tools.Dependencies{
		StripeAPIKey: "sk_test_env",
		NewGateway:   func(string) tools.PaymentGateway { return rejectingGateway{} },
	})
	model := &scriptedModel{scripts: [][]any{
		{`Let me charge that. {"tool_name": "payment", "tool_args": {"amount": 500, "currency": "usd"}} Done.`},
	}}
	a := newTestAgent(t, model, registry)

	got := runLoop(t, a, "charge 5 dollars")
	testboil.FailTestIfDiff(t, got, "all done")
	testboil.FailTestIfDiff(t, model.calls(), 2)
	msgs := a.History().Messages()
	testboil.FailTestIfDiff(t, msgs[2].Role, history.Human)
	testboil.AssertStringContains(t, msgs[2].Content, "# Response from tool 'payment'")
	testboil.AssertStringContains(t, msgs[2].Content, "Payment processing error: your card was declined")
	if _, ok := scratch.Get(a.Data(), tools.LastPaymentIntent); ok {
		t.Fatal("expected no payment intent after rejection")
	}
	// The rejection is part of the conversation the model sees next
	last := model.chats[1].Messages[len(model.chats[1].Messages)-1]
	testboil.AssertStringContains(t, last.Content, "card was declined")
}
