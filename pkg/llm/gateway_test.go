package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeProvider 是可编程的测试 provider。
type fakeProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(_ context.Context, _ []Message) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func newTestGateway(providers ...Provider) *Gateway {
	return NewGatewayWithProviders(providers, time.Second, 3, time.Minute)
}

func TestGeneratePriorityOrder(t *testing.T) {
	first := &fakeProvider{name: "first", text: "from first"}
	second := &fakeProvider{name: "second", text: "from second"}
	g := newTestGateway(first, second)

	res := g.Generate(context.Background(), []Message{{Role: "user", Content: "hello"}})
	if res.Provider != "first" || res.Text != "from first" {
		t.Fatalf("expected first provider to win, got %+v", res)
	}
	if res.Degraded {
		t.Fatalf("successful provider call must not be degraded")
	}
	if second.calls != 0 {
		t.Fatalf("second provider should not be called, got %d calls", second.calls)
	}
}

func TestGenerateFallsBackOnFailure(t *testing.T) {
	broken := &fakeProvider{name: "broken", err: errors.New("rate limited")}
	healthy := &fakeProvider{name: "healthy", text: "recovered"}
	g := newTestGateway(broken, healthy)

	res := g.Generate(context.Background(), []Message{{Role: "user", Content: "hello"}})
	if res.Provider != "healthy" || res.Text != "recovered" {
		t.Fatalf("expected fallback to healthy provider, got %+v", res)
	}
	if res.Degraded {
		t.Fatalf("real provider fallback must not be degraded")
	}
}

func TestGenerateAllProvidersFailReturnsMock(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("timeout")}
	b := &fakeProvider{name: "b", err: errors.New("auth error")}
	g := newTestGateway(a, b)

	res := g.Generate(context.Background(), []Message{{Role: "user", Content: "what about my retirement plan?"}})
	if !res.Degraded {
		t.Fatalf("expected degraded result, got %+v", res)
	}
	if res.Provider != "mock" {
		t.Fatalf("expected mock provider, got %s", res.Provider)
	}
	if res.Text == "" {
		t.Fatalf("degraded result must carry non-empty text")
	}
}

func TestGenerateNoProvidersConfigured(t *testing.T) {
	g := newTestGateway()

	res := g.Generate(context.Background(), []Message{{Role: "user", Content: "hello"}})
	if !res.Degraded || res.Text == "" {
		t.Fatalf("empty chain must yield degraded non-empty result, got %+v", res)
	}
}

func TestCircuitBreakerSkipsDegradedProvider(t *testing.T) {
	failing := &fakeProvider{name: "failing", err: errors.New("boom")}
	g := NewGatewayWithProviders([]Provider{failing}, time.Second, 2, time.Minute)

	// 两次失败触发熔断
	g.Generate(context.Background(), []Message{{Role: "user", Content: "one"}})
	g.Generate(context.Background(), []Message{{Role: "user", Content: "two"}})
	callsBefore := failing.calls

	// 冷却期内不应再调用该 provider
	g.Generate(context.Background(), []Message{{Role: "user", Content: "three"}})
	if failing.calls != callsBefore {
		t.Fatalf("provider should be skipped while breaker is open: before=%d after=%d", callsBefore, failing.calls)
	}
}

func TestCircuitBreakerResetsAfterCooldown(t *testing.T) {
	failing := &fakeProvider{name: "flaky", err: errors.New("boom")}
	g := NewGatewayWithProviders([]Provider{failing}, time.Second, 1, 10*time.Millisecond)

	g.Generate(context.Background(), []Message{{Role: "user", Content: "one"}})
	time.Sleep(20 * time.Millisecond)

	// 冷却期已过，provider 恢复之后应重新被尝试
	failing.err = nil
	failing.text = "back online"
	res := g.Generate(context.Background(), []Message{{Role: "user", Content: "two"}})
	if res.Provider != "flaky" || res.Degraded {
		t.Fatalf("provider should be retried after cooldown, got %+v", res)
	}
}

func TestMockResponderTopicRelevance(t *testing.T) {
	m := NewMockResponder()

	cases := []struct {
		input   string
		keyword string
	}{
		{"I want to save for retirement", "timeline"},
		{"I prefer safe investments, low risk", "recommendations"},
		{"how should I budget?", "50/30/20"},
	}
	for _, c := range cases {
		got := m.Respond([]Message{{Role: "user", Content: c.input}})
		if got == "" {
			t.Fatalf("mock must never return empty text for %q", c.input)
		}
		if !strings.Contains(strings.ToLower(got), strings.ToLower(c.keyword)) {
			t.Fatalf("mock reply for %q should mention %q, got %q", c.input, c.keyword, got)
		}
	}

	if m.Respond(nil) == "" {
		t.Fatalf("mock must handle empty message list")
	}
}
