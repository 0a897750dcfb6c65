package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"fin-advisor-go/internal/config"
	"fin-advisor-go/internal/model"
	"fin-advisor-go/internal/repository"
	"fin-advisor-go/pkg/llm"
)

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	failSave bool
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]model.Session)}
}

func (f *fakeSessionRepo) Save(_ context.Context, session *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("storage unavailable")
	}
	f.sessions[session.ID] = *session
	return nil
}

func (f *fakeSessionRepo) Find(_ context.Context, sessionID string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	copied := session
	return &copied, nil
}

func (f *fakeSessionRepo) Delete(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
	return nil
}

type fakePersonaRepo struct {
	mu       sync.Mutex
	personas map[uint]model.Persona
	upserts  int
}

func newFakePersonaRepo() *fakePersonaRepo {
	return &fakePersonaRepo{personas: make(map[uint]model.Persona)}
}

func (f *fakePersonaRepo) Upsert(persona *model.Persona) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.personas[persona.UserID] = *persona
	return nil
}

func (f *fakePersonaRepo) FindByUserID(userID uint) (*model.Persona, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	persona, ok := f.personas[userID]
	if !ok {
		return nil, repository.ErrPersonaNotFound
	}
	copied := persona
	return &copied, nil
}

type fakeGateway struct {
	reply    string
	degraded bool
	calls    int
}

func (f *fakeGateway) Generate(_ context.Context, _ []llm.Message) llm.Result {
	f.calls++
	provider := "fake"
	if f.degraded {
		provider = "mock"
	}
	return llm.Result{Text: f.reply, Provider: provider, Degraded: f.degraded}
}

func newOnboardingForTest(gw Generator) (OnboardingService, *fakeSessionRepo, *fakePersonaRepo) {
	sessions := newFakeSessionRepo()
	personas := newFakePersonaRepo()
	svc := NewOnboardingService(sessions, personas, gw, config.OnboardingConfig{RequiredTurns: 4})
	return svc, sessions, personas
}

func TestStartCreatesSessionWithGreeting(t *testing.T) {
	svc, _, _ := newOnboardingForTest(&fakeGateway{reply: "Welcome! What are your financial goals?"})

	session, greeting, err := svc.Start(context.Background(), 7)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if session.ID == "" {
		t.Error("expected a non-empty session id")
	}
	if session.UserTurnCount != 0 {
		t.Errorf("expected zero user turns, got %d", session.UserTurnCount)
	}
	if greeting == "" {
		t.Error("expected a greeting")
	}
}

func TestAdvanceCountsUserTurns(t *testing.T) {
	svc, _, _ := newOnboardingForTest(&fakeGateway{reply: "Tell me more."})
	ctx := context.Background()

	session, _, err := svc.Start(ctx, 1)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		result, err := svc.Advance(ctx, session.ID, 1, fmt.Sprintf("answer %d", i))
		if err != nil {
			t.Fatalf("Advance %d failed: %v", i, err)
		}
		if result.Session.UserTurnCount != i {
			t.Errorf("after advance %d: got turn count %d", i, result.Session.UserTurnCount)
		}
		if result.Session.Complete {
			t.Errorf("session complete after only %d turns", i)
		}
	}
}

func TestAdvanceCompletesAtRequiredTurns(t *testing.T) {
	svc, _, _ := newOnboardingForTest(&fakeGateway{reply: "Noted."})
	ctx := context.Background()

	session, _, err := svc.Start(ctx, 1)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var last *AdvanceResult
	for i := 0; i < 4; i++ {
		last, err = svc.Advance(ctx, session.ID, 1, "an answer")
		if err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
	}
	if !last.Session.Complete {
		t.Error("expected session to be complete after 4 user turns")
	}

	_, err = svc.Advance(ctx, session.ID, 1, "one more")
	if !errors.Is(err, ErrSessionComplete) {
		t.Errorf("expected ErrSessionComplete, got %v", err)
	}
}

func TestAdvanceUnknownSession(t *testing.T) {
	svc, _, _ := newOnboardingForTest(&fakeGateway{reply: "hi"})

	_, err := svc.Advance(context.Background(), "no-such-session", 1, "hello")
	if !errors.Is(err, repository.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAdvanceWrongUserRejected(t *testing.T) {
	svc, _, _ := newOnboardingForTest(&fakeGateway{reply: "hi"})
	ctx := context.Background()

	session, _, err := svc.Start(ctx, 1)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	_, err = svc.Advance(ctx, session.ID, 2, "hello")
	if !errors.Is(err, repository.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for another user's session, got %v", err)
	}
}

func TestAdvanceReportsUnsavedState(t *testing.T) {
	svc, sessions, _ := newOnboardingForTest(&fakeGateway{reply: "ok"})
	ctx := context.Background()

	session, _, err := svc.Start(ctx, 1)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	sessions.failSave = true
	result, err := svc.Advance(ctx, session.ID, 1, "hello")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if result.Saved {
		t.Error("expected Saved=false when the session store is unavailable")
	}
	if result.Reply == "" {
		t.Error("expected a reply even when the save failed")
	}
}

func TestFinalizeBeforeComplete(t *testing.T) {
	svc, _, _ := newOnboardingForTest(&fakeGateway{reply: "ok"})
	ctx := context.Background()

	session, _, err := svc.Start(ctx, 1)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := svc.Advance(ctx, session.ID, 1, "hello"); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	_, err = svc.Finalize(ctx, session.ID, 1)
	if !errors.Is(err, ErrSessionNotComplete) {
		t.Errorf("expected ErrSessionNotComplete, got %v", err)
	}
}

func completeSession(t *testing.T, svc OnboardingService, userID uint, answers []string) string {
	t.Helper()
	ctx := context.Background()
	session, _, err := svc.Start(ctx, userID)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, answer := range answers {
		if _, err := svc.Advance(ctx, session.ID, userID, answer); err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
	}
	return session.ID
}

func TestFinalizeParsesModelExtraction(t *testing.T) {
	gw := &fakeGateway{reply: `Here you go: {"goals": ["retirement"], "risk_tolerance": "high", "time_horizon": "long", "interests": ["stocks", "etf"]}`}
	svc, _, personas := newOnboardingForTest(gw)

	sessionID := completeSession(t, svc, 1, []string{"a", "b", "c", "d"})

	persona, err := svc.Finalize(context.Background(), sessionID, 1)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if persona.RiskTolerance != model.RiskHigh {
		t.Errorf("got risk %q, want high", persona.RiskTolerance)
	}
	if persona.TimeHorizon != model.HorizonLong {
		t.Errorf("got horizon %q, want long", persona.TimeHorizon)
	}
	goals := persona.GoalList()
	if len(goals) != 1 || goals[0] != "retirement" {
		t.Errorf("got goals %v, want [retirement]", goals)
	}
	if personas.upserts != 1 {
		t.Errorf("expected 1 upsert, got %d", personas.upserts)
	}
}

func TestFinalizeFallsBackToKeywordScan(t *testing.T) {
	gw := &fakeGateway{reply: "sorry, unavailable", degraded: true}
	svc, _, _ := newOnboardingForTest(gw)

	sessionID := completeSession(t, svc, 1, []string{
		"I want to save for retirement",
		"I'm thinking long term, over a decade",
		"I'm quite conservative about risk",
		"Mostly interested in bonds and ETF funds",
	})

	persona, err := svc.Finalize(context.Background(), sessionID, 1)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if persona.RiskTolerance != model.RiskLow {
		t.Errorf("got risk %q, want low", persona.RiskTolerance)
	}
	if persona.TimeHorizon != model.HorizonLong {
		t.Errorf("got horizon %q, want long", persona.TimeHorizon)
	}
	goals := persona.GoalList()
	found := false
	for _, g := range goals {
		if g == "retirement" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected retirement goal, got %v", goals)
	}
}

func lockCount(svc OnboardingService) int {
	count := 0
	svc.(*onboardingService).sessionLocks.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func TestSessionLockReleasedAfterFinalize(t *testing.T) {
	gw := &fakeGateway{reply: `{"goals": ["travel"], "risk_tolerance": "moderate", "time_horizon": "medium", "interests": []}`}
	svc, _, _ := newOnboardingForTest(gw)

	sessionID := completeSession(t, svc, 1, []string{"a", "b", "c", "d"})

	if _, err := svc.Finalize(context.Background(), sessionID, 1); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if n := lockCount(svc); n != 0 {
		t.Errorf("expected the session lock to be released after finalize, %d left", n)
	}
}

func TestSessionLockReleasedForUnknownSession(t *testing.T) {
	svc, _, _ := newOnboardingForTest(&fakeGateway{reply: "hi"})

	_, err := svc.Advance(context.Background(), "expired-session", 1, "hello")
	if !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if n := lockCount(svc); n != 0 {
		t.Errorf("expected no lingering lock for an unknown session, %d left", n)
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	gw := &fakeGateway{reply: `{"goals": ["travel"], "risk_tolerance": "moderate", "time_horizon": "medium", "interests": []}`}
	svc, _, personas := newOnboardingForTest(gw)

	sessionID := completeSession(t, svc, 1, []string{"a", "b", "c", "d"})
	ctx := context.Background()

	first, err := svc.Finalize(ctx, sessionID, 1)
	if err != nil {
		t.Fatalf("first Finalize failed: %v", err)
	}
	second, err := svc.Finalize(ctx, sessionID, 1)
	if err != nil {
		t.Fatalf("second Finalize failed: %v", err)
	}
	if personas.upserts != 1 {
		t.Errorf("expected a single upsert, got %d", personas.upserts)
	}
	if first.RiskTolerance != second.RiskTolerance || first.Goals != second.Goals {
		t.Error("repeated Finalize returned a different persona")
	}
}
