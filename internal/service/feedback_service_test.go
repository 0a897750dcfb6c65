package service

import (
	"context"
	"errors"
	"testing"

	"fin-advisor-go/internal/model"
	"fin-advisor-go/pkg/tasks"
)

func TestFeedbackRecordAppends(t *testing.T) {
	feedback := &fakeFeedbackRepo{}
	svc := NewFeedbackService(feedback, &fakeProductRepo{products: testCatalog()})
	ctx := context.Background()

	if err := svc.Record(ctx, 1, 1, false); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := svc.Record(ctx, 1, 1, true); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	latest, err := feedback.LatestPerProduct(1)
	if err != nil {
		t.Fatalf("LatestPerProduct failed: %v", err)
	}
	rec, ok := latest[1]
	if !ok {
		t.Fatal("expected a feedback record for product 1")
	}
	if !rec.IsRelevant {
		t.Error("expected the latest record to win")
	}
	if len(feedback.records) != 2 {
		t.Errorf("expected both records to be kept, got %d", len(feedback.records))
	}
}

func TestFeedbackSurvivesAuditPublishFailure(t *testing.T) {
	feedback := &fakeFeedbackRepo{}
	svc := NewFeedbackService(feedback, &fakeProductRepo{products: testCatalog()})
	svc.(*feedbackService).publish = func(event tasks.AuditEvent) error {
		return errors.New("broker unavailable")
	}

	if err := svc.Record(context.Background(), 1, 1, true); err != nil {
		t.Fatalf("Record failed despite the audit path being best-effort: %v", err)
	}
	if len(feedback.records) != 1 {
		t.Errorf("expected the feedback to be saved regardless, got %d records", len(feedback.records))
	}
}

func TestFeedbackUnknownProduct(t *testing.T) {
	svc := NewFeedbackService(&fakeFeedbackRepo{}, &fakeProductRepo{products: testCatalog()})

	err := svc.Record(context.Background(), 1, 99, true)
	if !errors.Is(err, ErrUnknownProduct) {
		t.Errorf("expected ErrUnknownProduct, got %v", err)
	}
}

func TestAdvisoryAnswerUsesPersona(t *testing.T) {
	personas := newFakePersonaRepo()
	persona := cautiousPersona(1)
	personas.personas[1] = persona

	gw := &fakeGateway{reply: "Consider a savings ladder."}
	svc := NewAdvisoryService(personas, &fakeAdvisoryRepo{history: map[uint][]model.ChatMessage{}}, gw)

	answer, degraded, err := svc.Answer(context.Background(), 1, "What should I do with spare cash?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if degraded {
		t.Error("did not expect a degraded answer")
	}
	if answer == "" {
		t.Error("expected an answer")
	}
	if gw.calls != 1 {
		t.Errorf("expected one generation call, got %d", gw.calls)
	}
}

func TestAdvisoryAnswerWithoutPersona(t *testing.T) {
	gw := &fakeGateway{reply: "Generally speaking, build an emergency fund first."}
	svc := NewAdvisoryService(newFakePersonaRepo(), &fakeAdvisoryRepo{history: map[uint][]model.ChatMessage{}}, gw)

	answer, degraded, err := svc.Answer(context.Background(), 9, "Where do I start?")
	if err != nil {
		t.Fatalf("Answer failed for a user without a profile: %v", err)
	}
	if degraded {
		t.Error("did not expect a degraded answer")
	}
	if answer == "" {
		t.Error("expected a general answer without a profile")
	}
}

type fakeAdvisoryRepo struct {
	history map[uint][]model.ChatMessage
}

func (f *fakeAdvisoryRepo) GetHistory(_ context.Context, userID uint) ([]model.ChatMessage, error) {
	return f.history[userID], nil
}

func (f *fakeAdvisoryRepo) UpdateHistory(_ context.Context, userID uint, messages []model.ChatMessage) error {
	f.history[userID] = messages
	return nil
}

func TestAdvisoryHistoryAccumulates(t *testing.T) {
	personas := newFakePersonaRepo()
	persona := cautiousPersona(1)
	personas.personas[1] = persona

	repo := &fakeAdvisoryRepo{history: map[uint][]model.ChatMessage{}}
	svc := NewAdvisoryService(personas, repo, &fakeGateway{reply: "Sure."})
	ctx := context.Background()

	if _, _, err := svc.Answer(ctx, 1, "first question"); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if _, _, err := svc.Answer(ctx, 1, "second question"); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(repo.history[1]) != 4 {
		t.Errorf("expected 4 stored messages, got %d", len(repo.history[1]))
	}
}
