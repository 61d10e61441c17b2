package app_test

import (
	"context"
	"errors"
	"testing"

	"livepoll-service/internal/app"
	"livepoll-service/internal/domain"
	"livepoll-service/internal/infra/memory"
)

func TestHistoryProjectsClosedQuestions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_ = f.service.CreateOrAttachModerator(ctx, "sess-1", "Ms. Reed", "mod-1")
	_ = f.service.JoinAsParticipant(ctx, "sess-1", "p1", "Alice")
	_ = f.service.JoinAsParticipant(ctx, "sess-1", "p2", "Bob")
	_ = f.service.JoinAsParticipant(ctx, "sess-1", "p3", "Cara")
	f.openQuestion(t, "mod-1", []domain.Option{
		{ID: 1, Text: "A", Correct: true},
		{ID: 2, Text: "B"},
	}, 60)
	_ = f.service.SubmitAnswer(ctx, "p1", 1)
	_ = f.service.SubmitAnswer(ctx, "p2", 1)
	_ = f.service.SubmitAnswer(ctx, "p3", 2) // third answer triggers early close

	history := app.NewHistoryService(f.store, nil)
	entries, err := history.History(ctx, "sess-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one closed question, got %d", len(entries))
	}
	q := entries[0]
	if q.Answered != 3 {
		t.Fatalf("expected 3 answers, got %d", q.Answered)
	}
	if q.Options[0].Percentage != 67 || !q.Options[0].Correct {
		t.Fatalf("unexpected option A projection %+v", q.Options[0])
	}
	if q.Options[1].Percentage != 33 {
		t.Fatalf("unexpected option B projection %+v", q.Options[1])
	}
}

func TestHistorySkipsOpenQuestionsAndZeroAnswers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_ = f.service.CreateOrAttachModerator(ctx, "sess-1", "Ms. Reed", "mod-1")
	questionID := f.openQuestion(t, "mod-1", twoOptions(), 60)

	history := app.NewHistoryService(f.store, nil)
	entries, err := history.History(ctx, "sess-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("open question must not appear in history")
	}

	// Zero answers close cleanly with all percentages at 0.
	_ = f.service.CloseQuestion(ctx, "sess-1", questionID)
	entries, _ = history.History(ctx, "sess-1")
	if len(entries) != 1 {
		t.Fatalf("expected closed question in history")
	}
	for _, opt := range entries[0].Options {
		if opt.Percentage != 0 {
			t.Fatalf("expected 0%% with no answers, got %+v", opt)
		}
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	history := app.NewHistoryService(memory.NewSessionStore(), nil)
	_, err := history.History(context.Background(), "nope")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHistoryFallsBackToArchive(t *testing.T) {
	ctx := context.Background()
	archived := domain.Session{ID: "sess-old", Status: domain.StatusCompleted}
	history := app.NewHistoryService(memory.NewSessionStore(), &stubArchive{sessions: map[string]domain.Session{
		"sess-old": archived,
	}})

	if _, err := history.History(ctx, "sess-old"); err != nil {
		t.Fatalf("expected archive fallback, got %v", err)
	}
	if _, err := history.History(ctx, "sess-missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found from archive, got %v", err)
	}
}

func TestHistoryForConnectionModeratorOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_ = f.service.CreateOrAttachModerator(ctx, "sess-1", "Ms. Reed", "mod-1")
	_ = f.service.JoinAsParticipant(ctx, "sess-1", "p1", "Alice")

	history := app.NewHistoryService(f.store, nil)
	if _, err := history.ForConnection(ctx, f.service.Registry(), "p1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for participant, got %v", err)
	}
	if _, err := history.ForConnection(ctx, f.service.Registry(), "mod-1"); err != nil {
		t.Fatalf("moderator history: %v", err)
	}
}

type stubArchive struct {
	sessions map[string]domain.Session
}

func (a *stubArchive) Store(_ context.Context, session domain.Session) error {
	a.sessions[session.ID] = session
	return nil
}

func (a *stubArchive) Load(_ context.Context, sessionID string) (domain.Session, error) {
	sess, ok := a.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sess, nil
}
