package app

import (
	"context"
	"errors"
	"math"

	"golang.org/x/sync/singleflight"

	"livepoll-service/internal/domain"
)

// HistoryService is the read-only projection over closed questions. It reads
// from the primary store and falls back to the archive when the store has
// already evicted the session. Concurrent identical loads are collapsed.
type HistoryService struct {
	store   SessionStore
	archive Archive // nil disables the fallback
	sf      singleflight.Group
}

func NewHistoryService(store SessionStore, archive Archive) *HistoryService {
	return &HistoryService{store: store, archive: archive}
}

// History returns, for every closed question of the session, its prompt,
// options annotated with answer percentages, and its start time.
func (h *HistoryService) History(ctx context.Context, sessionID string) ([]domain.QuestionHistory, error) {
	result, err, _ := h.sf.Do(sessionID, func() (interface{}, error) {
		sess, err := h.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return projectHistory(sess), nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionHistory), nil
}

// ForConnection serves the websocket request-history path: moderators only,
// anyone else is silently refused.
func (h *HistoryService) ForConnection(ctx context.Context, registry *Registry, connID string) ([]domain.QuestionHistory, error) {
	entry, ok := registry.Get(connID)
	if !ok || entry.Role != domain.RoleModerator {
		return nil, domain.ErrUnauthorized
	}
	return h.History(ctx, entry.SessionID)
}

func (h *HistoryService) load(ctx context.Context, sessionID string) (domain.Session, error) {
	sess, err := h.store.Find(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) && h.archive != nil {
		return h.archive.Load(ctx, sessionID)
	}
	return sess, err
}

func projectHistory(sess domain.Session) []domain.QuestionHistory {
	history := make([]domain.QuestionHistory, 0, len(sess.Questions))
	for _, q := range sess.Questions {
		if q.Open() {
			continue
		}
		answered := 0
		if q.Results != nil {
			answered = q.Results.Answered
		}
		options := make([]domain.HistoryOption, 0, len(q.Options))
		for _, opt := range q.Options {
			count := 0
			if q.Results != nil {
				count = q.Results.Options[opt.ID].Count
			}
			pct := 0
			if answered > 0 {
				pct = int(math.Round(float64(count) / float64(answered) * 100))
			}
			options = append(options, domain.HistoryOption{
				Text:       opt.Text,
				Percentage: pct,
				Correct:    opt.Correct,
			})
		}
		history = append(history, domain.QuestionHistory{
			ID:       q.ID,
			Prompt:   q.Prompt,
			Options:  options,
			AskedAt:  q.StartTime,
			Answered: answered,
		})
	}
	return history
}
