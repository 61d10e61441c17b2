package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"livepoll-service/internal/app"
	"livepoll-service/internal/domain"
)

// SessionArchive stores completed sessions as JSONB so history outlives the
// primary store's TTL.
type SessionArchive struct {
	pool *pgxpool.Pool
}

var _ app.Archive = (*SessionArchive)(nil)

func NewSessionArchive(pool *pgxpool.Pool) *SessionArchive {
	return &SessionArchive{pool: pool}
}

func (a *SessionArchive) Store(ctx context.Context, session domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO sessions (id, data) VALUES ($1, $2::jsonb)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, archived_at = now()`,
		session.ID, raw)
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	return nil
}

func (a *SessionArchive) Load(ctx context.Context, sessionID string) (domain.Session, error) {
	var raw []byte
	err := a.pool.QueryRow(ctx, `SELECT data FROM sessions WHERE id=$1`, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load archived session: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal archived session: %w", err)
	}
	return sess, nil
}
