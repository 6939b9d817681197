package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/folio/authentication"
)

const tableSessions = "sessions"

type SessionRepository struct {
	db *sql.DB
}

var _ authentication.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const (
	sessionFieldID           = "id"
	sessionFieldUsername     = "username"
	sessionFieldAccessToken  = "access_token"
	sessionFieldRefreshToken = "refresh_token"
	sessionFieldCreatedAt    = "created_at"
	sessionFieldExpiresAt    = "expires_at"
)

func sessionColumns() []string {
	return []string{
		sessionFieldID,
		sessionFieldUsername,
		sessionFieldAccessToken,
		sessionFieldRefreshToken,
		sessionFieldCreatedAt,
		sessionFieldExpiresAt,
	}
}

// Times are stored as unix seconds so that expiry can be compared in SQL.
func scanSession(row sq.RowScanner) (*authentication.Session, error) {
	var (
		session   authentication.Session
		createdAt int64
		expiresAt int64
	)

	err := row.Scan(
		&session.ID,
		&session.Username,
		&session.AccessToken,
		&session.RefreshToken,
		&createdAt,
		&expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	session.CreatedAt = time.Unix(createdAt, 0)
	session.ExpiresAt = time.Unix(expiresAt, 0)

	return &session, nil
}

func (repo *SessionRepository) Insert(ctx context.Context, session *authentication.Session) error {
	q := sq.Insert(tableSessions).
		Columns(sessionColumns()...).
		Values(
			session.ID,
			session.Username,
			session.AccessToken,
			session.RefreshToken,
			session.CreatedAt.Unix(),
			session.ExpiresAt.Unix(),
		)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	return nil
}

func (repo *SessionRepository) Find(ctx context.Context, id string) (*authentication.Session, error) {
	q := sq.Select(sessionColumns()...).
		From(tableSessions).
		Where(sq.Eq{sessionFieldID: id})

	q = q.RunWith(repo.db)

	row := q.QueryRowContext(ctx)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authentication.SessionNotFoundError{ID: id}
		}

		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	return session, nil
}

func (repo *SessionRepository) Delete(ctx context.Context, id string) error {
	q := sq.Delete(tableSessions).
		Where(sq.Eq{sessionFieldID: id})

	q = q.RunWith(repo.db)

	result, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return authentication.SessionNotFoundError{ID: id}
	}

	return nil
}

func (repo *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	q := sq.Delete(tableSessions).
		Where(sq.Lt{sessionFieldExpiresAt: now.Unix()})

	q = q.RunWith(repo.db)

	result, err := q.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to exec delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
