package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campuscart/internal/domain/chat"
	"campuscart/internal/ports"
)

// ThreadRepo persists chat threads across the chat_threads,
// chat_participants and chat_messages tables.
type ThreadRepo struct {
	pool *pgxpool.Pool
}

// NewThreadRepo constructs a new ThreadRepo.
func NewThreadRepo(pool *pgxpool.Pool) ports.ThreadRepository {
	return &ThreadRepo{pool: pool}
}

func (repo *ThreadRepo) Create(ctx context.Context, t *chat.Thread) error {
	q := runner(ctx, repo.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO chat_threads (id, created_at, kind, ride_id, last_activity)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.CreatedAt, t.Kind.String(), t.RideID, t.LastActivity)
	if err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}

	for _, userID := range t.Participants {
		if _, err := q.Exec(ctx, `
			INSERT INTO chat_participants (thread_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, t.ID, userID); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}
	return nil
}

func (repo *ThreadRepo) GetByID(ctx context.Context, id string) (*chat.Thread, error) {
	return repo.getOne(ctx, `SELECT id, created_at, kind, ride_id, last_activity
		FROM chat_threads WHERE id = $1`, id)
}

func (repo *ThreadRepo) GetByRide(ctx context.Context, rideID string) (*chat.Thread, error) {
	return repo.getOne(ctx, `SELECT id, created_at, kind, ride_id, last_activity
		FROM chat_threads WHERE ride_id = $1`, rideID)
}

func (repo *ThreadRepo) GetSingleton(ctx context.Context, kind chat.Kind) (*chat.Thread, error) {
	return repo.getOne(ctx, `SELECT id, created_at, kind, ride_id, last_activity
		FROM chat_threads WHERE kind = $1 LIMIT 1`, kind.String())
}

func (repo *ThreadRepo) FindPrivate(ctx context.Context, a, b string) (*chat.Thread, error) {
	return repo.getOne(ctx, `
		SELECT t.id, t.created_at, t.kind, t.ride_id, t.last_activity
		FROM chat_threads t
		WHERE t.kind = $1
		  AND EXISTS (SELECT 1 FROM chat_participants p WHERE p.thread_id = t.id AND p.user_id = $2)
		  AND EXISTS (SELECT 1 FROM chat_participants p WHERE p.thread_id = t.id AND p.user_id = $3)
		LIMIT 1
	`, chat.KindPrivate.String(), a, b)
}

func (repo *ThreadRepo) ListForUser(ctx context.Context, userID string) ([]*chat.Thread, error) {
	q := runner(ctx, repo.pool)

	rows, err := q.Query(ctx, `
		SELECT t.id, t.created_at, t.kind, t.ride_id, t.last_activity
		FROM chat_threads t
		JOIN chat_participants p ON p.thread_id = t.id
		WHERE p.user_id = $1
		ORDER BY t.last_activity DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var out []*chat.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range out {
		if err := repo.hydrate(ctx, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (repo *ThreadRepo) AddParticipant(ctx context.Context, threadID, userID string) error {
	q := runner(ctx, repo.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO chat_participants (thread_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, threadID, userID)
	if err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

func (repo *ThreadRepo) AppendMessage(ctx context.Context, threadID string, msg chat.Message) error {
	q := runner(ctx, repo.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO chat_messages (id, thread_id, sender_id, body, sent_at, is_read)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, threadID, msg.SenderID, msg.Body, msg.SentAt, msg.Read)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err = q.Exec(ctx, `
		UPDATE chat_threads SET last_activity = $2 WHERE id = $1 AND last_activity < $2
	`, threadID, msg.SentAt)
	if err != nil {
		return fmt.Errorf("bump thread activity: %w", err)
	}
	return nil
}

func (repo *ThreadRepo) MarkRead(ctx context.Context, threadID, readerID string) (int, error) {
	q := runner(ctx, repo.pool)

	tag, err := q.Exec(ctx, `
		UPDATE chat_messages
		SET is_read = true
		WHERE thread_id = $1 AND sender_id <> $2 AND NOT is_read
	`, threadID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (repo *ThreadRepo) getOne(ctx context.Context, query string, args ...any) (*chat.Thread, error) {
	q := runner(ctx, repo.pool)

	t, err := scanThread(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	if err := repo.hydrate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// hydrate loads participants and the message log for a thread row.
func (repo *ThreadRepo) hydrate(ctx context.Context, t *chat.Thread) error {
	q := runner(ctx, repo.pool)

	rows, err := q.Query(ctx, `SELECT user_id FROM chat_participants WHERE thread_id = $1`, t.ID)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return fmt.Errorf("scan participant: %w", err)
		}
		t.Participants = append(t.Participants, userID)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	msgRows, err := q.Query(ctx, `
		SELECT id, sender_id, body, sent_at, is_read
		FROM chat_messages
		WHERE thread_id = $1
		ORDER BY sent_at, id
	`, t.ID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var msg chat.Message
		if err := msgRows.Scan(&msg.ID, &msg.SenderID, &msg.Body, &msg.SentAt, &msg.Read); err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		t.Messages = append(t.Messages, msg)
	}
	return msgRows.Err()
}

func scanThread(row pgx.Row) (*chat.Thread, error) {
	var (
		out  chat.Thread
		kind string
	)
	if err := row.Scan(&out.ID, &out.CreatedAt, &kind, &out.RideID, &out.LastActivity); err != nil {
		return nil, err
	}
	out.Kind = chat.Kind(kind)
	return &out, nil
}
