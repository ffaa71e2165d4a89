package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/lingopals/internal/database"
	"github.com/HammerMeetNail/lingopals/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const userColumns = `id, username, full_name, email, bio, city, profile_pic,
	native_language, desired_language, is_email_verified, created_at, updated_at`

const requestColumns = `id, sender_id, recipient_id, status, created_at, updated_at`

// PostgresStore persists relationships in three tables: users, friendships
// (one row per direction) and friend_requests. A partial unique index on
// the unordered pair guarantees at most one pending request per pair.
type PostgresStore struct {
	db database.DB
}

func NewPostgresStore(db database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func scanUser(row database.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.FullName, &u.Email, &u.Bio, &u.City, &u.ProfilePic,
		&u.NativeLanguage, &u.DesiredLanguage, &u.IsEmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func scanRequest(row database.Row) (*models.FriendRequest, error) {
	r := &models.FriendRequest{}
	if err := row.Scan(&r.ID, &r.SenderID, &r.RecipientID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return r, nil
}

func scanSummary(row database.Row) (models.UserSummary, error) {
	var s models.UserSummary
	err := row.Scan(&s.ID, &s.FullName, &s.ProfilePic, &s.NativeLanguage, &s.DesiredLanguage)
	return s, err
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrPendingExists
		case pgForeignKeyViolation:
			return ErrNotFound
		}
	}
	return err
}

func rollback(ctx context.Context, tx database.Tx) {
	_ = tx.Rollback(ctx)
}

func (s *PostgresStore) SaveUser(ctx context.Context, user *models.User) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, username, full_name, email, bio, city, profile_pic,
			native_language, desired_language, is_email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			bio = EXCLUDED.bio,
			city = EXCLUDED.city,
			profile_pic = EXCLUDED.profile_pic,
			native_language = EXCLUDED.native_language,
			desired_language = EXCLUDED.desired_language,
			is_email_verified = EXCLUDED.is_email_verified,
			updated_at = NOW()`,
		user.ID, user.Username, user.FullName, user.Email, user.Bio, user.City, user.ProfilePic,
		user.NativeLanguage, user.DesiredLanguage, user.IsEmailVerified,
	)
	if err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	rows, err := s.db.Query(ctx, `SELECT friend_id FROM friendships WHERE user_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("listing friend ids: %w", err)
	}
	defer rows.Close()

	u.Friends = []uuid.UUID{}
	for rows.Next() {
		var fid uuid.UUID
		if err := rows.Scan(&fid); err != nil {
			return nil, fmt.Errorf("scanning friend id: %w", err)
		}
		u.Friends = append(u.Friends, fid)
	}
	return u, rows.Err()
}

func (s *PostgresStore) GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	r, err := scanRequest(s.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM friend_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting friend request: %w", err)
	}
	return r, nil
}

// CreateRequest locks both user rows in id order, the same locks
// AcceptRequest takes, so the friendship and pending checks below see the
// outcome of any concurrent create or accept on the pair. The partial unique
// index on pending pairs backs this up.
func (s *PostgresStore) CreateRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(ctx, tx)

	if err := lockPair(ctx, tx, senderID, recipientID); err != nil {
		return nil, err
	}

	var friends bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM friendships WHERE user_id = $1 AND friend_id = $2)`,
		senderID, recipientID,
	).Scan(&friends)
	if err != nil {
		return nil, fmt.Errorf("checking friendship: %w", err)
	}
	if friends {
		return nil, ErrAlreadyFriends
	}

	var pending bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM friend_requests
			WHERE status = 'pending'
			AND ((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))
		)`, senderID, recipientID,
	).Scan(&pending)
	if err != nil {
		return nil, fmt.Errorf("checking pending request: %w", err)
	}
	if pending {
		return nil, ErrPendingExists
	}

	req, err := scanRequest(tx.QueryRow(ctx, `
		INSERT INTO friend_requests (id, sender_id, recipient_id, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING `+requestColumns,
		uuid.New(), senderID, recipientID,
	))
	if err != nil {
		if mapped := mapPgError(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("inserting friend request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing friend request: %w", err)
	}
	return req, nil
}

func lockPair(ctx context.Context, tx database.Tx, a, b uuid.UUID) error {
	rows, err := tx.Query(ctx, `SELECT id FROM users WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`, a, b)
	if err != nil {
		return fmt.Errorf("locking users: %w", err)
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning locked user: %w", err)
		}
		found++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("locking users: %w", err)
	}
	if found < 2 {
		return ErrNotFound
	}
	return nil
}

// AcceptRequest writes both friendship rows and deletes the request in a
// single transaction. It holds the pair's user row locks, so it serializes
// with CreateRequest. A request removed by a concurrent accept or reject
// leaves nothing to delete and the transaction is rolled back.
func (s *PostgresStore) AcceptRequest(ctx context.Context, requestID uuid.UUID) (*models.FriendRequest, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(ctx, tx)

	req, err := scanRequest(tx.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM friend_requests WHERE id = $1 AND status = 'pending'`,
		requestID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading friend request: %w", err)
	}

	if err := lockPair(ctx, tx, req.SenderID, req.RecipientID); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO friendships (user_id, friend_id)
		VALUES ($1, $2), ($2, $1)
		ON CONFLICT DO NOTHING`,
		req.SenderID, req.RecipientID,
	)
	if err != nil {
		return nil, fmt.Errorf("materializing friendship: %w", mapPgError(err))
	}

	tag, err := tx.Exec(ctx, `DELETE FROM friend_requests WHERE id = $1`, requestID)
	if err != nil {
		return nil, fmt.Errorf("deleting friend request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing accept: %w", err)
	}

	req.Status = models.RequestStatusAccepted
	return req, nil
}

func (s *PostgresStore) DeleteRequest(ctx context.Context, requestID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM friend_requests WHERE id = $1 AND status = 'pending'`, requestID)
	if err != nil {
		return fmt.Errorf("deleting friend request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.full_name, u.profile_pic, u.native_language, u.desired_language
		FROM friendships f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1
		ORDER BY u.full_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	defer rows.Close()

	friends := []models.UserSummary{}
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		friends = append(friends, summary)
	}
	return friends, rows.Err()
}

func (s *PostgresStore) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	return s.listViews(ctx, `
		SELECT r.id, r.sender_id, r.recipient_id, r.status, r.created_at, r.updated_at,
			u.id, u.full_name, u.profile_pic, u.native_language, u.desired_language
		FROM friend_requests r
		JOIN users u ON u.id = r.sender_id
		WHERE r.recipient_id = $1 AND r.status = 'pending'
		ORDER BY r.created_at DESC`, userID, true)
}

func (s *PostgresStore) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	return s.listViews(ctx, `
		SELECT r.id, r.sender_id, r.recipient_id, r.status, r.created_at, r.updated_at,
			u.id, u.full_name, u.profile_pic, u.native_language, u.desired_language
		FROM friend_requests r
		JOIN users u ON u.id = r.recipient_id
		WHERE r.sender_id = $1 AND r.status = 'pending'
		ORDER BY r.created_at DESC`, userID, false)
}

func (s *PostgresStore) listViews(ctx context.Context, query string, userID uuid.UUID, withSender bool) ([]models.FriendRequestView, error) {
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing friend requests: %w", err)
	}
	defer rows.Close()

	views := []models.FriendRequestView{}
	for rows.Next() {
		var v models.FriendRequestView
		var u models.UserSummary
		if err := rows.Scan(
			&v.ID, &v.SenderID, &v.RecipientID, &v.Status, &v.CreatedAt, &v.UpdatedAt,
			&u.ID, &u.FullName, &u.ProfilePic, &u.NativeLanguage, &u.DesiredLanguage,
		); err != nil {
			return nil, fmt.Errorf("scanning friend request: %w", err)
		}
		if withSender {
			v.Sender = &u
		} else {
			v.Recipient = &u
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (s *PostgresStore) ListPendingFor(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM friend_requests
		WHERE status = 'pending' AND (sender_id = $1 OR recipient_id = $1)`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing pending requests: %w", err)
	}
	defer rows.Close()

	out := []models.FriendRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pending request: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListCandidates(ctx context.Context, user *models.User) ([]models.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE u.id <> $1
		AND u.is_email_verified
		AND u.desired_language = $2
		AND NOT EXISTS (SELECT 1 FROM friendships f WHERE f.user_id = $1 AND f.friend_id = u.id)
		ORDER BY u.username
		LIMIT 100`, user.ID, user.DesiredLanguage)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}
