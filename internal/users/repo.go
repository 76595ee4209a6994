package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"aiostreams/pkg/database"
	"aiostreams/pkg/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
)

type User struct {
	UUID         string
	PasswordHash string
	Config       models.UserData
	CreatedAt    time.Time
	AccessedAt   time.Time
}

// Repo stores user configurations. It resolves the connection from the
// handle on every call, so it can be constructed before storage is up.
type Repo struct {
	Store *database.Handle
	now   func() time.Time
}

func NewRepo(store *database.Handle) *Repo {
	return &Repo{Store: store, now: time.Now}
}

// timestamps are stored in UTC at second precision so sqlite's text
// representation sorts chronologically
func (r *Repo) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Second)
}

func (r *Repo) CreateUser(ctx context.Context, u User) error {
	db, err := r.Store.Get()
	if err != nil {
		return err
	}

	cfg, err := json.Marshal(u.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	now := r.timestamp()
	_, err = db.ExecContext(ctx, db.Rebind(`
		INSERT INTO users (uuid, password_hash, config, created_at, accessed_at)
		VALUES (?, ?, ?, ?, ?)
	`), u.UUID, u.PasswordHash, string(cfg), now, now)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repo) GetByUUID(ctx context.Context, uuid string) (*User, error) {
	db, err := r.Store.Get()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, db.Rebind(`
		SELECT uuid, password_hash, config, created_at, accessed_at
		FROM users
		WHERE uuid = ?
	`), uuid)

	var (
		u   User
		cfg string
	)
	if err := row.Scan(&u.UUID, &u.PasswordHash, &cfg, &u.CreatedAt, &u.AccessedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get by uuid: %w", err)
	}
	if err := json.Unmarshal([]byte(cfg), &u.Config); err != nil {
		return nil, fmt.Errorf("decode config for %s: %w", uuid, err)
	}
	return &u, nil
}

// Authenticate loads a user and checks the password. A successful check
// refreshes accessed_at so active users survive pruning.
func (r *Repo) Authenticate(ctx context.Context, uuid, password string) (*User, error) {
	u, err := r.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}
	if err := r.Touch(ctx, uuid); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repo) UpdateConfig(ctx context.Context, uuid string, cfg models.UserData) error {
	db, err := r.Store.Get()
	if err != nil {
		return err
	}

	b, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	res, err := db.ExecContext(ctx, db.Rebind(`
		UPDATE users
		SET config = ?, accessed_at = ?
		WHERE uuid = ?
	`), string(b), r.timestamp(), uuid)
	if err != nil {
		return fmt.Errorf("update config: %w", err)
	}
	return expectOne(res, "update config")
}

func (r *Repo) Touch(ctx context.Context, uuid string) error {
	db, err := r.Store.Get()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, db.Rebind(`
		UPDATE users SET accessed_at = ? WHERE uuid = ?
	`), r.timestamp(), uuid)
	if err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	return expectOne(res, "touch user")
}

func (r *Repo) DeleteUser(ctx context.Context, uuid string) error {
	db, err := r.Store.Get()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM users WHERE uuid = ?`), uuid)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOne(res, "delete user")
}

// PruneUsers removes users not accessed within maxDays and returns how many
// were deleted.
func (r *Repo) PruneUsers(ctx context.Context, maxDays int) (int64, error) {
	if maxDays <= 0 {
		return 0, fmt.Errorf("prune users: max days must be positive, got %d", maxDays)
	}
	db, err := r.Store.Get()
	if err != nil {
		return 0, err
	}

	cutoff := r.timestamp().Add(-time.Duration(maxDays) * 24 * time.Hour)
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM users WHERE accessed_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune users: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune users rows: %w", err)
	}
	return n, nil
}

func expectOne(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}
