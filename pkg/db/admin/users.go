package admin

import (
	"context"

	"github.com/gridline-markets/gridx/pkg/db/postgres"
)

// User is one dashboard account.
type User struct {
	Username string `json:"username"`
	Hash     []byte `json:"-"`
	Role     string `json:"role"`
}

func (db *DB) initUsers(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			hash BYTEA NOT NULL,
			role TEXT NOT NULL DEFAULT 'admin',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`
	return db.Exec(ctx, query)
}

// EnsureUser creates the account if it doesn't exist. Existing accounts keep
// their stored hash so operator password changes survive restarts.
func (db *DB) EnsureUser(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (username, hash, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO NOTHING
	`
	return db.Exec(ctx, query, u.Username, u.Hash, u.Role)
}

// GetUser fetches one account by username.
func (db *DB) GetUser(ctx context.Context, username string) (*User, error) {
	query := `SELECT username, hash, role FROM users WHERE username = $1`
	var u User
	err := db.QueryRow(ctx, query, username).Scan(&u.Username, &u.Hash, &u.Role)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
