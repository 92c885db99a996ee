// Package registry persists caller accounts (the token quota ledger) and
// ingested repository records in SQLite.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Registry wraps the SQLite handle for account and repo persistence.
type Registry struct {
	db *sql.DB
}

// User is a caller account. Tokens is the remaining quota of normalized
// tokens.
type User struct {
	ID        string
	Name      string
	Email     string
	Tokens    int64
	CreatedAt time.Time
}

// Repo is the persisted outcome of one successful ingestion run.
type Repo struct {
	ID           string
	OwnerID      string
	Namespace    string
	RepoURL      string
	IsPublic     bool
	SpaceName    string
	TotalFiles   int
	ChunksPushed int
	TotalLines   int
	CreatedAt    time.Time
}

// Open initializes the SQLite database at path, creating parent directories
// and applying migrations.
func Open(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Restrict permissions once the file exists (best-effort)
	_ = os.Chmod(path, 0o600)

	return &Registry{db: db}, nil
}

// migrate applies the schema.
func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
	  id         TEXT PRIMARY KEY,
	  name       TEXT NOT NULL,
	  email      TEXT NOT NULL UNIQUE,
	  tokens     INTEGER NOT NULL,
	  created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS repos (
	  id            TEXT PRIMARY KEY,
	  owner_id      TEXT NOT NULL REFERENCES users(id),
	  namespace     TEXT NOT NULL,
	  repo_url      TEXT,
	  is_public     INTEGER NOT NULL DEFAULT 0,
	  space_name    TEXT NOT NULL,
	  total_files   INTEGER NOT NULL DEFAULT 0,
	  chunks_pushed INTEGER NOT NULL DEFAULT 0,
	  total_lines   INTEGER NOT NULL DEFAULT 0,
	  created_at    INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_repos_owner_space ON repos(owner_id, space_name);
	CREATE INDEX IF NOT EXISTS idx_repos_public_space ON repos(is_public, space_name);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// NormalizeSpaceName lowercases and trims a space name, matching how it is
// stored.
func NormalizeSpaceName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CreateUser inserts a new account with an initial token balance.
func (r *Registry) CreateUser(ctx context.Context, name, email string, tokens int64) (*User, error) {
	u := &User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Tokens:    tokens,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, tokens, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Tokens, u.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// GetUser fetches an account by id. Returns (nil, nil) when absent.
func (r *Registry) GetUser(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, tokens, created_at FROM users WHERE id = ?`, id)

	var u User
	var createdAt int64
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Tokens, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}

// GetUserByEmail fetches an account by its normalized email address. Returns
// (nil, nil) when absent.
func (r *Registry) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, tokens, created_at FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))

	var u User
	var createdAt int64
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Tokens, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}

// AvailableTokens reads the account's current quota balance.
func (r *Registry) AvailableTokens(ctx context.Context, userID string) (int64, error) {
	row := r.db.QueryRowContext(ctx, `SELECT tokens FROM users WHERE id = ?`, userID)
	var tokens int64
	if err := row.Scan(&tokens); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("unknown user %s", userID)
		}
		return 0, fmt.Errorf("failed to read quota: %w", err)
	}
	return tokens, nil
}

// DebitTokens atomically decrements the account's quota by amount, clamped at
// zero, and returns the remaining balance. The single UPDATE makes concurrent
// debits for one account serialize at the database rather than racing a
// read-modify-write cycle.
func (r *Registry) DebitTokens(ctx context.Context, userID string, amount int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET tokens = MAX(tokens - ?, 0) WHERE id = ?`, amount, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to debit quota: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to debit quota: %w", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("unknown user %s", userID)
	}
	return r.AvailableTokens(ctx, userID)
}

// GrantTokens atomically increments the account's quota by amount.
func (r *Registry) GrantTokens(ctx context.Context, userID string, amount int64) (int64, error) {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE users SET tokens = tokens + ? WHERE id = ?`, amount, userID); err != nil {
		return 0, fmt.Errorf("failed to grant quota: %w", err)
	}
	return r.AvailableTokens(ctx, userID)
}

// CreateRepo persists a repository record, assigning its id and timestamp.
func (r *Registry) CreateRepo(ctx context.Context, repo *Repo) error {
	repo.ID = uuid.NewString()
	repo.SpaceName = NormalizeSpaceName(repo.SpaceName)
	repo.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO repos (id, owner_id, namespace, repo_url, is_public, space_name,
		   total_files, chunks_pushed, total_lines, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		repo.ID, repo.OwnerID, repo.Namespace, repo.RepoURL, boolToInt(repo.IsPublic),
		repo.SpaceName, repo.TotalFiles, repo.ChunksPushed, repo.TotalLines,
		repo.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create repo record: %w", err)
	}
	return nil
}

// FindBySpace returns the owner's repo record for a space name, or (nil, nil)
// when absent.
func (r *Registry) FindBySpace(ctx context.Context, ownerID, spaceName string) (*Repo, error) {
	row := r.db.QueryRowContext(ctx,
		repoSelect+` WHERE owner_id = ? AND space_name = ?`,
		ownerID, NormalizeSpaceName(spaceName))
	return scanRepo(row)
}

// FindPublicBySpace returns any public repo record for a space name, or
// (nil, nil) when absent.
func (r *Registry) FindPublicBySpace(ctx context.Context, spaceName string) (*Repo, error) {
	row := r.db.QueryRowContext(ctx,
		repoSelect+` WHERE is_public = 1 AND space_name = ?`,
		NormalizeSpaceName(spaceName))
	return scanRepo(row)
}

// ListByOwner returns the owner's repo records, newest first.
func (r *Registry) ListByOwner(ctx context.Context, ownerID string) ([]*Repo, error) {
	rows, err := r.db.QueryContext(ctx,
		repoSelect+` WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list repos: %w", err)
	}
	defer rows.Close()

	var repos []*Repo
	for rows.Next() {
		repo, err := scanRepoRow(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

const repoSelect = `SELECT id, owner_id, namespace, repo_url, is_public, space_name,
	total_files, chunks_pushed, total_lines, created_at FROM repos`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepoFields(s rowScanner) (*Repo, error) {
	var repo Repo
	var isPublic int
	var createdAt int64
	err := s.Scan(&repo.ID, &repo.OwnerID, &repo.Namespace, &repo.RepoURL, &isPublic,
		&repo.SpaceName, &repo.TotalFiles, &repo.ChunksPushed, &repo.TotalLines, &createdAt)
	if err != nil {
		return nil, err
	}
	repo.IsPublic = isPublic != 0
	repo.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &repo, nil
}

func scanRepo(row *sql.Row) (*Repo, error) {
	repo, err := scanRepoFields(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan repo: %w", err)
	}
	return repo, nil
}

func scanRepoRow(rows *sql.Rows) (*Repo, error) {
	repo, err := scanRepoFields(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan repo: %w", err)
	}
	return repo, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
