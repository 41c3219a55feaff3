// Package history persists chat conversations in a local SQLite
// database so a session can be reviewed or exported later.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	repo_hash  TEXT NOT NULL,
	repo_name  TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_repo ON conversations(repo_hash);

CREATE TABLE IF NOT EXISTS turns (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	incomplete      BOOLEAN NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id);
`

// Conversation is one chat session against one repository.
type Conversation struct {
	ID        string    `db:"id"`
	RepoHash  string    `db:"repo_hash"`
	RepoName  string    `db:"repo_name"`
	CreatedAt time.Time `db:"created_at"`
}

// Turn is one question or answer inside a conversation. Incomplete marks
// a halted-loop partial answer.
type Turn struct {
	ID             int64     `db:"id"`
	ConversationID string    `db:"conversation_id"`
	Role           string    `db:"role"`
	Content        string    `db:"content"`
	Incomplete     bool      `db:"incomplete"`
	CreatedAt      time.Time `db:"created_at"`
}

// Store wraps the SQLite database. Open creates the schema on first use.
type Store struct {
	db *sqlx.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Begin starts a conversation for a repository and returns it.
func (s *Store) Begin(ctx context.Context, repoHash, repoName string) (*Conversation, error) {
	conv := &Conversation{
		ID:        uuid.NewString(),
		RepoHash:  repoHash,
		RepoName:  repoName,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO conversations (id, repo_hash, repo_name, created_at)
		 VALUES (:id, :repo_hash, :repo_name, :created_at)`, conv)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// Append records one turn.
func (s *Store) Append(ctx context.Context, conversationID, role, content string, incomplete bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (conversation_id, role, content, incomplete, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		conversationID, role, content, incomplete, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// Conversations lists sessions for one repository, newest first. An empty
// repoHash lists everything.
func (s *Store) Conversations(ctx context.Context, repoHash string) ([]Conversation, error) {
	var out []Conversation
	var err error
	if repoHash == "" {
		err = s.db.SelectContext(ctx, &out,
			`SELECT * FROM conversations ORDER BY created_at DESC`)
	} else {
		err = s.db.SelectContext(ctx, &out,
			`SELECT * FROM conversations WHERE repo_hash = ? ORDER BY created_at DESC`, repoHash)
	}
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// Turns returns a conversation's turns in insertion order.
func (s *Store) Turns(ctx context.Context, conversationID string) ([]Turn, error) {
	var out []Turn
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM turns WHERE conversation_id = ? ORDER BY id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	return out, nil
}

// Delete removes a conversation; its turns go with it via the
// foreign-key cascade.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", conversationID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("conversation %s not found", conversationID)
	}
	return nil
}

// Conversation fetches one conversation by id.
func (s *Store) Conversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	if err := s.db.GetContext(ctx, &conv,
		`SELECT * FROM conversations WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &conv, nil
}
