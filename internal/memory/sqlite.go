package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultSQLiteTable = "memories"

type SQLiteStore struct {
	db         *sql.DB
	table      string
	tableIdent string
}

func NewSQLiteStore(dsn string, table string) (*SQLiteStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	if table == "" {
		table = defaultSQLiteTable
	}
	tableIdent, err := quoteSQLiteIdentifier(table)
	if err != nil {
		return nil, err
	}
	if err := ensureSQLiteDir(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	store := &SQLiteStore{db: db, table: table, tableIdent: tableIdent}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// CreateMemory inserts record. An existing id is left untouched so replays
// never duplicate a memory.
func (s *SQLiteStore) CreateMemory(ctx context.Context, record Record) error {
	if record.ID == "" {
		return fmt.Errorf("memory id is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	images, err := encodeList(record.ImageDescriptions)
	if err != nil {
		return err
	}
	actions, err := encodeList(record.Actions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		fmt.Sprintf(`INSERT INTO %s (id, kind, feed, author, content, image_descriptions, response, actions, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`, s.tableIdent),
		record.ID,
		string(record.Kind),
		record.Feed,
		record.Author,
		record.Content,
		images,
		record.Response,
		actions,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert memory %s: %w", record.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetMemoryByID(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT id, kind, feed, author, content, image_descriptions, response, actions, created_at
		FROM %s WHERE id = ?`, s.tableIdent), id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *SQLiteStore) RecentMemories(ctx context.Context, kind Kind, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, kind, feed, author, content, image_descriptions, response, actions, created_at
		FROM %s WHERE kind = ? ORDER BY created_at DESC LIMIT ?`, s.tableIdent), string(kind), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		record  Record
		kind    string
		images  string
		actions string
	)
	err := row.Scan(&record.ID, &kind, &record.Feed, &record.Author, &record.Content, &images, &record.Response, &actions, &record.CreatedAt)
	if err != nil {
		return Record{}, err
	}
	record.Kind = Kind(kind)
	if record.ImageDescriptions, err = decodeList(images); err != nil {
		return Record{}, err
	}
	if record.Actions, err = decodeList(actions); err != nil {
		return Record{}, err
	}
	return record, nil
}

func encodeList(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode memory list: %w", err)
	}
	return values, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		feed TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		image_descriptions TEXT NOT NULL DEFAULT '[]',
		response TEXT NOT NULL DEFAULT '',
		actions TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL
	)`, s.tableIdent)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sqlite table: %w", err)
	}
	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_kind_created_idx ON %s (kind, created_at)", s.table, s.tableIdent)
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("create sqlite index: %w", err)
	}
	return nil
}

func ensureSQLiteDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") {
		dsn = strings.TrimPrefix(dsn, "file:")
		if idx := strings.IndexRune(dsn, '?'); idx >= 0 {
			dsn = dsn[:idx]
		}
	}
	if dsn == "" || dsn == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

var sqliteIdentifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteSQLiteIdentifier(identifier string) (string, error) {
	if !sqliteIdentifierPattern.MatchString(identifier) {
		return "", fmt.Errorf("sqlite table name %q must match %s", identifier, sqliteIdentifierPattern.String())
	}
	return `"` + identifier + `"`, nil
}
