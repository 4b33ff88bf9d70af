package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/yaoapp/kun/log"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; sessions indexing at once queue here instead of failing with "database is locked".
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS vector_records (
        namespace TEXT NOT NULL,
        id TEXT NOT NULL,
        document TEXT NOT NULL,
        metadata_json TEXT,
        embedding_json TEXT, -- JSON array of float32, NULL when stored without vectors
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (namespace, id)
    );
    CREATE INDEX IF NOT EXISTS idx_vector_records_namespace ON vector_records (namespace);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Upsert writes all records in one transaction; an existing id in the namespace is overwritten.
func (s *SQLiteStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO vector_records (namespace, id, document, metadata_json, embedding_json, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare record upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range records {
		var metadataJSON, embeddingJSON sql.NullString
		if len(r.Metadata) > 0 {
			b, err := json.Marshal(r.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal metadata for record %s: %w", r.ID, err)
			}
			metadataJSON = sql.NullString{String: string(b), Valid: true}
		}
		if len(r.Embedding) > 0 {
			b, err := json.Marshal(r.Embedding)
			if err != nil {
				return fmt.Errorf("failed to marshal embedding for record %s: %w", r.ID, err)
			}
			embeddingJSON = sql.NullString{String: string(b), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, namespace, r.ID, r.Document, metadataJSON, embeddingJSON, now); err != nil {
			return fmt.Errorf("failed to execute record upsert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	log.Debug("Upserted %d records into namespace %s", len(records), namespace)
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context, namespace string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vector_records WHERE namespace = ?", namespace).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// Records loads every record of the namespace in insertion order.
func (s *SQLiteStore) Records(ctx context.Context, namespace string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, document, metadata_json, embedding_json, created_at FROM vector_records WHERE namespace = ? ORDER BY rowid", namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var metadataJSON, embeddingJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.Document, &metadataJSON, &embeddingJSON, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		if metadataJSON.Valid {
			if err := json.Unmarshal([]byte(metadataJSON.String), &r.Metadata); err != nil {
				log.Warn("Failed to unmarshal metadata for record %s: %v", r.ID, err)
			}
		}
		if embeddingJSON.Valid {
			if err := json.Unmarshal([]byte(embeddingJSON.String), &r.Embedding); err != nil {
				log.Warn("Failed to unmarshal embedding for record %s: %v. Skipping vector.", r.ID, err)
				r.Embedding = nil
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating record rows: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) DropNamespace(ctx context.Context, namespace string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM vector_records WHERE namespace = ?", namespace)
	if err != nil {
		return fmt.Errorf("failed to drop namespace %s: %w", namespace, err)
	}
	affected, _ := res.RowsAffected()
	log.Debug("Dropped %d records from namespace %s", affected, namespace)
	return nil
}
