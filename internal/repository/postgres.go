package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campus-locator/internal/models"
)

const documentsChannel = "documents_changed"

// PostgresStore keeps documents in a single jsonb table and announces changes with NOTIFY
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresPool connects and verifies the pool
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// NewPostgresStore creates a store over an open pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the documents table and its change trigger
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			fields     JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		);

		CREATE INDEX IF NOT EXISTS documents_fields_gin ON documents USING GIN (fields jsonb_path_ops);

		CREATE OR REPLACE FUNCTION notify_documents_changed() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('`+documentsChannel+`', COALESCE(NEW.collection, OLD.collection));
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql;

		DROP TRIGGER IF EXISTS documents_changed ON documents;
		CREATE TRIGGER documents_changed
			AFTER INSERT OR UPDATE OR DELETE ON documents
			FOR EACH ROW EXECUTE FUNCTION notify_documents_changed();
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure documents schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT fields FROM documents WHERE collection = $1 AND id = $2
	`, collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	fields := Fields{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return &Document{ID: id, Fields: fields}, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, fields Fields, mergeFields bool) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	query := `
		INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()
	`
	if mergeFields {
		query = `
			INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3)
			ON CONFLICT (collection, id) DO UPDATE SET fields = documents.fields || EXCLUDED.fields, updated_at = now()
		`
	}
	if _, err := s.pool.Exec(ctx, query, collection, id, raw); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET fields = fields || $3, updated_at = now()
		WHERE collection = $1 AND id = $2
	`, collection, id, raw)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	if filter == nil {
		filter = Filter{}
	}
	containment, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, fields FROM documents
		WHERE collection = $1 AND fields @> $2
		ORDER BY id
	`, collection, containment)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		fields := Fields{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	return docs, rows.Err()
}

// Subscribe holds one pooled connection in LISTEN for the lifetime of the subscription
func (s *PostgresStore) Subscribe(ctx context.Context, collection string, filter Filter, onChange func([]Document)) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+documentsChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	docs, err := s.Query(ctx, collection, filter)
	if err != nil {
		conn.Release()
		return nil, err
	}
	onChange(docs)

	subCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	unsubscribe := func() { once.Do(cancel) }

	go func() {
		defer func() {
			// a connection interrupted mid-wait cannot go back to the pool
			_ = conn.Conn().Close(context.Background())
			conn.Release()
		}()
		for {
			notification, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					log.Printf("❌ Listener for %s stopped: %v", collection, err)
				}
				return
			}
			if notification.Payload != collection {
				continue
			}
			docs, err := s.Query(subCtx, collection, filter)
			if err != nil {
				log.Printf("❌ Re-query of %s after notify failed: %v", collection, err)
				continue
			}
			onChange(docs)
		}
	}()

	return unsubscribe, nil
}
