package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/signatlas/signrag/internal/core/domain"
)

// Catalog is the Postgres catalog backend: sign records, image asset
// rows, and text chunks for one corpus generation.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (c *Catalog) EnsureSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent ingest runs.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS sign_records (
	class_id TEXT PRIMARY KEY,
	official_name TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT 'other',
	partial BOOLEAN NOT NULL DEFAULT FALSE,
	built_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS image_assets (
	id TEXT PRIMARY KEY,
	class_id TEXT NOT NULL REFERENCES sign_records(class_id),
	image_path TEXT NOT NULL UNIQUE,
	checksum TEXT NOT NULL,
	slot INT NOT NULL
);
CREATE TABLE IF NOT EXISTS text_chunks (
	id TEXT PRIMARY KEY,
	class_id TEXT NOT NULL REFERENCES sign_records(class_id),
	chunk_index INT NOT NULL,
	source_ref TEXT NOT NULL,
	body TEXT NOT NULL
);`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return tx.Commit()
}

func (c *Catalog) SaveCorpus(ctx context.Context, corpus *domain.Corpus) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Each save replaces the previous corpus generation wholesale.
	for _, stmt := range []string{`DELETE FROM text_chunks`, `DELETE FROM image_assets`, `DELETE FROM sign_records`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear previous generation: %w", err)
		}
	}

	for _, record := range corpus.Records {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sign_records (class_id, official_name, description, category, partial, built_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			record.ClassID, record.OfficialName, record.Description, string(record.Category),
			corpus.IsPartial(record.ClassID), corpus.BuiltAt,
		)
		if err != nil {
			return fmt.Errorf("insert sign record %s: %w", record.ClassID, err)
		}
	}

	for _, asset := range corpus.Assets {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO image_assets (id, class_id, image_path, checksum, slot)
			 VALUES ($1, $2, $3, $4, $5)`,
			asset.ID, asset.ClassID, asset.Path, asset.Checksum, asset.Slot,
		)
		if err != nil {
			return fmt.Errorf("insert image asset %s: %w", asset.Path, err)
		}
	}

	for _, chunk := range corpus.Chunks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO text_chunks (id, class_id, chunk_index, source_ref, body)
			 VALUES ($1, $2, $3, $4, $5)`,
			chunk.ID, chunk.ClassID, chunk.ChunkIndex, chunk.SourceRef, chunk.Text,
		)
		if err != nil {
			return fmt.Errorf("insert text chunk %s: %w", chunk.SourceRef, err)
		}
	}

	return tx.Commit()
}

func (c *Catalog) LoadCorpus(ctx context.Context) (*domain.Corpus, error) {
	corpus := &domain.Corpus{
		Records: make(map[string]domain.SignRecord),
		Partial: make(map[string]bool),
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT class_id, official_name, description, category, partial, built_at FROM sign_records ORDER BY class_id`)
	if err != nil {
		return nil, fmt.Errorf("select sign records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			record   domain.SignRecord
			category string
			partial  bool
			builtAt  time.Time
		)
		if err := rows.Scan(&record.ClassID, &record.OfficialName, &record.Description, &category, &partial, &builtAt); err != nil {
			return nil, fmt.Errorf("scan sign record: %w", err)
		}
		record.Category = domain.Category(category)
		corpus.Records[record.ClassID] = record
		if partial {
			corpus.Partial[record.ClassID] = true
		}
		corpus.BuiltAt = builtAt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sign records: %w", err)
	}
	if len(corpus.Records) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "load corpus", fmt.Errorf("no sign records in catalog"))
	}

	if corpus.Assets, err = c.loadAssets(ctx); err != nil {
		return nil, err
	}
	if corpus.Chunks, err = c.loadChunks(ctx); err != nil {
		return nil, err
	}
	return corpus, nil
}

func (c *Catalog) loadAssets(ctx context.Context) ([]domain.ImageAsset, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, class_id, image_path, checksum, slot FROM image_assets ORDER BY image_path`)
	if err != nil {
		return nil, fmt.Errorf("select image assets: %w", err)
	}
	defer rows.Close()

	var out []domain.ImageAsset
	for rows.Next() {
		var asset domain.ImageAsset
		if err := rows.Scan(&asset.ID, &asset.ClassID, &asset.Path, &asset.Checksum, &asset.Slot); err != nil {
			return nil, fmt.Errorf("scan image asset: %w", err)
		}
		out = append(out, asset)
	}
	return out, rows.Err()
}

func (c *Catalog) loadChunks(ctx context.Context) ([]domain.TextChunk, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, class_id, chunk_index, source_ref, body FROM text_chunks ORDER BY source_ref`)
	if err != nil {
		return nil, fmt.Errorf("select text chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.TextChunk
	for rows.Next() {
		var chunk domain.TextChunk
		if err := rows.Scan(&chunk.ID, &chunk.ClassID, &chunk.ChunkIndex, &chunk.SourceRef, &chunk.Text); err != nil {
			return nil, fmt.Errorf("scan text chunk: %w", err)
		}
		out = append(out, chunk)
	}
	return out, rows.Err()
}
