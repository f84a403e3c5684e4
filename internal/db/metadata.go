//-------------------------------------------------------------------------
//
// pgEdge Storage Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package db

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-storebench/internal/logging"
	"github.com/pgEdge/pgedge-storebench/pkg/version"
)

// MetadataTable holds key/value run metadata. It survives schema resets.
const MetadataTable = "storebench_metadata"

// createMetadataTableSQL creates the metadata table if it doesn't exist.
const createMetadataTableSQL = `
CREATE TABLE IF NOT EXISTS storebench_metadata (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// RunMetadata returns the keys recorded for every run in addition to the
// caller's own.
func RunMetadata(extra map[string]string) map[string]string {
	metadata := version.Fields()
	metadata["recorded_at"] = time.Now().UTC().Format(time.RFC3339)
	maps.Copy(metadata, extra)
	return metadata
}

// SaveMetadata upserts metadata in a single transaction.
func SaveMetadata(ctx context.Context, pool *pgxpool.Pool, metadata map[string]string) error {
	// Create table if it doesn't exist
	if _, err := pool.Exec(ctx, createMetadataTableSQL); err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin metadata transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, key := range slices.Sorted(maps.Keys(metadata)) {
		batch.Queue(`
            INSERT INTO storebench_metadata (key, value) VALUES ($1, $2)
            ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
        `, key, metadata[key])
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit metadata: %w", err)
	}

	logging.Debug().
		Int("keys", len(metadata)).
		Msg("Saved metadata")

	return nil
}

// GetAllMetadata retrieves all metadata as a map. A missing table yields an
// empty map.
func GetAllMetadata(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	exists, err := MetadataExists(ctx, pool)
	if err != nil {
		return nil, err
	}
	if !exists {
		return map[string]string{}, nil
	}

	rows, err := pool.Query(ctx, `SELECT key, value FROM storebench_metadata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		metadata[key] = value
	}

	return metadata, rows.Err()
}

// MetadataExists checks if the metadata table exists.
func MetadataExists(ctx context.Context, pool *pgxpool.Pool) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT FROM information_schema.tables
            WHERE table_schema = current_schema() AND table_name = $1
        )
    `, MetadataTable).Scan(&exists)
	return exists, err
}
