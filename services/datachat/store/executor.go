// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store executes validated read-only queries against the sales
// warehouse over a pooled database/sql connection, and classifies failures
// into the two classes the pipeline cares about: "syntax-like, worth
// suggesting a rephrase" and "everything else".
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// FailureKind classifies an execution error.
type FailureKind int

const (
	// FailureOther covers connectivity, permission, and server-side
	// failures that a rephrased question will not fix.
	FailureOther FailureKind = iota

	// FailureSyntax covers errors a bad generated query produces: syntax
	// errors, unknown columns, misuse of ORDER BY. A rephrase can help.
	FailureSyntax
)

func (k FailureKind) String() string {
	if k == FailureSyntax {
		return "syntax"
	}
	return "other"
}

// syntaxMarkers are the substrings that mark a failure as generated-SQL
// shaped rather than environmental.
var syntaxMarkers = regexp.MustCompile(`(?i)(syntax|ORDER BY|invalid|incorrect|unknown column|column .* does not exist|ambiguous)`)

// QueryError tags an execution failure with its kind while keeping the
// driver error reachable through errors.Unwrap.
type QueryError struct {
	Kind FailureKind
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed (%s): %v", e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ClassifyError returns the failure kind for an execution error.
func ClassifyError(err error) FailureKind {
	if err == nil {
		return FailureOther
	}
	if qe, ok := err.(*QueryError); ok {
		return qe.Kind
	}
	if syntaxMarkers.MatchString(err.Error()) {
		return FailureSyntax
	}
	return FailureOther
}

// Result is one executed result set, fully materialized.
type Result struct {
	// Columns preserves the result column order, which map-typed rows
	// cannot. Shape classification depends on it.
	Columns []string

	// Rows are the scanned rows, one map per row keyed by column name.
	Rows []map[string]any

	// RowCount is len(Rows).
	RowCount int
}

// Executor runs validated queries.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Executor interface {
	Query(ctx context.Context, query string) (*Result, error)

	// Ping verifies warehouse connectivity for readiness checks.
	Ping(ctx context.Context) error

	Close() error
}

// PoolConfig bounds the warehouse connection pool.
type PoolConfig struct {
	// MaxOpen caps concurrent connections. <= 0 means 10.
	MaxOpen int

	// MaxIdle caps idle pooled connections. < 0 means MaxOpen.
	MaxIdle int

	// IdleTimeout closes connections idle longer than this. <= 0 means 30s.
	IdleTimeout time.Duration

	// QueryTimeout bounds a single query. <= 0 means 30s.
	QueryTimeout time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxOpen <= 0 {
		c.MaxOpen = 10
	}
	if c.MaxIdle < 0 {
		c.MaxIdle = c.MaxOpen
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 30 * time.Second
	}
	return c
}

// SQLExecutor is the database/sql implementation of Executor.
//
// Thread Safety: SQLExecutor is safe for concurrent use; *sql.DB pools
// internally.
type SQLExecutor struct {
	db           *sql.DB
	queryTimeout time.Duration
	logger       *slog.Logger
}

// NewSQLExecutor opens a pooled connection to the warehouse.
//
// Inputs:
//   - dsn: pgx connection string (DATACHAT_DB_DSN).
//   - cfg: Pool bounds; zero values take defaults.
//   - logger: Structured logger; nil means slog.Default().
//
// Outputs:
//   - *SQLExecutor: The executor. Connectivity is not verified here; use
//     Ping so a warehouse outage at boot does not prevent startup.
//   - error: Non-nil when the DSN does not parse.
func NewSQLExecutor(dsn string, cfg PoolConfig, logger *slog.Logger) (*SQLExecutor, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening warehouse connection: %w", err)
	}
	return NewSQLExecutorFromDB(db, cfg, logger), nil
}

// NewSQLExecutorFromDB wraps an existing handle; tests inject sqlmock here.
func NewSQLExecutorFromDB(db *sql.DB, cfg PoolConfig, logger *slog.Logger) *SQLExecutor {
	cfg = cfg.withDefaults()
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxIdleTime(cfg.IdleTimeout)
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLExecutor{db: db, queryTimeout: cfg.QueryTimeout, logger: logger}
}

// Query implements Executor.
//
// Description:
//
//	Runs the query under the configured per-query deadline and fully
//	materializes the result: every cell is scanned into any, []byte cells
//	are copied to string (drivers reuse the buffer between rows). Failures
//	come back as *QueryError with their kind already classified.
//
// Thread Safety: This method is safe for concurrent use.
func (e *SQLExecutor) Query(ctx context.Context, query string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &QueryError{Kind: ClassifyError(err), Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Kind: FailureOther, Err: err}
	}

	result := &Result{Columns: columns}
	values := make([]any, len(columns))
	scanTargets := make([]any, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, &QueryError{Kind: FailureOther, Err: err}
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = v
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Kind: ClassifyError(err), Err: err}
	}

	result.RowCount = len(result.Rows)
	e.logger.Debug("warehouse query executed",
		slog.Int("rows", result.RowCount),
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}

// Ping implements Executor.
func (e *SQLExecutor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Close implements Executor.
func (e *SQLExecutor) Close() error {
	return e.db.Close()
}
