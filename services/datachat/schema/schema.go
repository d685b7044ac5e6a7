// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package schema serves the warehouse schema description used in the SQL
// generation prompt. A default description ships embedded; operators can
// point DATACHAT_SCHEMA_FILE at their own, and the loader hot-reloads it on
// change so prompt tuning does not need a restart.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DefaultDescription is the embedded schema description for the sales
// warehouse. Column remarks matter: they are the only schema knowledge the
// model gets.
const DefaultDescription = `Tables:

FACT_SALES_ORDER (primary sales: company -> distributor orders)
  DATEKEY int           -- order date as YYYYMMDD
  DISTRIBUTORCODE varchar
  DISTRIBUTORNAME varchar
  PRODUCTCODE varchar
  PRODUCTNAME varchar
  QUANTITY decimal
  NETAMOUNT decimal     -- order value in PKR
  SALESORDERNO varchar

FACT_SECONDARY_SALES (secondary sales: distributor -> retailer sell-through)
  DATEKEY int           -- invoice date as YYYYMMDD
  DISTRIBUTORCODE varchar
  DISTRIBUTORNAME varchar
  PRODUCTCODE varchar
  PRODUCTNAME varchar
  QUANTITY decimal
  NETAMOUNT decimal     -- invoice value in PKR
  TOWNNAME varchar

DIMPRODUCT (product master)
  PRODUCTCODE varchar
  PRODUCTNAME varchar
  BRANDNAME varchar
  CATEGORYNAME varchar

DIMDISTRIBUTION (distributor master)
  DISTRIBUTORCODE varchar
  DISTRIBUTORNAME varchar
  REGIONNAME varchar
  ZONENAME varchar

Notes:
- "sales" without qualification means FACT_SALES_ORDER.
- Amounts are PKR. DATEKEY comparisons are integer comparisons.
- Join facts to dimensions on PRODUCTCODE / DISTRIBUTORCODE.`

// Loader serves the current schema description and optionally watches a
// file override for changes.
//
// Thread Safety: Get is safe for concurrent use with Watch running.
type Loader struct {
	mu     sync.RWMutex
	text   string
	path   string
	logger *slog.Logger
}

// NewLoader returns a loader serving the embedded default description.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{text: DefaultDescription, logger: logger}
}

// Get returns the current schema description.
func (l *Loader) Get() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.text
}

// Load replaces the description with the contents of path. Empty or
// whitespace-only files are rejected so a truncated write cannot blank the
// prompt.
func (l *Loader) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading schema description %s: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fmt.Errorf("schema description %s is empty", path)
	}

	l.mu.Lock()
	l.text = text
	l.path = path
	l.mu.Unlock()

	l.logger.Info("schema description loaded",
		slog.String("path", path),
		slog.Int("bytes", len(text)))
	return nil
}

// Watch reloads the description whenever the loaded file changes, until ctx
// is cancelled. Load must have succeeded first; watching with no file
// override is a no-op.
//
// Description:
//
//	Watches the file's directory rather than the file itself, so
//	editor-style replace-by-rename (write temp, rename over) still
//	triggers a reload. Reload failures keep the previous description and
//	are logged, never fatal.
func (l *Loader) Watch(ctx context.Context) error {
	l.mu.RLock()
	path := l.path
	l.mu.RUnlock()
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating schema watcher: %w", err)
	}

	dir := path[:strings.LastIndexByte(path, os.PathSeparator)+1]
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if err := l.Load(path); err != nil {
					l.logger.Warn("schema reload failed, keeping previous description",
						slog.String("path", path),
						slog.String("error", err.Error()))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Warn("schema watcher error", slog.String("error", err.Error()))
			}
		}
	}()

	l.logger.Info("watching schema description for changes", slog.String("path", path))
	return nil
}
