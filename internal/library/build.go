package library

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/mendeley/internal/mendeley"
)

// Option configures Build and Sync.
type Option func(*buildConfig)

type buildConfig struct {
	logger *zap.Logger
}

// WithLogger sets the logger used to report build progress.
func WithLogger(l *zap.Logger) Option {
	return func(c *buildConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func newBuildConfig(opts []Option) buildConfig {
	c := buildConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Build drains pager, binds every record with binder and indexes it. A
// record that cannot be bound aborts the build with its schema error; no
// record is skipped silently.
func Build(ctx context.Context, pager *mendeley.Pager, binder *mendeley.Binder, opts ...Option) (*Index, error) {
	cfg := newBuildConfig(opts)
	start := time.Now()

	idx := New()
	n := 0
	for pager.Next(ctx) {
		doc, err := binder.Document(pager.Record())
		if err != nil {
			return nil, fmt.Errorf("binding record %d: %w", n, err)
		}
		if err := idx.Upsert(doc); err != nil {
			return nil, fmt.Errorf("indexing record %d: %w", n, err)
		}
		n++
	}
	if err := pager.Err(); err != nil {
		return nil, fmt.Errorf("building library after %d records: %w", n, err)
	}

	cfg.logger.Info("library built",
		zap.Int("records", n),
		zap.Int("documents", idx.Len()),
		zap.Int("pages", pager.Pages()),
		zap.Int("reported_total", pager.TotalCount()),
		zap.Duration("elapsed", time.Since(start)))
	return idx, nil
}

// Sync builds an index of the user's documents through client.
func Sync(ctx context.Context, client *mendeley.Client, list mendeley.ListOptions, opts ...Option) (*Index, error) {
	return Build(ctx, client.DocumentsPager(list), client.Binder.WithView(list.View), opts...)
}

// FromRecords rebuilds an index from raw records, such as a local snapshot.
func FromRecords(records []mendeley.RawRecord, binder *mendeley.Binder) (*Index, error) {
	idx := New()
	for i, rec := range records {
		doc, err := binder.Document(rec)
		if err != nil {
			return nil, fmt.Errorf("binding record %d: %w", i, err)
		}
		if err := idx.Upsert(doc); err != nil {
			return nil, fmt.Errorf("indexing record %d: %w", i, err)
		}
	}
	return idx, nil
}

// Records returns the raw record of every document, ordered by id.
func (x *Index) Records() []mendeley.RawRecord {
	docs := x.Documents()
	out := make([]mendeley.RawRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Raw)
	}
	return out
}
