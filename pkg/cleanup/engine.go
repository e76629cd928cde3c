// Package cleanup deletes everything reachable from a storage backend, page
// by page.
//
// The Engine walks two levels of paginated listings: groups (namespaces or
// tables) and the items inside each group. Every page is processed as a
// fork-join batch: all entries of the page are dispatched concurrently and the
// engine waits for the whole batch before requesting the next page. Absent
// groups and items are not errors, so a run that failed half way can simply
// be repeated until it converges.
//
// The engine has destructive authority over every group the source can list.
// It is only ever handed storage.ObjectAdmin or storage.RowAdmin values, which
// production code paths do not hold.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dyluth/snapvault/pkg/storage"
)

// Source adapts a backend to the two-level enumeration the Engine performs.
type Source[I any] interface {
	// Kind names the source in logs, metrics and reports, e.g. "objects".
	Kind() string

	ListGroups(ctx context.Context, cursor storage.Cursor) ([]string, storage.Cursor, error)
	GroupExists(ctx context.Context, group string) (bool, error)
	ListItems(ctx context.Context, group string, cursor storage.Cursor) ([]I, storage.Cursor, error)

	// DeleteItem must treat an already-deleted item as success.
	DeleteItem(ctx context.Context, group string, item I) error
}

// Report summarizes one engine run.
type Report struct {
	Kind string

	// Groups is the number of groups whose items were all deleted.
	Groups int64

	// Skipped is the number of listed groups that no longer existed.
	Skipped int64

	// Items is the number of successful item deletions.
	Items int64

	// Pages is the number of listing pages fetched, groups and items combined.
	Pages int64
}

type tally struct {
	groups, skipped, items, pages atomic.Int64
}

func (t *tally) report(kind string) Report {
	return Report{
		Kind:    kind,
		Groups:  t.groups.Load(),
		Skipped: t.skipped.Load(),
		Items:   t.items.Load(),
		Pages:   t.pages.Load(),
	}
}

type config struct {
	maxConcurrency int
	logger         *slog.Logger
	metrics        *Metrics
}

// Option configures an Engine or Maintenance.
type Option func(*config)

// WithMaxConcurrency caps the number of concurrent operations per batch.
// Zero, the default, dispatches a whole page at once.
func WithMaxConcurrency(n int) Option {
	return func(c *config) { c.maxConcurrency = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics records progress on m.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

func newConfig(opts []Option) config {
	c := config{}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Engine runs the paginated cleanup algorithm over a Source.
type Engine[I any] struct {
	source Source[I]
	cfg    config
	logger *slog.Logger
}

// NewEngine creates an engine over source.
func NewEngine[I any](source Source[I], opts ...Option) *Engine[I] {
	cfg := newConfig(opts)
	return &Engine[I]{
		source: source,
		cfg:    cfg,
		logger: cfg.logger.With("component", "cleanup", "kind", source.Kind()),
	}
}

// Run deletes every item of every group. The returned report is valid even
// when an error is returned.
//
// Cancelling ctx stops new page requests. Deletions already dispatched in the
// current batch run to completion, after which Run returns an error wrapping
// storage.ErrCancelled.
func (e *Engine[I]) Run(ctx context.Context) (Report, error) {
	var t tally
	kind := e.source.Kind()

	var cursor storage.Cursor
	for {
		if err := ctx.Err(); err != nil {
			return t.report(kind), e.cancelled(ctx)
		}
		groups, next, err := e.source.ListGroups(ctx, cursor)
		if err != nil {
			return t.report(kind), fmt.Errorf("failed to list %s groups: %w", kind, err)
		}
		t.pages.Add(1)
		if len(groups) == 0 {
			break
		}

		err = fork(ctx, e.cfg.maxConcurrency, groups, func(_ context.Context, group string) error {
			return e.clearGroup(ctx, group, &t)
		})
		if err != nil {
			e.logger.ErrorContext(ctx, "cleanup batch failed",
				"event_type", "cleanup_batch_failed",
				"groups", len(groups),
				"error", err)
			if ctx.Err() != nil && !storage.IsCancelled(err) {
				err = errors.Join(err, e.cancelled(ctx))
			}
			return t.report(kind), err
		}

		if next.Done() {
			break
		}
		cursor = next
	}

	report := t.report(kind)
	e.logger.InfoContext(ctx, "cleanup complete",
		"event_type", "cleanup_complete",
		"groups", report.Groups,
		"skipped", report.Skipped,
		"items", report.Items,
		"pages", report.Pages)
	return report, nil
}

// clearGroup deletes every item of one group. ctx is the caller's context
// and is consulted before each page request.
func (e *Engine[I]) clearGroup(ctx context.Context, group string, t *tally) error {
	kind := e.source.Kind()

	exists, err := e.source.GroupExists(ctx, group)
	if err != nil {
		e.cfg.metrics.group(kind, OutcomeFailed)
		return fmt.Errorf("failed to check %s group '%s': %w", kind, group, err)
	}
	if !exists {
		t.skipped.Add(1)
		e.cfg.metrics.group(kind, OutcomeSkipped)
		return nil
	}

	// A group is swept until a full pass deletes nothing. Backends whose
	// cursors are positional can step over items when earlier pages shrink.
	var cursor storage.Cursor
	var deleted, pass atomic.Int64
	for {
		if ctx.Err() != nil {
			return e.cancelled(ctx)
		}
		items, next, err := e.source.ListItems(ctx, group, cursor)
		if err != nil {
			e.cfg.metrics.group(kind, OutcomeFailed)
			return fmt.Errorf("failed to list %s group '%s': %w", kind, group, err)
		}
		t.pages.Add(1)
		if len(items) == 0 && next.Done() {
			if pass.Swap(0) == 0 {
				break
			}
			cursor = ""
			continue
		}

		err = fork(ctx, e.cfg.maxConcurrency, items, func(dctx context.Context, item I) error {
			if err := e.source.DeleteItem(dctx, group, item); err != nil {
				return fmt.Errorf("failed to delete from %s group '%s': %w", kind, group, err)
			}
			t.items.Add(1)
			deleted.Add(1)
			pass.Add(1)
			e.cfg.metrics.itemDeleted(kind)
			return nil
		})
		if err != nil {
			e.cfg.metrics.group(kind, OutcomeFailed)
			return err
		}

		if next.Done() {
			if pass.Swap(0) == 0 {
				break
			}
			cursor = ""
			continue
		}
		cursor = next
	}

	t.groups.Add(1)
	e.cfg.metrics.group(kind, OutcomeCleared)
	e.logger.InfoContext(ctx, "group cleared",
		"event_type", "group_cleared",
		"group", group,
		"items", deleted.Load())
	return nil
}

func (e *Engine[I]) cancelled(ctx context.Context) error {
	return &storage.OpError{Op: "cleanup " + e.source.Kind(), Kind: storage.ErrCancelled, Err: context.Cause(ctx)}
}

// fork runs fn for every entry concurrently, at most limit at a time when
// limit is positive, and waits for all of them. fn receives a context that
// is not cancelled with ctx, so a started batch always drains. Every failure
// is returned, joined.
func fork[T any](ctx context.Context, limit int, entries []T, fn func(context.Context, T) error) error {
	drain := context.WithoutCancel(ctx)
	errs := make([]error, len(entries))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, entry := range entries {
		g.Go(func() error {
			errs[i] = fn(drain, entry)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
