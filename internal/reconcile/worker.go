package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/clientmap/internal/boundary"
	"github.com/nao1215/clientmap/internal/clientmap"
	"github.com/nao1215/clientmap/internal/model"
)

// ErrNotConfigured is reported when a Worker runs without a provider or tree.
var ErrNotConfigured = errors.New("reconcile: no snapshot provider or tree")

// SnapshotProvider returns the URLs present in the DOM of a scan's target.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, scan model.ScanInfo) ([]string, error)
}

// SnapshotFunc adapts a function to SnapshotProvider.
type SnapshotFunc func(ctx context.Context, scan model.ScanInfo) ([]string, error)

// Snapshot implements SnapshotProvider.
func (f SnapshotFunc) Snapshot(ctx context.Context, scan model.ScanInfo) ([]string, error) {
	return f(ctx, scan)
}

// Result summarizes one run.
type Result struct {
	Scan     model.ScanInfo
	Snapshot int
	Added    []string
	Skipped  int
	Err      error
}

// Worker runs reconciliation passes.
type Worker struct {
	provider SnapshotProvider
	timeout  time.Duration
	filter   *boundary.Filter
	logger   *slog.Logger
	done     func(Result)
}

// Option configures a Worker.
type Option func(*Worker)

// WithTimeout bounds the snapshot call. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(w *Worker) {
		w.timeout = d
	}
}

// WithFilter sets the control-channel filter. Snapshot URLs it matches are
// never added to the tree.
func WithFilter(f *boundary.Filter) Option {
	return func(w *Worker) {
		w.filter = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// OnDone registers a callback invoked with the result of every run.
func OnDone(fn func(Result)) Option {
	return func(w *Worker) {
		w.done = fn
	}
}

// NewWorker creates a Worker backed by provider.
func NewWorker(provider SnapshotProvider, opts ...Option) *Worker {
	w := &Worker{provider: provider}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Clone returns a copy of w with opts applied on top of its settings.
func (w *Worker) Clone(opts ...Option) *Worker {
	c := *w
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Run reconciles tree against the snapshot for scan. Its signature matches
// lifecycle.RunFunc.
func (w *Worker) Run(scan model.ScanInfo, tree *clientmap.Map) {
	w.RunContext(context.Background(), scan, tree)
}

// RunContext is Run with a caller-supplied context for the snapshot.
func (w *Worker) RunContext(ctx context.Context, scan model.ScanInfo, tree *clientmap.Map) Result {
	res := w.reconcile(ctx, scan, tree)
	if w.done != nil {
		w.done(res)
	}
	return res
}

func (w *Worker) reconcile(ctx context.Context, scan model.ScanInfo, tree *clientmap.Map) Result {
	res := Result{Scan: scan}
	if w.provider == nil || tree == nil {
		res.Err = ErrNotConfigured
		return res
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	urls, err := w.provider.Snapshot(ctx, scan)
	if err != nil {
		w.logger.Debug("snapshot unavailable, skipping reconciliation", "scan", scan.ID, "target", scan.Target, "error", err)
		res.Err = err
		return res
	}
	res.Snapshot = len(urls)

	for _, u := range urls {
		if w.filter.IsControlURL(u) {
			res.Skipped++
			continue
		}
		if tree.Contains(u) {
			continue
		}
		if _, err := tree.GetOrAddNode(u, false, false); err != nil {
			res.Skipped++
			continue
		}
		res.Added = append(res.Added, u)
	}

	w.logger.Debug("reconciliation finished",
		"scan", scan.ID,
		"snapshot", res.Snapshot,
		"added", len(res.Added),
		"skipped", res.Skipped,
	)
	return res
}
