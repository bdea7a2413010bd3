package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"path"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/offmirror/internal/markup"
	"github.com/nao1215/offmirror/internal/model"
	"github.com/nao1215/offmirror/internal/pathmap"
)

// Fetcher downloads one URL. *fetcher.Fetcher implements it.
type Fetcher interface {
	Get(ctx context.Context, u *url.URL) (*model.Response, error)
}

// Writer persists mirror files. Paths are slash-separated and relative to
// the mirror root. *storage.DiskWriter implements it.
type Writer interface {
	// WriteFile creates path (and its parent directories) with data.
	WriteFile(path string, data []byte) error

	// Symlink creates link pointing at target. target is relative to the
	// directory containing link.
	Symlink(target, link string) error
}

// Journal records the outcome of each URL. *journal.Journal implements it.
type Journal interface {
	RecordPage(ctx context.Context, rec model.PageRecord) error
}

// RobotsChecker tells whether a URL may be fetched. *robots.Agent implements it.
type RobotsChecker interface {
	Allowed(ctx context.Context, u *url.URL) bool
}

// Engine mirrors one site. It owns the work queue, the path table and the
// worker pool. An Engine performs a single run.
type Engine struct {
	fetcher Fetcher
	writer  Writer
	policy  Policy

	jobs    int
	logger  *slog.Logger
	journal Journal
	runID   string
	robots  RobotsChecker
	limiter *rate.Limiter

	paths   *PathTable
	visited *VisitedSet
	queue   *Queue
	stats   counters

	// sleep waits between a worker's fetches; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithJobs sets the number of concurrent workers. Values below 1 mean 1.
func WithJobs(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.jobs = n
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithJournal records every processed URL under runID.
func WithJournal(j Journal, runID string) Option {
	return func(e *Engine) {
		e.journal = j
		e.runID = runID
	}
}

// WithRobots skips URLs the checker disallows.
func WithRobots(r RobotsChecker) Option {
	return func(e *Engine) {
		e.robots = r
	}
}

// WithRateLimit caps fetches per second across all workers.
// Zero or negative disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(e *Engine) {
		if perSecond <= 0 {
			e.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewEngine creates an Engine that downloads with f and writes with w.
func NewEngine(f Fetcher, w Writer, policy Policy, opts ...Option) *Engine {
	e := &Engine{
		fetcher: f,
		writer:  w,
		policy:  policy,
		jobs:    1,
		paths:   NewPathTable(),
		visited: NewVisitedSet(),
		queue:   NewQueue(),
		sleep:   sleepContext,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// Paths returns the URL to path table. It is complete once Run returns.
func (e *Engine) Paths() *PathTable {
	return e.paths
}

// Stats returns a snapshot of the run counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// Run mirrors origin and blocks until no work is left, ctx is cancelled,
// or a fatal error stops the workers. The origin is always fetched, whatever
// the visit filter says.
//
// Fatal errors are download failures (unless Policy.ContinueOnError),
// links that cannot be resolved, and write failures.
func (e *Engine) Run(ctx context.Context, origin *url.URL) (Stats, error) {
	if origin == nil || !origin.IsAbs() || origin.Host == "" ||
		(origin.Scheme != "http" && origin.Scheme != "https") {
		return Stats{}, ErrInvalidOrigin
	}

	start := canonical(origin)
	e.paths.InsertIfAbsent(start.String(), pathmap.ToPath(start))
	e.queue.Push(model.NewWorkItem(start, 0, 0))
	e.stats.queued.Add(1)

	e.logger.Info("mirror started",
		"origin", start.String(),
		"jobs", e.jobs,
		"depth", e.policy.DepthLimit,
		"ext_depth", e.policy.ExternalDepthLimit,
	)

	g, gctx := errgroup.WithContext(ctx)
	for id := range e.jobs {
		g.Go(func() error {
			return e.work(gctx, id)
		})
	}

	err := g.Wait()
	stats := e.Stats()
	if err != nil {
		return stats, err
	}
	if ctx.Err() != nil {
		return stats, ctx.Err()
	}

	e.logger.Info("mirror finished",
		"origin", start.String(),
		"queued", stats.Queued,
		"saved", stats.Saved,
		"failed", stats.Failed,
	)
	return stats, nil
}

// work is one worker loop.
func (e *Engine) work(ctx context.Context, id int) error {
	logger := e.logger.With("worker", id)

	for {
		item, ok := e.queue.Pop(ctx)
		if !ok {
			return ctx.Err()
		}

		err := e.process(ctx, logger, item)
		e.queue.Done()
		if err != nil {
			return err
		}

		if err := e.pause(ctx); err != nil {
			return err
		}
	}
}

// pause applies the per-worker politeness delay.
func (e *Engine) pause(ctx context.Context) error {
	d := e.policy.Delay
	if e.policy.RandomDelay > 0 {
		d += time.Duration(rand.Int64N(int64(e.policy.RandomDelay) + 1))
	}
	if d <= 0 {
		return nil
	}
	return e.sleep(ctx, d)
}

// process runs one WorkItem through fetch, rewrite and persist.
func (e *Engine) process(ctx context.Context, logger *slog.Logger, item model.WorkItem) error {
	u := item.URL()
	key := u.String()
	mapped, ok := e.paths.Get(key)
	if !ok {
		mapped = pathmap.ToPath(u)
	}

	rec := model.PageRecord{
		URL:           key,
		MappedPath:    mapped,
		Depth:         item.Depth(),
		ExternalDepth: item.ExternalDepth(),
	}
	defer func() {
		n := e.visited.Add(key)
		logger.Debug("visited", "url", key, "visited", n, "pending", e.queue.Pending())
	}()

	if e.robots != nil && !e.robots.Allowed(ctx, u) {
		logger.Info("disallowed by robots.txt", "url", key)
		e.stats.skipped.Add(1)
		rec.Outcome = model.OutcomeSkipped
		rec.Error = "disallowed by robots.txt"
		e.record(ctx, logger, rec)
		return nil
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	resp, err := e.fetcher.Get(ctx, u)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.stats.failed.Add(1)
		rec.Outcome = model.OutcomeFailed
		rec.Error = err.Error()
		e.record(ctx, logger, rec)

		if !e.policy.ContinueOnError {
			return fmt.Errorf("%w: %s: %w", ErrFetchFailed, key, err)
		}
		logger.Warn("skipping URL after failed download", "url", key, "error", err)
		return nil
	}
	e.stats.fetched.Add(1)

	body := resp.Body
	switch resp.Kind {
	case model.KindHTML:
		body, err = e.rewriteHTML(logger, item, mapped, resp)
	case model.KindCSS:
		body, err = e.rewriteCSS(logger, item, mapped, resp.Body)
	}
	if err != nil {
		return err
	}

	rec.Kind = resp.Kind.String()
	rec.StatusCode = resp.StatusCode
	rec.Bytes = int64(len(body))
	rec.SHA256 = resp.Hash

	if e.policy.DryRun || !e.policy.Download.Match(key) {
		rec.Outcome = model.OutcomeVisited
		logger.Info("visited", "url", key, "status", resp.StatusCode, "depth", item.Depth(), "ext_depth", item.ExternalDepth())
		e.record(ctx, logger, rec)
		return nil
	}

	saved, err := e.persist(mapped, resp.Filename, body)
	if err != nil {
		return err
	}
	e.stats.saved.Add(1)
	rec.SavedPath = saved
	rec.Outcome = model.OutcomeSaved
	logger.Info("saved", "url", key, "path", saved, "status", resp.StatusCode, "depth", item.Depth(), "ext_depth", item.ExternalDepth())
	e.record(ctx, logger, rec)
	return nil
}

// rewriteHTML decodes an HTML body, rewrites its links and encodes it back to
// the charset it came in. Decoding and parse problems are logged and the
// original bytes are kept.
func (e *Engine) rewriteHTML(logger *slog.Logger, item model.WorkItem, mapped string, resp *model.Response) ([]byte, error) {
	cs := markup.ResolveCharset(resp.Charset, resp.Body)
	if cs.Source == markup.CharsetFallback {
		logger.Warn("no usable charset declared, assuming UTF-8", "url", resp.URL)
	}

	text, err := cs.Decode(resp.Body)
	if err != nil {
		logger.Warn("cannot decode page", "url", resp.URL, "charset", cs.Name, "error", err)
		return resp.Body, nil
	}

	doc, err := markup.ParseHTML(text)
	if err != nil {
		logger.Warn("cannot parse page", "url", resp.URL, "error", err)
		return resp.Body, nil
	}

	base := item.URL()
	if href, ok := doc.Base(); ok {
		if b, _, ok, err := resolveLink(base, href); err == nil && ok {
			base = b
		}
		// The saved copy must resolve its rewritten links against itself.
		doc.RemoveBase()
	}

	links := append(doc.Links(), doc.StyleLinks()...)
	if err := e.handleLinks(logger, item, base, mapped, links); err != nil {
		return nil, err
	}

	out, err := doc.Render()
	if err != nil {
		logger.Warn("cannot render page", "url", resp.URL, "error", err)
		return resp.Body, nil
	}

	encoded, err := cs.Encode(out)
	if err != nil {
		logger.Warn("cannot re-encode page, saving UTF-8", "url", resp.URL, "charset", cs.Name, "error", err)
		return out, nil
	}
	return encoded, nil
}

// rewriteCSS rewrites url() and @import references of a stylesheet.
func (e *Engine) rewriteCSS(logger *slog.Logger, item model.WorkItem, mapped string, body []byte) ([]byte, error) {
	doc := markup.ParseCSS(body)
	if err := e.handleLinks(logger, item, item.URL(), mapped, doc.Links()); err != nil {
		return nil, err
	}
	return doc.Render(), nil
}

// handleLinks resolves against base, records, maybe enqueues, and rewrites
// every link found on the page at item.
func (e *Engine) handleLinks(logger *slog.Logger, item model.WorkItem, base *url.URL, fromPath string, links []markup.Link) error {
	page := item.URL()

	for _, link := range links {
		raw := link.Value()
		target, fragment, ok, err := resolveLink(base, raw)
		if err != nil {
			return fmt.Errorf("%w: %q on %s: %w", ErrUnresolvableLink, raw, page.String(), err)
		}
		if !ok {
			continue
		}

		key := target.String()
		toPath := pathmap.ToPath(target)
		if e.paths.InsertIfAbsent(key, toPath) {
			e.admit(logger, item, page, target)
		} else if existing, ok := e.paths.Get(key); ok {
			toPath = existing
		}

		rewritten := pathmap.Relative(fromPath, toPath)
		if fragment != "" {
			rewritten += "#" + fragment
		}
		link.Set(rewritten)
	}

	return nil
}

// admit enqueues a newly discovered URL when depth, domain and visit filter
// allow it.
func (e *Engine) admit(logger *slog.Logger, item model.WorkItem, page, target *url.URL) {
	var child model.WorkItem
	if sameHost(page, target) {
		if !withinLimit(item.Depth(), e.policy.DepthLimit) {
			return
		}
		child = item.InternalChild(target)
	} else {
		if !withinLimit(item.ExternalDepth(), e.policy.ExternalDepthLimit) {
			return
		}
		child = item.ExternalChild(target)
	}

	visit := e.policy.visitFilter()
	if !visit.Match(target.String()) {
		logger.Debug("not following", "url", target.String())
		return
	}

	e.queue.Push(child)
	e.stats.queued.Add(1)
}

// persist writes body for the URL mapped to mapped and returns the path that
// holds the bytes. With a server-suggested filename, the bytes go under that
// name in the same directory and mapped becomes a symlink to it.
func (e *Engine) persist(mapped, filename string, body []byte) (string, error) {
	if filename == "" || filename == path.Base(mapped) {
		if err := e.writer.WriteFile(mapped, body); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrPersist, mapped, err)
		}
		return mapped, nil
	}

	saved := path.Join(path.Dir(mapped), filename)
	if err := e.writer.WriteFile(saved, body); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrPersist, saved, err)
	}
	if err := e.writer.Symlink(filename, mapped); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrPersist, mapped, err)
	}
	return saved, nil
}

// record stores rec in the journal. Journal errors are not fatal.
func (e *Engine) record(ctx context.Context, logger *slog.Logger, rec model.PageRecord) {
	if e.journal == nil {
		return
	}
	rec.RunID = e.runID
	rec.Timestamp = time.Now().UTC()
	if err := e.journal.RecordPage(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("cannot record page in journal", "url", rec.URL, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
