package pipeline

import (
	"context"
	"log"
	"log/slog"
	"sync"
	"time"

	"inventory-reconciler/internal/extract"
	"inventory-reconciler/internal/inbox"
	"inventory-reconciler/internal/logger"
	"inventory-reconciler/internal/metrics"
	"inventory-reconciler/internal/model"
	"inventory-reconciler/internal/notification"
	"inventory-reconciler/internal/review"
)

// State is where the pipeline keeps its inbox watermark and session
// counters between runs. Redis in production, MemoryState in staging and
// tests. Implementations degrade, never fail.
type State interface {
	Watermark(ctx context.Context) string
	SetWatermark(ctx context.Context, uid string)
	IncrStat(ctx context.Context, name string)
}

// MemoryState is the in-process State used when no Redis is configured.
type MemoryState struct {
	mu        sync.Mutex
	watermark string
	stats     map[string]int64
}

func NewMemoryState() *MemoryState {
	return &MemoryState{stats: make(map[string]int64)}
}

func (m *MemoryState) Watermark(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watermark
}

func (m *MemoryState) SetWatermark(ctx context.Context, uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watermark = uid
}

func (m *MemoryState) IncrStat(ctx context.Context, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[name]++
}

// Stat returns a session counter, for tests and reports.
func (m *MemoryState) Stat(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats[name]
}

// batchResult tallies one ingestion run.
type batchResult struct {
	processed int
	synced    int
	review    int
	failed    int
	skipped   int
}

// Pipeline is the ingestion loop: poll the source from the watermark,
// extract each message, hand orders to the review machine, advance the
// watermark once the whole batch is done.
type Pipeline struct {
	source    inbox.Source
	extractor extract.Extractor
	machine   *review.Machine
	state     State
	notifier  notification.Notifier
	metrics   *metrics.Metrics // may be nil
	workers   int

	// OnBatchDone, when set, fires after every completed batch. Used to
	// feed the health endpoint's last-batch timestamp.
	OnBatchDone func()
}

// New creates a Pipeline. workers bounds extraction/ingestion concurrency;
// <1 means 1. m may be nil.
func New(source inbox.Source, extractor extract.Extractor, machine *review.Machine,
	state State, notifier notification.Notifier, m *metrics.Metrics, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		source:    source,
		extractor: extractor,
		machine:   machine,
		state:     state,
		notifier:  notifier,
		metrics:   m,
		workers:   workers,
	}
}

// Run polls on interval until ctx is cancelled. The first poll happens
// immediately.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) {
	log.Printf("[pipeline] polling every %s with %d workers", interval, p.workers)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.RunOnce(ctx); err != nil {
			log.Printf("[pipeline] run failed: %v", err)
		}
		select {
		case <-ctx.Done():
			log.Printf("[pipeline] stopped: %v", ctx.Err())
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes one batch of new messages. The watermark only moves
// after every message in the batch has been handled, so a crash mid-batch
// re-presents the batch; ingestion's natural-key dedupe makes that safe.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	watermark := p.state.Watermark(ctx)
	msgs, err := p.source.FetchNew(ctx, watermark)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	log.Printf("[pipeline] %d new messages after watermark %q", len(msgs), watermark)

	var (
		mu    sync.Mutex
		total batchResult
		wg    sync.WaitGroup
		sem   = make(chan struct{}, p.workers)
	)
	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(msg inbox.RawMessage) {
			defer wg.Done()
			defer func() { <-sem }()
			r := p.handleMessage(ctx, msg)
			mu.Lock()
			total.processed += r.processed
			total.synced += r.synced
			total.review += r.review
			total.failed += r.failed
			total.skipped += r.skipped
			mu.Unlock()
		}(msg)
	}
	wg.Wait()

	if ctx.Err() != nil {
		// Leave the watermark; the interrupted batch runs again.
		return ctx.Err()
	}

	p.state.SetWatermark(ctx, msgs[len(msgs)-1].UID)
	p.recordBatch(ctx, total)
	if p.OnBatchDone != nil {
		p.OnBatchDone()
	}
	return nil
}

// handleMessage extracts one message and runs any order it yields through
// the review machine. A message that fails to process counts as failed but
// never aborts the batch.
func (p *Pipeline) handleMessage(ctx context.Context, msg inbox.RawMessage) batchResult {
	var r batchResult

	start := time.Now()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(msg.UID, start))
	o, conf, err := p.extractor.Extract(ctx, msg)
	if p.metrics != nil {
		p.metrics.ExtractDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		slog.Error("extraction failed", append([]any{
			slog.String("uid", msg.UID),
			slog.String("error", err.Error()),
		}, logger.LogWithTrace(ctx)...)...)
		r.failed++
		p.countOutcome("unknown", "failed")
		return r
	}
	if o == nil {
		r.skipped++
		return r
	}
	o.Confidence = conf
	r.processed++

	status, err := p.machine.Ingest(ctx, o)
	if err != nil {
		log.Printf("[pipeline] ingest %s: %v", o.NaturalKey(), err)
		r.failed++
		p.countOutcome(string(o.Kind), "failed")
		return r
	}

	switch status {
	case model.StatusSynced:
		r.synced++
		p.countOutcome(string(o.Kind), "synced")
	case model.StatusAwaitingReview:
		r.review++
		p.countOutcome(string(o.Kind), "review")
	case model.StatusFailed:
		r.failed++
		p.countOutcome(string(o.Kind), "failed")
	}
	return r
}

// recordBatch updates session counters and sends the batch summary.
func (p *Pipeline) recordBatch(ctx context.Context, r batchResult) {
	for i := 0; i < r.processed; i++ {
		p.state.IncrStat(ctx, "processed")
	}
	for i := 0; i < r.synced; i++ {
		p.state.IncrStat(ctx, "synced")
	}
	for i := 0; i < r.review; i++ {
		p.state.IncrStat(ctx, "review")
	}
	for i := 0; i < r.failed; i++ {
		p.state.IncrStat(ctx, "failed")
	}

	log.Printf("[pipeline] batch done: processed=%d synced=%d review=%d failed=%d skipped=%d",
		r.processed, r.synced, r.review, r.failed, r.skipped)
	if r.processed == 0 {
		return
	}
	if p.notifier != nil {
		alert := notification.BatchSummary(r.processed, r.synced, r.review, r.failed)
		if err := p.notifier.Send(ctx, alert); err != nil {
			log.Printf("[pipeline] batch summary notification failed: %v", err)
		}
	}
}

func (p *Pipeline) countOutcome(kind, outcome string) {
	if p.metrics != nil {
		p.metrics.OrdersProcessed.WithLabelValues(kind, outcome).Inc()
	}
}
