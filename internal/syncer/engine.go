// Package syncer bridges ledger state into the off-chain store. One poll
// cycle per tracked contract walks IDLE → POLLING → PROCESSING_BATCH →
// APPLYING → IDLE; transport failures detour through ERROR and are
// retried on a later tick. Delivery is at-least-once with idempotent
// apply, so the cursor only ever advances past fully applied events.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"staysync/internal/cache"
	"staysync/internal/integrity"
	"staysync/internal/ledger"
	"staysync/internal/ledger/retry"
	"staysync/internal/metrics"
	"staysync/internal/models"
	"staysync/internal/storage"
)

// State names the phase a contract's poll cycle is in.
type State string

const (
	StateIdle       State = "idle"
	StatePolling    State = "polling"
	StateProcessing State = "processing_batch"
	StateApplying   State = "applying"
	StateError      State = "error"
)

// Config holds the engine's tunables.
type Config struct {
	// Contracts lists the ledger contract addresses to track.
	Contracts []string

	// PollInterval is the fixed cadence between poll ticks.
	PollInterval time.Duration

	// QueryTimeout bounds a single ledger query, ApplyTimeout a single
	// event's apply (including its idempotency bookkeeping).
	QueryTimeout time.Duration
	ApplyTimeout time.Duration
}

// Engine owns the poll loops. It is the only writer of cursors and of
// status fields derived from events; ledger events are authoritative over
// local optimistic updates.
type Engine struct {
	cfg      Config
	client   ledger.Client
	store    storage.Store
	mapper   *StatusMapper
	strategy retry.Strategy
	cache    cache.Cache

	trackers map[string]*tracker
}

// tracker is the per-contract poll state. inFlight gives each contract
// mutual exclusion: a tick that fires mid-cycle is dropped, not queued.
type tracker struct {
	contract string
	inFlight atomic.Bool

	mu       sync.Mutex
	state    State
	cursor   uint64
	lastPoll time.Time
	lastErr  string
}

// New creates an Engine. A nil cache disables read-path invalidation.
func New(cfg Config, client ledger.Client, store storage.Store, mapper *StatusMapper, strategy retry.Strategy, c cache.Cache) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = 30 * time.Second
	}
	if strategy == nil {
		strategy = retry.NewNoRetryStrategy()
	}
	if c == nil {
		c = cache.Noop{}
	}

	e := &Engine{
		cfg:      cfg,
		client:   client,
		store:    store,
		mapper:   mapper,
		strategy: strategy,
		cache:    c,
		trackers: make(map[string]*tracker, len(cfg.Contracts)),
	}
	for _, contract := range cfg.Contracts {
		e.trackers[contract] = &tracker{contract: contract, state: StateIdle}
	}
	return e
}

// Run starts one poll loop per tracked contract and blocks until the
// context is cancelled. An in-flight apply finishes before shutdown so a
// batch is never left half-applied with an unpersisted cursor.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range e.trackers {
		t := t
		g.Go(func() error {
			return e.runContract(ctx, t)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Engine) runContract(ctx context.Context, t *tracker) error {
	if err := e.bootstrapCursor(ctx, t); err != nil {
		return fmt.Errorf("failed to bootstrap cursor for %s: %w", t.contract, err)
	}

	slog.Info("Contract poll loop started",
		"contract", t.contract,
		"cursor", t.getCursor(),
		"interval", e.cfg.PollInterval,
	)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Contract poll loop stopping", "contract", t.contract)
			return ctx.Err()
		case <-ticker.C:
			// Errors here are already counted and recorded on the
			// tracker; the next tick retries
			_ = e.PollOnce(ctx, t.contract)
		}
	}
}

// bootstrapCursor restores a persisted cursor, or starts from the
// ledger's current head when the contract has never been synced (history
// before tracking began has no off-chain meaning).
func (e *Engine) bootstrapCursor(ctx context.Context, t *tracker) error {
	cursor, err := e.store.GetCursor(ctx, t.contract)
	if err != nil {
		return err
	}
	if cursor == 0 {
		op := func() error {
			latest, lerr := e.client.LatestSequence(ctx)
			if lerr != nil {
				return lerr
			}
			cursor = latest
			return nil
		}
		if err := e.strategy.Execute(ctx, op); err != nil {
			return err
		}
	}
	t.setCursor(cursor)
	metrics.CurrentCursor.WithLabelValues(t.contract).Set(float64(cursor))
	return nil
}

// PollOnce runs a single poll cycle for the contract. If a cycle is
// already in flight the call is dropped and returns nil.
func (e *Engine) PollOnce(ctx context.Context, contract string) error {
	t, ok := e.trackers[contract]
	if !ok {
		return fmt.Errorf("contract not tracked: %s", contract)
	}

	if !t.inFlight.CompareAndSwap(false, true) {
		metrics.TicksSkipped.Inc()
		slog.Debug("Poll tick dropped, cycle still in flight", "contract", contract)
		return nil
	}
	defer t.inFlight.Store(false)

	err := e.cycle(ctx, t)
	if err != nil {
		t.setError(err)
		slog.Error("Poll cycle failed", "contract", contract, "error", err)
	} else {
		t.clearError()
	}
	return err
}

func (e *Engine) cycle(ctx context.Context, t *tracker) error {
	t.setState(StatePolling)
	defer t.setState(StateIdle)

	pollStart := time.Now()
	var events []models.SyncEvent
	poll := func() error {
		qctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()

		evs, err := e.client.QueryEvents(qctx, t.contract, t.getCursor()+1)
		if err != nil {
			return err
		}
		events = evs
		return nil
	}
	if err := e.strategy.Execute(ctx, poll); err != nil {
		metrics.SyncErrors.WithLabelValues("poll").Inc()
		return fmt.Errorf("polling %s: %w", t.contract, err)
	}
	metrics.PollDuration.Observe(time.Since(pollStart).Seconds())
	t.touchPoll()

	if len(events) == 0 {
		metrics.PollCycles.Inc()
		return nil
	}

	t.setState(StateProcessing)
	slog.Debug("Processing event batch",
		"contract", t.contract,
		"events", len(events),
		"from", events[0].Sequence,
		"to", events[len(events)-1].Sequence,
	)

	t.setState(StateApplying)
	applyStart := time.Now()

	// Once a batch enters the applying phase it must run to completion
	// even across shutdown: store writes and the cursor update are
	// detached from the run context's cancellation and bounded only by
	// the per-event apply timeout.
	applyCtx := context.WithoutCancel(ctx)

	// Events are applied in ledger order. A skip advances the cursor; a
	// genuine apply failure stops the batch so everything from the
	// failed event on is redelivered next tick.
	lastApplied := t.getCursor()
	var applyErr error
	for _, ev := range events {
		err := e.applyEvent(applyCtx, ev)
		if err == nil {
			lastApplied = ev.Sequence
			continue
		}

		var skip *EventSkippedError
		if errors.As(err, &skip) {
			metrics.EventsSkipped.WithLabelValues(skip.Reason).Inc()
			slog.Warn("Event skipped",
				"event_id", ev.EventID,
				"event_type", ev.EventType,
				"reason", skip.Reason,
				"error", skip.Err,
			)
			lastApplied = ev.Sequence
			continue
		}

		metrics.SyncErrors.WithLabelValues("apply").Inc()
		applyErr = fmt.Errorf("applying event %s: %w", ev.EventID, err)
		break
	}
	metrics.ApplyDuration.Observe(time.Since(applyStart).Seconds())

	if lastApplied > t.getCursor() {
		cctx, cancel := context.WithTimeout(applyCtx, e.cfg.ApplyTimeout)
		err := e.store.SetCursor(cctx, t.contract, lastApplied)
		cancel()
		if err != nil {
			metrics.SyncErrors.WithLabelValues("cursor").Inc()
			return fmt.Errorf("persisting cursor for %s: %w", t.contract, err)
		}
		t.setCursor(lastApplied)
		metrics.CurrentCursor.WithLabelValues(t.contract).Set(float64(lastApplied))
	}

	metrics.PollCycles.Inc()
	return applyErr
}

// EventSkippedError wraps per-event conditions that must not block the
// batch: unknown event types, unknown raw statuses, malformed payloads,
// and updates referencing records that do not exist.
type EventSkippedError struct {
	Reason string
	Err    error
}

func (e *EventSkippedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("event skipped (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("event skipped (%s)", e.Reason)
}

func (e *EventSkippedError) Unwrap() error { return e.Err }

func (e *Engine) applyEvent(ctx context.Context, ev models.SyncEvent) error {
	op, ok := operations[ev.EventType]
	if !ok {
		return &EventSkippedError{Reason: "unknown_event_type"}
	}

	// One timeout covers the idempotency check, the store update, and
	// the applied mark; the caller's context carries no deadline of its
	// own during the applying phase
	actx, cancel := context.WithTimeout(ctx, e.cfg.ApplyTimeout)
	defer cancel()

	applied, err := e.store.EventApplied(actx, ev.EventID)
	if err != nil {
		return err
	}
	if applied {
		// At-least-once redelivery; the first apply already took effect
		return &EventSkippedError{Reason: "already_applied"}
	}

	if err := op.apply(actx, e, ev); err != nil {
		if reason, ok := skipReason(err); ok {
			return &EventSkippedError{Reason: reason, Err: err}
		}
		return err
	}

	if err := e.store.MarkEventApplied(actx, ev.EventID, ev.ContractAddress, ev.Sequence); err != nil {
		return err
	}

	metrics.EventsApplied.WithLabelValues(ev.EventType).Inc()
	return nil
}

// skipReason classifies errors that poison a single event but not the
// batch. Store failures are deliberately absent: those block the cursor.
func skipReason(err error) (string, bool) {
	var validation *integrity.ValidationError
	if errors.As(err, &validation) {
		return "invalid_payload", true
	}
	var unknown *UnknownStatusError
	if errors.As(err, &unknown) {
		return "unknown_status", true
	}
	if errors.Is(err, storage.ErrNotFound) {
		return "record_not_found", true
	}
	return "", false
}

// AnchorRecordHash submits a record's integrity hash to the ledger.
// Optional: backends without submission support return
// ledger.ErrSubmitUnavailable.
func (e *Engine) AnchorRecordHash(ctx context.Context, recordID, hash string) (string, error) {
	return e.client.SubmitContractCall(ctx, "anchor_hash", map[string]any{
		"record_id": recordID,
		"hash":      hash,
	})
}

// Status reports the per-contract sync state for the operational API.
func (e *Engine) Status() []models.ContractSyncStatus {
	out := make([]models.ContractSyncStatus, 0, len(e.trackers))
	for _, t := range e.trackers {
		out = append(out, t.status())
	}
	return out
}

// Cursor returns the in-memory cursor of a tracked contract, for tests
// and handlers.
func (e *Engine) Cursor(contract string) uint64 {
	t, ok := e.trackers[contract]
	if !ok {
		return 0
	}
	return t.getCursor()
}

// ---- tracker accessors ----

func (t *tracker) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *tracker) setCursor(c uint64) {
	t.mu.Lock()
	t.cursor = c
	t.mu.Unlock()
}

func (t *tracker) getCursor() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

func (t *tracker) touchPoll() {
	t.mu.Lock()
	t.lastPoll = time.Now()
	t.mu.Unlock()
}

func (t *tracker) setError(err error) {
	t.mu.Lock()
	t.state = StateError
	t.lastErr = err.Error()
	t.mu.Unlock()
}

func (t *tracker) clearError() {
	t.mu.Lock()
	t.lastErr = ""
	t.mu.Unlock()
}

func (t *tracker) status() models.ContractSyncStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return models.ContractSyncStatus{
		ContractAddress: t.contract,
		State:           string(t.state),
		Cursor:          t.cursor,
		LastPollAt:      t.lastPoll,
		LastError:       t.lastErr,
	}
}
