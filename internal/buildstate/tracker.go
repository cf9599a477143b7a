package buildstate

import (
	"context"
	"sync"
	"time"

	"mail2alert/internal/logger"
	"mail2alert/pkg/metrics"
	"mail2alert/pkg/models"
)

var snapshotTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
}

// Tracker reconciles literal events with stored history.
//
// Writes to one key are serialized by a per-key mutex, covering both the event path
// and snapshot ingestion. A snapshot entry is not applied when the event path updated
// the key after that entry's lastBuildTime.
type Tracker struct {
	store  Store
	logger logger.Logger
	now    func() time.Time
	// loc applies to cctray times without a zone; GoCD writes those in server local time.
	loc *time.Location

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	metaMu        sync.Mutex
	snapshotTimes map[string]string
	eventTimes    map[string]time.Time
}

func NewTracker(store Store, log logger.Logger) *Tracker {
	return &Tracker{
		store:         store,
		logger:        log,
		now:           time.Now,
		loc:           time.Local,
		locks:         make(map[string]*sync.Mutex),
		snapshotTimes: make(map[string]string),
		eventTimes:    make(map[string]time.Time),
	}
}

func (t *Tracker) lock(key string) func() {
	t.locksMu.Lock()
	mu, ok := t.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		t.locks[key] = mu
	}
	t.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// Correct rewrites msg.Event when history shows the literal wording is wrong, then
// records the resulting state. Messages without pipeline or event are left untouched.
func (t *Tracker) Correct(ctx context.Context, msg *models.Message) {
	if !msg.HasPipeline() || msg.Event.IsNone() {
		return
	}

	key := msg.StateKey()
	unlock := t.lock(key)
	defer unlock()

	old, err := t.store.Get(ctx, key)
	if err != nil {
		t.logger.WarnwCtx(ctx, "Failed to read build state, accepting literal event",
			"key", key,
			"event", msg.Event.String(),
			"error", err,
		)
		old = Unknown
	}

	literal := msg.Event
	final := Expected(old, literal)
	if final != literal {
		t.logger.WarnwCtx(ctx, "Event contradicts build history, correcting",
			"key", key,
			"previous_state", old.String(),
			"literal_event", literal.String(),
			"corrected_event", final.String(),
		)
		metrics.EventCorrectionsTotal.WithLabelValues(literal.String(), final.String()).Inc()
		msg.Event = final
	}

	state := StateFor(final)
	if state == Unknown {
		return
	}

	if err := t.store.Set(ctx, key, state); err != nil {
		t.logger.WarnwCtx(ctx, "Failed to store build state",
			"key", key,
			"state", state.String(),
			"error", err,
		)
		return
	}

	t.metaMu.Lock()
	t.eventTimes[key] = t.now()
	t.metaMu.Unlock()
}

// Expected applies the correction policy: with known history, a report is turned into
// a transition (FIXED or BREAKS) when the history says one happened. Every other
// disagreement keeps the literal event.
func Expected(old State, literal models.Event) models.Event {
	if old == Unknown {
		return literal
	}

	expected := StateFor(literal).After(old)
	if expected == literal {
		return literal
	}

	switch expected {
	case models.EventFixed, models.EventBreaks:
		return expected
	default:
		return literal
	}
}

// IngestSnapshot seeds stage states from a cctray snapshot.
func (t *Tracker) IngestSnapshot(ctx context.Context, statuses []StageStatus) int {
	applied := 0
	for _, status := range statuses {
		if t.ingestOne(ctx, status) {
			applied++
		}
	}
	return applied
}

func (t *Tracker) ingestOne(ctx context.Context, status StageStatus) bool {
	state := ParseState(status.LastBuildStatus)
	if state == Unknown {
		metrics.SnapshotEntriesTotal.WithLabelValues("ignored").Inc()
		return false
	}

	key := status.Key()
	unlock := t.lock(key)
	defer unlock()

	t.metaMu.Lock()
	prevTime := t.snapshotTimes[key]
	eventTime, hasEvent := t.eventTimes[key]
	t.metaMu.Unlock()

	if status.LastBuildTime <= prevTime {
		metrics.SnapshotEntriesTotal.WithLabelValues("stale").Inc()
		return false
	}

	if hasEvent {
		if buildTime, ok := parseSnapshotTime(status.LastBuildTime, t.loc); ok && eventTime.After(buildTime) {
			t.metaMu.Lock()
			t.snapshotTimes[key] = status.LastBuildTime
			t.metaMu.Unlock()
			metrics.SnapshotEntriesTotal.WithLabelValues("event_newer").Inc()
			return false
		}
	}

	if err := t.store.Set(ctx, key, state); err != nil {
		t.logger.WarnwCtx(ctx, "Failed to store snapshot state",
			"key", key,
			"error", err,
		)
		return false
	}

	t.metaMu.Lock()
	t.snapshotTimes[key] = status.LastBuildTime
	t.metaMu.Unlock()

	metrics.SnapshotEntriesTotal.WithLabelValues("applied").Inc()
	t.logger.DebugwCtx(ctx, "Set state from snapshot",
		"key", key,
		"state", state.String(),
		"last_build_time", status.LastBuildTime,
	)
	return true
}

// Snapshot returns every stored state for reporting.
func (t *Tracker) Snapshot(ctx context.Context) (map[string]State, error) {
	return t.store.All(ctx)
}

func parseSnapshotTime(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range snapshotTimeLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
