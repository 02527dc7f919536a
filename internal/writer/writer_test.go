package writer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/crashline/internal/bet"
	"github.com/rickgao/crashline/internal/queue"
	"github.com/rickgao/crashline/internal/round"
)

// fakeDB records batches. Rows whose first argument is in dupes report a conflict.
type fakeDB struct {
	mu      sync.Mutex
	batches []*pgx.Batch
	dupes   map[string]bool
	err     error
}

func (f *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b)
	return &fakeResults{db: f, queued: b.QueuedQueries, err: f.err}
}

func (f *fakeDB) queries() []*pgx.QueuedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*pgx.QueuedQuery
	for _, b := range f.batches {
		out = append(out, b.QueuedQueries...)
	}
	return out
}

type fakeResults struct {
	db     *fakeDB
	queued []*pgx.QueuedQuery
	pos    int
	err    error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	q := r.queued[r.pos]
	r.pos++
	if key, ok := q.Arguments[1].(string); ok && r.db.dupes[key] {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }

type recordingObserver struct {
	mu      sync.Mutex
	batches map[string]int
	errors  map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{batches: map[string]int{}, errors: map[string]int{}}
}

func (o *recordingObserver) WriterBatch(table string, rows int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches[table] += rows
}

func (o *recordingObserver) WriterError(table string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors[table]++
}

func TestRoundWriter_FlushOnBatchSize(t *testing.T) {
	db := &fakeDB{}
	input := queue.New[RoundRecord](10)
	cfg := WriterConfig{BatchSize: 2, FlushInterval: time.Hour}
	w := NewRoundWriter(cfg, input, db, nil, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	crashed := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	input.Send(RoundRecord{InstanceID: "i1", RoundID: "r1", CrashPoint: 1.8, CrashedAt: crashed})
	input.Send(RoundRecord{InstanceID: "i1", RoundID: "r2", CrashPoint: 3.2, CrashedAt: crashed})

	deadline := time.Now().Add(time.Second)
	for len(db.queries()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	qs := db.queries()
	if len(qs) != 2 {
		t.Fatalf("queued %d queries, want 2", len(qs))
	}
	if !strings.Contains(qs[0].SQL, "INSERT INTO rounds") {
		t.Errorf("unexpected SQL %q", qs[0].SQL)
	}
	if qs[0].Arguments[1] != "r1" || qs[0].Arguments[2] != 1.8 {
		t.Errorf("arguments = %v", qs[0].Arguments)
	}
	if started, ok := qs[0].Arguments[3].(*time.Time); !ok || started != nil {
		t.Errorf("started_at = %v, want nil *time.Time", qs[0].Arguments[3])
	}

	stats := w.Stats()
	if stats.Inserts != 2 || stats.Flushes != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestBetWriter_StopFlushesRemainder(t *testing.T) {
	db := &fakeDB{}
	input := queue.New[BetRecord](10)
	obs := newRecordingObserver()
	cfg := WriterConfig{BatchSize: 100, FlushInterval: time.Hour}
	w := NewBetWriter(cfg, input, db, obs, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	input.Send(BetRecord{InstanceID: "i1", BetID: "b1", Outcome: "CASHED_OUT"})
	input.Send(BetRecord{InstanceID: "i1", BetID: "b2", Outcome: "CRASHED_OUT"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if n := len(db.queries()); n != 2 {
		t.Fatalf("queued %d queries, want 2", n)
	}
	if obs.batches[betsTable] != 2 {
		t.Errorf("observer rows = %d, want 2", obs.batches[betsTable])
	}
}

func TestBatchWriter_Conflicts(t *testing.T) {
	db := &fakeDB{dupes: map[string]bool{"b1": true}}
	input := queue.New[BetRecord](10)
	w := NewBetWriter(WriterConfig{BatchSize: 10, FlushInterval: time.Hour}, input, db, nil, nil)

	w.batch = append(w.batch, BetRecord{BetID: "b1"}, BetRecord{BetID: "b2"})
	w.flush(context.Background())

	stats := w.Stats()
	if stats.Inserts != 1 || stats.Conflicts != 1 {
		t.Errorf("stats = %+v, want 1 insert and 1 conflict", stats)
	}
}

func TestBatchWriter_ErrorCounted(t *testing.T) {
	db := &fakeDB{err: errors.New("connection refused")}
	obs := newRecordingObserver()
	input := queue.New[RoundRecord](10)
	w := NewRoundWriter(WriterConfig{BatchSize: 10, FlushInterval: time.Hour}, input, db, obs, nil)

	w.batch = append(w.batch, RoundRecord{RoundID: "r1"})
	w.flush(context.Background())

	if got := w.Stats().Errors; got != 1 {
		t.Errorf("Errors = %d, want 1", got)
	}
	if obs.errors[roundsTable] != 1 {
		t.Errorf("observer errors = %d, want 1", obs.errors[roundsTable])
	}
}

func TestBatchWriter_EmptyFlushIsNoop(t *testing.T) {
	db := &fakeDB{}
	w := NewRoundWriter(DefaultWriterConfig(), queue.New[RoundRecord](1), db, nil, nil)

	w.flush(context.Background())

	if len(db.batches) != 0 {
		t.Errorf("sent %d batches, want 0", len(db.batches))
	}
}

func TestAudit_RecordFilters(t *testing.T) {
	a := NewAudit(AuditConfig{InstanceID: "i1", Writer: DefaultWriterConfig(), BufferSize: 8}, &fakeDB{}, nil, nil)

	a.RecordRound(round.Round{ID: "r1", Phase: round.PhaseRunning})
	a.RecordRound(round.Round{ID: "r1", Phase: round.PhaseCrashed, CrashPoint: 2.1})
	a.RecordBet(bet.Bet{ID: "b1", State: bet.StateActive})
	a.RecordBet(bet.Bet{ID: "b1", State: bet.StateCashedOut, Payout: 21})
	a.RecordBet(bet.Bet{State: bet.StateCrashedOut})

	if n := a.rounds.Len(); n != 1 {
		t.Errorf("rounds queued = %d, want 1", n)
	}
	if n := a.bets.Len(); n != 1 {
		t.Errorf("bets queued = %d, want 1", n)
	}

	r, _ := a.rounds.TryReceive()
	if r.InstanceID != "i1" || r.CrashPoint != 2.1 {
		t.Errorf("round record = %+v", r)
	}
	b, _ := a.bets.TryReceive()
	if b.Outcome != "CASHED_OUT" || b.Payout != 21 {
		t.Errorf("bet record = %+v", b)
	}
}

func TestAudit_StopFlushesQueues(t *testing.T) {
	db := &fakeDB{}
	a := NewAudit(AuditConfig{InstanceID: "i1", Writer: WriterConfig{BatchSize: 50, FlushInterval: time.Hour}, BufferSize: 8}, db, nil, nil)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	a.RecordRound(round.Round{ID: "r1", Phase: round.PhaseCrashed, CrashPoint: 1.5, CrashedAt: time.Now()})
	a.RecordBet(bet.Bet{ID: "b1", RoundID: "r1", State: bet.StateCrashedOut, Multiplier: 1.5})

	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if n := len(db.queries()); n != 2 {
		t.Errorf("queued %d queries, want 2", n)
	}

	// Recording after stop is dropped, not panicking.
	a.RecordRound(round.Round{ID: "r2", Phase: round.PhaseCrashed, CrashPoint: 3})
	if a.rounds.Len() != 0 {
		t.Error("round accepted after stop")
	}
}
