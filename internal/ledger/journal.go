// Package ledger provides the transaction boundary shared by every component
// of the launchpad: an undo journal for state mutations, buffered event
// emission, and the reentrancy guard.
//
// A call that fails midway is unwound by running the recorded undo entries in
// reverse, and the events it emitted are dropped. Nothing outside the journal
// needs to know whether it runs inside a transaction.
package ledger

import (
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"go.uber.org/zap"
)

// Journal records undo entries and pending events for the open transaction.
type Journal struct {
	clock  clock.Clock
	pub    events.Publisher
	logger *zap.Logger

	active  bool
	undo    []func()
	pending []events.Event
	seq     uint64
}

// NewJournal creates a journal. pub may be nil, in which case committed
// events are discarded.
func NewJournal(clk clock.Clock, pub events.Publisher, logger *zap.Logger) *Journal {
	if clk == nil {
		clk = clock.New()
	}
	return &Journal{
		clock:  clk,
		pub:    pub,
		logger: logger.Named("journal"),
	}
}

// Now returns the ledger time.
func (j *Journal) Now() time.Time {
	return j.clock.Now()
}

// Clock exposes the underlying clock.
func (j *Journal) Clock() clock.Clock {
	return j.clock
}

// Active reports whether a transaction is open.
func (j *Journal) Active() bool {
	return j.active
}

// Record registers an undo entry. Outside a transaction it is a no-op.
func (j *Journal) Record(undo func()) {
	if j.active {
		j.undo = append(j.undo, undo)
	}
}

// Begin opens a transaction.
func (j *Journal) Begin() error {
	if j.active {
		return Fail("journal.begin", ErrTxActive)
	}
	j.active = true
	j.undo = j.undo[:0]
	j.pending = j.pending[:0]
	return nil
}

// Commit closes the transaction and publishes buffered events in order.
func (j *Journal) Commit() {
	if !j.active {
		return
	}
	pending := j.pending
	j.active = false
	j.undo = nil
	j.pending = nil

	for _, ev := range pending {
		j.publish(ev)
	}
}

// Revert undoes every recorded mutation in reverse order and drops pending
// events.
func (j *Journal) Revert() {
	if !j.active {
		return
	}
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.logger.Debug("Transaction reverted",
		zap.Int("undo_entries", len(j.undo)),
		zap.Int("dropped_events", len(j.pending)))
	j.active = false
	j.undo = nil
	j.pending = nil
}

// Atomic runs fn inside a transaction, committing on success and reverting
// on error or panic.
func (j *Journal) Atomic(fn func() error) (err error) {
	if err := j.Begin(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			j.Revert()
			panic(r)
		}
		if err != nil {
			j.Revert()
			return
		}
		j.Commit()
	}()
	return fn()
}

// Base allocates the next sequence number and returns an event header.
func (j *Journal) Base(t events.EventType, token, pair solana.PublicKey) events.BaseEvent {
	Set(j, &j.seq, j.seq+1)
	return events.BaseEvent{
		EventType: t,
		EventTime: j.Now(),
		Seq:       j.seq,
		Token:     token,
		Pair:      pair,
	}
}

// Emit buffers ev until commit, or publishes it immediately outside a
// transaction.
func (j *Journal) Emit(ev events.Event) {
	if !j.active {
		j.publish(ev)
		return
	}
	n := len(j.pending)
	j.pending = append(j.pending, ev)
	j.Record(func() { j.pending = j.pending[:n] })
}

// Resume continues sequence allocation after seq, so events of a new run
// do not reuse numbers a store already holds. It never moves backwards and
// must be called outside a transaction.
func (j *Journal) Resume(seq uint64) error {
	if j.active {
		return Fail("journal.resume", ErrTxActive)
	}
	if seq > j.seq {
		j.seq = seq
	}
	return nil
}

// Seq returns the last allocated sequence number.
func (j *Journal) Seq() uint64 {
	return j.seq
}

func (j *Journal) publish(ev events.Event) {
	if j.pub == nil {
		return
	}
	if err := j.pub.Publish(ev); err != nil {
		j.logger.Warn("Failed to publish event",
			zap.String("event_type", string(ev.Type())),
			zap.Uint64("seq", ev.Sequence()),
			zap.Error(err))
	}
}

// Set assigns v to *p and records the previous value.
func Set[T any](j *Journal, p *T, v T) {
	old := *p
	j.Record(func() { *p = old })
	*p = v
}

// SetKey assigns m[k] = v and records the previous entry (or its absence).
func SetKey[K comparable, V any](j *Journal, m map[K]V, k K, v V) {
	old, existed := m[k]
	j.Record(func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

// Append appends v to *s and records the truncation.
func Append[T any](j *Journal, s *[]T, v T) {
	n := len(*s)
	j.Record(func() { *s = (*s)[:n] })
	*s = append(*s, v)
}
