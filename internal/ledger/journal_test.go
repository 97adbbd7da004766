package ledger

import (
	"errors"
	"testing"

	"github.com/andres-erbsen/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	got []events.Event
}

func (r *recorder) Publish(ev events.Event) error {
	r.got = append(r.got, ev)
	return nil
}

func newTestJournal() (*Journal, *recorder) {
	rec := &recorder{}
	return NewJournal(clock.NewMock(), rec, zap.NewNop()), rec
}

func trade(j *Journal) events.Event {
	return &events.TradeExecutedEvent{BaseEvent: j.Base(events.TradeExecuted, solana.PublicKey{}, solana.PublicKey{})}
}

func TestAtomicCommitPublishesInOrder(t *testing.T) {
	j, rec := newTestJournal()
	balance := uint64(10)
	m := map[string]int{}

	err := j.Atomic(func() error {
		Set(j, &balance, 7)
		SetKey(j, m, "a", 1)
		j.Emit(trade(j))
		j.Emit(trade(j))
		assert.Empty(t, rec.got, "events must wait for commit")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(7), balance)
	assert.Equal(t, 1, m["a"])
	require.Len(t, rec.got, 2)
	assert.Equal(t, uint64(1), rec.got[0].Sequence())
	assert.Equal(t, uint64(2), rec.got[1].Sequence())
}

func TestAtomicRevertRestoresState(t *testing.T) {
	j, rec := newTestJournal()
	balance := uint64(10)
	m := map[string]int{"kept": 5}
	var list []int

	boom := errors.New("boom")
	err := j.Atomic(func() error {
		Set(j, &balance, 0)
		SetKey(j, m, "kept", 6)
		SetKey(j, m, "added", 1)
		Append(j, &list, 42)
		j.Emit(trade(j))
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, uint64(10), balance)
	assert.Equal(t, map[string]int{"kept": 5}, m)
	assert.Empty(t, list)
	assert.Empty(t, rec.got)
	assert.Equal(t, uint64(0), j.Seq(), "reverted calls do not consume sequence numbers")
}

func TestAtomicRevertsOnPanic(t *testing.T) {
	j, _ := newTestJournal()
	v := 1

	assert.Panics(t, func() {
		_ = j.Atomic(func() error {
			Set(j, &v, 2)
			panic("unexpected")
		})
	})
	assert.Equal(t, 1, v)
	assert.False(t, j.Active())
}

func TestNestedBeginFails(t *testing.T) {
	j, _ := newTestJournal()
	err := j.Atomic(func() error {
		return j.Begin()
	})
	require.ErrorIs(t, err, ErrTxActive)
	assert.Equal(t, KindState, KindOf(err))
}

func TestResumeContinuesAfterStoredSequence(t *testing.T) {
	j, rec := newTestJournal()
	require.NoError(t, j.Resume(40))
	require.NoError(t, j.Resume(12))
	assert.Equal(t, uint64(40), j.Seq())

	require.NoError(t, j.Atomic(func() error {
		j.Emit(trade(j))
		assert.ErrorIs(t, j.Resume(100), ErrTxActive)
		return nil
	}))
	require.Len(t, rec.got, 1)
	assert.Equal(t, uint64(41), rec.got[0].Sequence())
}

func TestEmitOutsideTransactionPublishesImmediately(t *testing.T) {
	j, rec := newTestJournal()
	v := 1
	Set(j, &v, 2)
	j.Emit(trade(j))

	assert.Equal(t, 2, v)
	require.Len(t, rec.got, 1)
}

func TestGuardBlocksReentry(t *testing.T) {
	var g Guard
	release, err := g.Enter("buy")
	require.NoError(t, err)

	_, err = g.Enter("buy")
	require.ErrorIs(t, err, ErrReentrant)

	release()
	_, err = g.Enter("buy")
	assert.NoError(t, err)
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{Fail("op", ErrUnauthorized), KindCapability},
		{Fail("op", ErrZeroAddress), KindValidation},
		{Fail("op", ErrAlreadyGraduated), KindState},
		{Failf("op", ErrSlippage, "got %d want %d", 1, 2), KindEconomic},
		{errors.New("plain"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, KindOf(tt.err), tt.err.Error())
	}

	err := Failf("router.buy", ErrSlippage, "got %d", 5)
	assert.ErrorIs(t, err, ErrSlippage)
	assert.Contains(t, err.Error(), "router.buy")
}

func TestPairAddressIsSymmetric(t *testing.T) {
	a := solana.PublicKeyFromBytes(sha256Sum("a"))
	b := solana.PublicKeyFromBytes(sha256Sum("b"))

	ab, err := PairAddress(DefaultProgramID, a, b)
	require.NoError(t, err)
	ba, err := PairAddress(DefaultProgramID, b, a)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)

	t0, err := TokenAddress(DefaultProgramID, a, 0)
	require.NoError(t, err)
	t1, err := TokenAddress(DefaultProgramID, a, 1)
	require.NoError(t, err)
	assert.NotEqual(t, t0, t1)
}
