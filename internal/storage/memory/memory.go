// Package memory is the in-process event store used by simulations and tests.
package memory

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

// Store keeps records per token in append order.
type Store struct {
	mu      sync.RWMutex
	closed  bool
	seen    map[uint64]struct{}
	last    uint64
	history map[solana.PublicKey][]models.Record
	tokens  []solana.PublicKey
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		seen:    make(map[uint64]struct{}),
		history: make(map[solana.PublicKey][]models.Record),
	}
}

func (s *Store) Append(_ context.Context, rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	if _, ok := s.seen[rec.Seq]; ok {
		return nil
	}
	s.seen[rec.Seq] = struct{}{}
	if rec.Seq > s.last {
		s.last = rec.Seq
	}
	if _, ok := s.history[rec.Token]; !ok && !rec.Token.IsZero() {
		s.tokens = append(s.tokens, rec.Token)
	}
	s.history[rec.Token] = insert(s.history[rec.Token], rec)
	return nil
}

// insert keeps records sorted by Seq; Append may be called directly with
// records in any order.
func insert(recs []models.Record, rec models.Record) []models.Record {
	i := len(recs)
	for i > 0 && recs[i-1].Seq > rec.Seq {
		i--
	}
	recs = append(recs, models.Record{})
	copy(recs[i+1:], recs[i:])
	recs[i] = rec
	return recs
}

func (s *Store) History(_ context.Context, token solana.PublicKey) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	return append([]models.Record(nil), s.history[token]...), nil
}

func (s *Store) Tokens(_ context.Context) ([]solana.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	return append([]solana.PublicKey(nil), s.tokens...), nil
}

func (s *Store) LastSeq(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, storage.ErrClosed
	}
	return s.last, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
