// Package pebble persists event history in a Pebble key-value store.
//
// Keys:
//
//	e/<token><seq>  msgpack record, seq big-endian so iteration is ordered
//	t/<seq><token>  token index, ordered by the token's first event
//	s/<seq>         marker for duplicate suppression; the last one is LastSeq
package pebble

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cockroachdb/pebble"
	"github.com/gagliardetto/solana-go"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
	"go.uber.org/zap"
)

const (
	prefixEvent = 'e'
	prefixToken = 't'
	prefixSeq   = 's'

	DefaultCacheSize   = 256
	DefaultOpenTimeout = 5 * time.Second
)

// Config configures the store.
type Config struct {
	Path        string
	CacheSize   int
	OpenTimeout time.Duration
}

// Store is a storage.Store on Pebble. History reads are served from an LRU
// cache that Append invalidates per token.
type Store struct {
	mu     sync.Mutex
	db     *pebble.DB
	cache  *lru.Cache[solana.PublicKey, []models.Record]
	known  map[solana.PublicKey]bool
	logger *zap.Logger
}

var _ storage.Store = (*Store)(nil)

// Open opens or creates the store at cfg.Path. While another process holds
// the directory lock Open retries with exponential backoff until
// cfg.OpenTimeout elapses.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("storage path is empty")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultOpenTimeout
	}
	logger = logger.Named("pebble").With(zap.String("path", cfg.Path))

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	notify := func(err error, d time.Duration) {
		logger.Warn("Store is busy, retrying", zap.Error(err), zap.Duration("backoff", d))
	}
	opts := &pebble.Options{Logger: pebbleLogger{logger.Sugar()}}
	db, err := backoff.Retry(ctx, func() (*pebble.DB, error) {
		return pebble.Open(cfg.Path, opts)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(cfg.OpenTimeout),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Path, err)
	}

	cache, err := lru.New[solana.PublicKey, []models.Record](cfg.CacheSize)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history cache: %w", err)
	}
	s := &Store{db: db, cache: cache, known: make(map[solana.PublicKey]bool), logger: logger}
	tokens, err := s.tokens()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, t := range tokens {
		s.known[t] = true
	}
	logger.Info("Store opened", zap.Int("tokens", len(tokens)))
	return s, nil
}

// pebbleLogger routes Pebble's own messages (WAL replay, compactions)
// through zap at debug level.
var _ pebble.Logger = pebbleLogger{}

type pebbleLogger struct {
	s *zap.SugaredLogger
}

func (l pebbleLogger) Infof(format string, args ...interface{}) {
	l.s.Debugf(format, args...)
}

func (l pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.s.Fatalf(format, args...)
}

func seqBytes(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}

func eventKey(token solana.PublicKey, seq uint64) []byte {
	k := make([]byte, 0, 1+solana.PublicKeyLength+8)
	k = append(k, prefixEvent)
	k = append(k, token[:]...)
	return append(k, seqBytes(seq)...)
}

// upperBound returns the first key after every key starting with prefix.
func upperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *Store) Append(_ context.Context, rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return storage.ErrClosed
	}

	seqKey := append([]byte{prefixSeq}, seqBytes(rec.Seq)...)
	if _, closer, err := s.db.Get(seqKey); err == nil {
		closer.Close()
		return nil
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return err
	}

	value, err := rec.Marshal()
	if err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(seqKey, nil, nil); err != nil {
		return err
	}
	if err := batch.Set(eventKey(rec.Token, rec.Seq), value, nil); err != nil {
		return err
	}
	newToken := !rec.Token.IsZero() && !s.known[rec.Token]
	if newToken {
		k := append([]byte{prefixToken}, seqBytes(rec.Seq)...)
		if err := batch.Set(append(k, rec.Token[:]...), nil, nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit record %d: %w", rec.Seq, err)
	}
	if newToken {
		s.known[rec.Token] = true
	}
	s.cache.Remove(rec.Token)
	return nil
}

func (s *Store) History(_ context.Context, token solana.PublicKey) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, storage.ErrClosed
	}
	if recs, ok := s.cache.Get(token); ok {
		return append([]models.Record(nil), recs...), nil
	}

	prefix := append([]byte{prefixEvent}, token[:]...)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var recs []models.Record
	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := models.Unmarshal(iter.Value())
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	s.cache.Add(token, recs)
	return append([]models.Record(nil), recs...), nil
}

func (s *Store) Tokens(_ context.Context) ([]solana.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, storage.ErrClosed
	}
	return s.tokens()
}

func (s *Store) tokens() ([]solana.PublicKey, error) {
	prefix := []byte{prefixToken}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []solana.PublicKey
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		out = append(out, solana.PublicKeyFromBytes(key[1+8:]))
	}
	return out, iter.Error()
}

func (s *Store) LastSeq(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, storage.ErrClosed
	}

	prefix := []byte{prefixSeq}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, iter.Error()
	}
	return binary.BigEndian.Uint64(iter.Key()[1:]), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.cache.Purge()
	return err
}
