// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("store is closed")

// Store определяет интерфейс хранилища истории событий
type Store interface {
	// Append сохраняет событие. Повторная запись того же Seq игнорируется.
	Append(ctx context.Context, rec models.Record) error
	// History возвращает события токена в порядке Seq. Нулевой адрес
	// выбирает события без токена (изменения налогов).
	History(ctx context.Context, token solana.PublicKey) ([]models.Record, error)
	// Tokens перечисляет токены, у которых есть история, в порядке первого события.
	Tokens(ctx context.Context) ([]solana.PublicKey, error)
	// LastSeq возвращает наибольший сохранённый Seq, 0 для пустого хранилища.
	// Новый журнал продолжает нумерацию с него.
	LastSeq(ctx context.Context) (uint64, error)
	Close() error
}
