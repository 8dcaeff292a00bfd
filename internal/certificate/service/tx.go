package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"certledger/internal/certificate/models"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
)

// numCertificateShards spreads in-memory transactions over independent locks
// keyed by certificate key, so registrations of different keys rarely contend.
const numCertificateShards = 128

// defaultCertificateTxTimeout is the maximum duration for a transaction.
const defaultCertificateTxTimeout = 5 * time.Second

// ShardedTx is the in-memory TxRunner. Inserts made inside the callback are
// buffered and applied only when the callback succeeds, so a failed file
// promotion leaves no record behind.
type ShardedTx struct {
	shards  [numCertificateShards]sync.Mutex
	store   Store
	timeout time.Duration
}

// NewShardedTx wraps store. timeout <= 0 uses the default.
func NewShardedTx(store Store, timeout time.Duration) *ShardedTx {
	return &ShardedTx{store: store, timeout: timeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, fn func(store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout <= 0 {
		timeout = defaultCertificateTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	buffered := &bufferedStore{base: t.store, keys: make(map[string]struct{})}
	if err := fn(buffered); err != nil {
		return err
	}
	return buffered.commit(ctx)
}

// selectShard picks a shard from the certificate key in context, or shard 0.
func (t *ShardedTx) selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(txKeyCtx).(string); ok && key != "" {
		return int(hashCertificateKey(key) % numCertificateShards)
	}
	return 0
}

// hashCertificateKey is FNV-1a.
func hashCertificateKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

type txKey struct{}

var txKeyCtx = txKey{}

func withTxKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, txKeyCtx, key)
}

// bufferedStore reads through to base and holds inserts until commit.
type bufferedStore struct {
	base    Store
	pending []*models.Record
	keys    map[string]struct{}
}

func (b *bufferedStore) Insert(ctx context.Context, record *models.Record) error {
	if _, ok := b.keys[record.Key]; ok {
		return fmt.Errorf("certificate %s: %w", record.Key, sentinel.ErrAlreadyUsed)
	}
	if _, err := b.base.FindByKey(ctx, record.Key); err == nil {
		return fmt.Errorf("certificate %s: %w", record.Key, sentinel.ErrAlreadyUsed)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}
	b.keys[record.Key] = struct{}{}
	b.pending = append(b.pending, record)
	return nil
}

func (b *bufferedStore) FindByKey(ctx context.Context, key string) (*models.Record, error) {
	for _, r := range b.pending {
		if r.Key == key {
			out := *r
			return &out, nil
		}
	}
	return b.base.FindByKey(ctx, key)
}

func (b *bufferedStore) ListByStudentName(ctx context.Context, name string) ([]*models.Record, error) {
	out, err := b.base.ListByStudentName(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, r := range b.pending {
		if r.StudentName == name {
			rec := *r
			out = append(out, &rec)
		}
	}
	return out, nil
}

func (b *bufferedStore) commit(ctx context.Context) error {
	for _, r := range b.pending {
		if err := b.base.Insert(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
