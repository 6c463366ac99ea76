package message

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAllocationFailed indicates that the counter transaction could not be
// committed within the retry budget.
var ErrAllocationFailed = errors.New("message: index allocation failed")

const allocatorRetryLimit = 3

// AllocatorConfig describes the dependencies of the sequence allocator.
type AllocatorConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Allocator issues strictly increasing message indexes from a persistent
// counter row. Correctness under concurrency rests on the store's
// serializable transactions, not in-process locking, so allocation stays
// correct across multiple service processes sharing the same database file.
type Allocator struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAllocator constructs the sequence allocator.
func NewAllocator(cfg AllocatorConfig) (*Allocator, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Allocator{db: cfg.Database, logger: logger}, nil
}

// Next allocates and returns the next message index. The read-modify-write of
// the counter row runs in a single transaction under a row lock; a value
// returned here is never returned to any other caller and no value is ever
// skipped. Aborted transactions are retried up to the retry budget, after
// which ErrAllocationFailed wraps the last cause.
func (a *Allocator) Next(ctx context.Context) (Index, error) {
	var lastErr error
	for attempt := 0; attempt < allocatorRetryLimit; attempt++ {
		var issued int64
		txErr := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var counter Counter
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("name = ?", CounterName).
				Take(&counter).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				counter = Counter{Name: CounterName, LastIssued: 0}
				if err := tx.Create(&counter).Error; err != nil {
					return err
				}
			} else if err != nil {
				return err
			}

			issued = counter.LastIssued + 1
			return tx.Model(&Counter{}).
				Where("name = ?", CounterName).
				Update("last_issued", issued).Error
		})
		if txErr == nil {
			return Index(issued), nil
		}
		lastErr = txErr
		a.logger.Warn("counter transaction aborted",
			zap.Int("attempt", attempt+1),
			zap.Error(txErr))
	}
	a.logger.Error("index allocation exhausted retries", zap.Error(lastErr))
	return 0, fmt.Errorf("%w: %v", ErrAllocationFailed, lastErr)
}

// LastIssued peeks the counter without consuming a slot. The value reflects
// allocations, not persisted records; when a record write fails after its
// allocation succeeded, this runs ahead of Store.LatestStoredIndex.
func (a *Allocator) LastIssued(ctx context.Context) (int64, error) {
	var counter Counter
	err := a.db.WithContext(ctx).Where("name = ?", CounterName).Take(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		a.logger.Error("counter peek failed", zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return counter.LastIssued, nil
}
