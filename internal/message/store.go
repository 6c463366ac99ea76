package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateIndex indicates that a record already exists at the index.
	ErrDuplicateIndex = errors.New("message: duplicate index")
	// ErrNotFound indicates that no record exists at the requested index.
	ErrNotFound = errors.New("message: record not found")
	// ErrEmpty indicates that the store holds no records at all.
	ErrEmpty = errors.New("message: store is empty")
	// ErrStorageUnavailable indicates a backing store failure.
	ErrStorageUnavailable = errors.New("message: storage unavailable")

	errMissingDatabase = errors.New("message: database handle is required")
	noOpLogger         = zap.NewNop()
)

// StoreConfig describes the dependencies of the message store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// IDProvider issues identifiers for message documents.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// Store persists and retrieves write-once message records keyed by index.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewStore constructs the message store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Store{
		db:         cfg.Database,
		clock:      clock,
		idProvider: idProvider,
		logger:     logger,
	}, nil
}

// Put persists a new record at the given index. The record is either fully
// present with all fields set or fully absent; a second record at the same
// index fails with ErrDuplicateIndex.
func (s *Store) Put(ctx context.Context, index Index, text Text, image ImagePayload) (Record, error) {
	docID, err := s.idProvider.NewID()
	if err != nil {
		s.logger.Error("message id generation failed", zap.Error(err))
		return Record{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	record := Record{
		DocID:            docID,
		Idx:              index.Int64(),
		TextData:         text.String(),
		ImageData:        image.String(),
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return Record{}, fmt.Errorf("%w: %d", ErrDuplicateIndex, index.Int64())
		}
		s.logger.Error("message insert failed", zap.Int64("index", index.Int64()), zap.Error(err))
		return Record{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return record, nil
}

// GetByIndex returns the record stored at the given index.
func (s *Store) GetByIndex(ctx context.Context, index int64) (Record, error) {
	var record Record
	err := s.db.WithContext(ctx).Where("idx = ?", index).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, fmt.Errorf("%w: %d", ErrNotFound, index)
	}
	if err != nil {
		s.logger.Error("message lookup failed", zap.Int64("index", index), zap.Error(err))
		return Record{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return record, nil
}

// GetLatest returns the record with the maximum index across all stored
// records, or ErrEmpty when nothing has been stored.
func (s *Store) GetLatest(ctx context.Context) (Record, error) {
	var record Record
	err := s.db.WithContext(ctx).Order("idx DESC").Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrEmpty
	}
	if err != nil {
		s.logger.Error("latest message lookup failed", zap.Error(err))
		return Record{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return record, nil
}

// LatestStoredIndex returns the maximum index over actually persisted
// records. It is authoritative for "what was the last message saved" even if
// the allocator counter has run ahead of the record set.
func (s *Store) LatestStoredIndex(ctx context.Context) (int64, error) {
	row := s.db.WithContext(ctx).Model(&Record{}).Select("MAX(idx)").Row()
	var maxIndex sql.NullInt64
	if err := row.Scan(&maxIndex); err != nil {
		s.logger.Error("latest stored index query failed", zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !maxIndex.Valid {
		return 0, ErrEmpty
	}
	return maxIndex.Int64, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "unique") || strings.Contains(text, "duplicate")
}
