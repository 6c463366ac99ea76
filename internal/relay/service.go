package relay

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pixelrelay/relay/internal/message"
	"github.com/pixelrelay/relay/internal/pixel"
	"github.com/pixelrelay/relay/internal/session"
)

var (
	// ErrInvalidInput indicates a missing required upload field.
	ErrInvalidInput = errors.New("relay: invalid input")
	// ErrNoImageAvailable indicates that no decodable image exists at the
	// receiver's current index, or that no current index was established.
	ErrNoImageAvailable = errors.New("relay: no image available")

	errMissingStore     = errors.New("relay: message store dependency required")
	errMissingAllocator = errors.New("relay: sequence allocator dependency required")
	errMissingSession   = errors.New("relay: session state dependency required")
	noOpLogger          = zap.NewNop()
)

// ServiceError carries a dotted operation code identifying where a relay
// operation failed.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew        = "relay.service.new"
	opUpload            = "relay.upload"
	opPollNew           = "relay.poll_new"
	opLatestIndex       = "relay.latest_index"
	opFetchByIndex      = "relay.fetch_by_index"
	opFetchCurrentImage = "relay.fetch_current_image"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the relay service.
type ServiceConfig struct {
	Store     *message.Store
	Allocator *message.Allocator
	Session   *session.State
	Logger    *zap.Logger
}

// Service composes the allocator, store, session state and pixel codec into
// the operations behind the HTTP surface.
type Service struct {
	store     *message.Store
	allocator *message.Allocator
	session   *session.State
	logger    *zap.Logger
}

// NewService constructs the relay service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.Allocator == nil {
		return nil, newServiceError(opServiceNew, "missing_allocator", errMissingAllocator)
	}
	if cfg.Session == nil {
		return nil, newServiceError(opServiceNew, "missing_session", errMissingSession)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		store:     cfg.Store,
		allocator: cfg.Allocator,
		session:   cfg.Session,
		logger:    logger,
	}, nil
}

// Summary is the receiver-facing shape of a stored message: the image itself
// is never inlined, only its presence.
type Summary struct {
	Text     string
	Index    int64
	HasImage bool
}

// Upload validates and persists a new message. Validation happens before any
// index is allocated, so a rejected upload never moves the counter. On
// success the session is flipped to unseen/unread as one transition.
func (s *Service) Upload(ctx context.Context, textData, imageData string) error {
	text, err := message.NewText(textData)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	image, err := message.NewImagePayload(imageData)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	index, err := s.allocator.Next(ctx)
	if err != nil {
		s.logError(opUpload, "allocation_failed", err)
		return newServiceError(opUpload, "allocation_failed", err)
	}

	if _, err := s.store.Put(ctx, index, text, image); err != nil {
		s.logError(opUpload, "store_failed", err, zap.Int64("index", index.Int64()))
		return newServiceError(opUpload, "store_failed", err)
	}

	s.session.NoteUploaded()
	s.logger.Info("message uploaded", zap.Int64("index", index.Int64()))
	return nil
}

// PollNew consumes a pending new-message notification. When a message was
// pending it becomes the receiver's current message and its summary is
// returned; at most one concurrent poller claims any given notification.
func (s *Service) PollNew(ctx context.Context) (Summary, bool, error) {
	if !s.session.HasUnseen() {
		return Summary{}, false, nil
	}

	latest, err := s.store.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, message.ErrEmpty) {
			// unseen flag with no records can only follow a failed record
			// write; report nothing pending rather than a phantom message.
			return Summary{}, false, nil
		}
		s.logError(opPollNew, "latest_lookup_failed", err)
		return Summary{}, false, newServiceError(opPollNew, "latest_lookup_failed", err)
	}

	if !s.session.ConsumeUnseen(latest.Idx) {
		return Summary{}, false, nil
	}

	return Summary{Text: latest.TextData, Index: latest.Idx, HasImage: latest.HasImage()}, true, nil
}

// LatestIndex returns the highest index among actually stored records and
// makes it the receiver's current message. message.ErrEmpty flows through
// when nothing has been stored.
func (s *Service) LatestIndex(ctx context.Context) (int64, error) {
	latest, err := s.store.LatestStoredIndex(ctx)
	if err != nil {
		if errors.Is(err, message.ErrEmpty) {
			return 0, err
		}
		s.logError(opLatestIndex, "query_failed", err)
		return 0, newServiceError(opLatestIndex, "query_failed", err)
	}
	s.session.SetCurrent(latest)
	return latest, nil
}

// LastIssuedIndex peeks the allocator counter without consuming a slot. It
// reflects allocations rather than persisted records and can run ahead of
// LatestIndex when a record write failed after its allocation.
func (s *Service) LastIssuedIndex(ctx context.Context) (int64, error) {
	return s.allocator.LastIssued(ctx)
}

// FetchByIndex looks up the record at the given index and, on a hit, makes it
// the receiver's current message.
func (s *Service) FetchByIndex(ctx context.Context, index int64) (Summary, error) {
	record, err := s.store.GetByIndex(ctx, index)
	if err != nil {
		if errors.Is(err, message.ErrNotFound) {
			return Summary{}, err
		}
		s.logError(opFetchByIndex, "lookup_failed", err, zap.Int64("index", index))
		return Summary{}, newServiceError(opFetchByIndex, "lookup_failed", err)
	}
	s.session.SetCurrent(record.Idx)
	return Summary{Text: record.TextData, Index: record.Idx, HasImage: record.HasImage()}, nil
}

// FetchCurrentImage decodes the image of the receiver's current message and
// re-encodes it as a raw RGB565 byte stream. It fails with
// ErrNoImageAvailable until a poll, latest-index query or indexed fetch has
// established a current message with a decodable image.
func (s *Service) FetchCurrentImage(ctx context.Context) ([]byte, error) {
	current, ok := s.session.Current()
	if !ok {
		return nil, ErrNoImageAvailable
	}

	record, err := s.store.GetByIndex(ctx, current)
	if err != nil {
		if errors.Is(err, message.ErrNotFound) {
			return nil, fmt.Errorf("%w: no record at index %d", ErrNoImageAvailable, current)
		}
		s.logError(opFetchCurrentImage, "lookup_failed", err, zap.Int64("index", current))
		return nil, newServiceError(opFetchCurrentImage, "lookup_failed", err)
	}
	if !record.HasImage() {
		return nil, fmt.Errorf("%w: record %d has no image", ErrNoImageAvailable, current)
	}

	raster, err := pixel.DecodeDataURI(record.ImageData)
	if err != nil {
		s.logError(opFetchCurrentImage, "decode_failed", err, zap.Int64("index", current))
		return nil, fmt.Errorf("%w: %v", ErrNoImageAvailable, err)
	}

	return pixel.EncodeRGB565(raster), nil
}

// ReadStatus reports whether the receiver has acknowledged the current message.
func (s *Service) ReadStatus() bool {
	return s.session.IsRead()
}

// MarkRead acknowledges the current message. Idempotent.
func (s *Service) MarkRead() {
	s.session.MarkRead()
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("relay service error", attrs...)
}
