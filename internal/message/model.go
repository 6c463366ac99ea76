package message

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidText indicates an empty message text payload.
	ErrInvalidText = errors.New("message: invalid text payload")
	// ErrInvalidImagePayload indicates an empty image payload.
	ErrInvalidImagePayload = errors.New("message: invalid image payload")
	// ErrInvalidIndex indicates a non-positive message index.
	ErrInvalidIndex = errors.New("message: invalid index")
)

// Index identifies a message's position in creation order. Indexes start at 1
// and are issued by the allocator exactly once per record.
type Index int64

// NewIndex validates the raw value and returns an Index.
func NewIndex(value int64) (Index, error) {
	if value <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidIndex, value)
	}
	return Index(value), nil
}

// Int64 exposes the raw index value.
func (i Index) Int64() int64 {
	return int64(i)
}

// Text represents a validated message text payload.
type Text string

// NewText validates raw input and returns a Text. Only a fully empty payload
// is rejected; whitespace is a legal message body.
func NewText(rawInput string) (Text, error) {
	if rawInput == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidText)
	}
	return Text(rawInput), nil
}

// String returns the underlying payload.
func (t Text) String() string {
	return string(t)
}

// ImagePayload represents a validated encoded image payload in data-URI form
// ("<meta>,<base64>"). The payload is stored opaquely; decoding happens only
// when the receiver requests the RGB565 rendition.
type ImagePayload string

// NewImagePayload validates raw input and returns an ImagePayload.
func NewImagePayload(rawInput string) (ImagePayload, error) {
	if strings.TrimSpace(rawInput) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidImagePayload)
	}
	return ImagePayload(rawInput), nil
}

// String returns the underlying payload.
func (p ImagePayload) String() string {
	return string(p)
}

// Record models a persisted message. Records are write-once: no update or
// delete path exists, and the index is assigned exactly once at creation.
type Record struct {
	DocID            string `gorm:"column:doc_id;primaryKey;size:190;not null"`
	Idx              int64  `gorm:"column:idx;uniqueIndex:idx_messages_idx;not null"`
	TextData         string `gorm:"column:text_data;type:text;not null"`
	ImageData        string `gorm:"column:image_data;type:text;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "messages"
}

// HasImage reports whether the record carries an image payload.
func (r Record) HasImage() bool {
	return strings.TrimSpace(r.ImageData) != ""
}

// Counter holds the allocator's persistent state. A single row named
// CounterName exists; LastIssued is mutated only inside the allocator's
// transaction.
type Counter struct {
	Name       string `gorm:"column:name;primaryKey;size:190;not null"`
	LastIssued int64  `gorm:"column:last_issued;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (Counter) TableName() string {
	return "relay_counters"
}

// CounterName is the row key of the message index counter.
const CounterName = "message_index"
