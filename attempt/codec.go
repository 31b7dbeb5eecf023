package attempt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	recordFormatVersionCurrent = 1

	// MaxIdentifierLength bounds the identifier so it fits the length prefix.
	MaxIdentifierLength = 320
)

// ErrCorruptRecord is returned when stored bytes cannot be decoded.
var ErrCorruptRecord = errors.New("attempt record corrupt")

// Encode serializes r into the compact binary layout stored by key-value
// backends:
//
//	version(1) count(4) lastAttempt(8) blockedUntil(8) expiresAt(8) recVersion(8) idLen(2) id
//
// Timestamps are unix milliseconds; a zero BlockedUntil is written as 0.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil attempt record")
	}
	if r.FailureCount < 0 {
		return nil, errors.New("attempt record failure count is negative")
	}
	if len(r.Identifier) > MaxIdentifierLength {
		return nil, errors.New("attempt record identifier too long")
	}

	var buf bytes.Buffer
	buf.Grow(39 + len(r.Identifier))

	buf.WriteByte(recordFormatVersionCurrent)

	fields := []any{
		uint32(r.FailureCount),
		toMillis(r.LastAttemptAt),
		toMillis(r.BlockedUntil),
		toMillis(r.ExpiresAt),
		r.Version,
		uint16(len(r.Identifier)),
	}
	for _, f := range fields {
		if err := binary.Write(&buf, binary.BigEndian, f); err != nil {
			return nil, err
		}
	}
	buf.WriteString(r.Identifier)

	return buf.Bytes(), nil
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if version != recordFormatVersionCurrent {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorruptRecord, version)
	}

	var (
		count                              uint32
		lastMillis, blockMillis, expMillis int64
		recVersion                         uint64
		idLen                              uint16
	)
	for _, f := range []any{&count, &lastMillis, &blockMillis, &expMillis, &recVersion, &idLen} {
		if err := binary.Read(reader, binary.BigEndian, f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
	}

	id := make([]byte, idLen)
	if _, err := io.ReadFull(reader, id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrCorruptRecord)
	}

	return &Record{
		Identifier:    string(id),
		FailureCount:  int(count),
		LastAttemptAt: fromMillis(lastMillis),
		BlockedUntil:  fromMillis(blockMillis),
		ExpiresAt:     fromMillis(expMillis),
		Version:       recVersion,
	}, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}
