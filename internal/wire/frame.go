package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxFrameBytes bounds a single frame when no limit is configured.
const DefaultMaxFrameBytes = 64 << 20

var (
	// ErrInvalidFrameSize is returned for a non-positive length prefix. The
	// protocol treats it as the client ending the session.
	ErrInvalidFrameSize = errors.New("invalid frame size")
	// ErrFrameTooLarge is returned when a length prefix exceeds the limit.
	ErrFrameTooLarge = errors.New("frame too large")
)

// ReadFrame reads one length-prefixed frame. A clean EOF before the prefix is
// returned as io.EOF; EOF inside a frame is io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}

	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	size := int32(binary.BigEndian.Uint32(prefix[:]))
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrameSize, size)
	}
	if int(size) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, size, maxBytes)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// WriteFrame writes msg with its length prefix.
func WriteFrame(w io.Writer, msg []byte) error {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(msg)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}
