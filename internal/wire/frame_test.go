package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msgs := [][]byte{[]byte("a"), bytes.Repeat([]byte{0x42}, 1000)}
	for _, m := range msgs {
		if err := WriteFrame(&buf, m); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if got := buf.Bytes()[:4]; !bytes.Equal(got, []byte{0, 0, 0, 1}) {
		t.Errorf("prefix = %v, want big-endian 1", got)
	}

	for i, want := range msgs {
		got, err := ReadFrame(&buf, 0)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d mismatch", i)
		}
	}
	if _, err := ReadFrame(&buf, 0); err != io.EOF {
		t.Errorf("ReadFrame at end = %v, want io.EOF", err)
	}
}

func TestReadFrameErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		max     int
		wantErr error
	}{
		{"zero size", []byte{0, 0, 0, 0}, 0, ErrInvalidFrameSize},
		{"negative size", []byte{0xff, 0xff, 0xff, 0xff}, 0, ErrInvalidFrameSize},
		{"too large", []byte{0, 0, 1, 0}, 16, ErrFrameTooLarge},
		{"short body", []byte{0, 0, 0, 4, 1, 2}, 0, io.ErrUnexpectedEOF},
		{"short prefix", []byte{0, 0}, 0, io.ErrUnexpectedEOF},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tc.in), tc.max)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ReadFrame() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}
