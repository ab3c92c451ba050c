package vif

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrStreamUnderflow = errors.New("vif stream underflow")

// Stream is fifo view used by command processing.
// Source is taken by whole quadwords into staging buffer, so bytes of
// partially decoded quadword survive SetSource of the next chunk.
type Stream struct {
	src  []byte
	next int

	buf  [QuadwordSize]byte
	pos  int
	size int
}

// SetSource replaces remaining source. Staging buffer is kept.
func (s *Stream) SetSource(src []byte) {
	s.src = src
	s.next = 0
}

// Reset drops source and staged bytes
func (s *Stream) Reset() {
	s.src = nil
	s.next = 0
	s.pos = 0
	s.size = 0
}

// Remaining amount of source bytes not taken into staging buffer yet
func (s *Stream) Remaining() int {
	return len(s.src) - s.next
}

// Staged amount of bytes in staging buffer not read yet
func (s *Stream) Staged() int {
	return s.size - s.pos
}

func (s *Stream) Available() int {
	return s.Remaining() + s.Staged()
}

// Aligned reports that no staged bytes left, so source can be accessed directly
func (s *Stream) Aligned() bool {
	return s.pos == s.size
}

func (s *Stream) sync() {
	if s.pos < s.size {
		return
	}
	n := copy(s.buf[:], s.src[s.next:])
	s.next += n
	s.pos = 0
	s.size = n
}

// Read fills p completely or returns ErrStreamUnderflow without consuming anything
func (s *Stream) Read(p []byte) error {
	if len(p) > s.Available() {
		return errors.Wrapf(ErrStreamUnderflow, "read of %d bytes, %d available", len(p), s.Available())
	}
	for len(p) != 0 {
		s.sync()
		n := copy(p, s.buf[s.pos:s.size])
		s.pos += n
		p = p[n:]
	}
	return nil
}

// Skip discards amount bytes
func (s *Stream) Skip(amount int) error {
	if amount > s.Available() {
		return errors.Wrapf(ErrStreamUnderflow, "skip of %d bytes, %d available", amount, s.Available())
	}
	for amount != 0 {
		s.sync()
		n := s.size - s.pos
		if n > amount {
			n = amount
		}
		s.pos += n
		amount -= n
	}
	return nil
}

// Direct returns not staged part of source. Valid only when Aligned.
func (s *Stream) Direct() []byte {
	if !s.Aligned() {
		panic("direct access to unaligned vif stream")
	}
	return s.src[s.next:]
}

// Advance consumes quadwords returned by Direct
func (s *Stream) Advance(amount int) error {
	if amount%QuadwordSize != 0 {
		return errors.Errorf("advance of %d bytes is not quadword aligned", amount)
	}
	if amount > s.Remaining() {
		return errors.Wrapf(ErrStreamUnderflow, "advance of %d bytes, %d remaining", amount, s.Remaining())
	}
	s.next += amount
	return nil
}

func (s *Stream) String() string {
	return fmt.Sprintf("Stream{Remaining:0x%x; Staged:0x%x}", s.Remaining(), s.Staged())
}
