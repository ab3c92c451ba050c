package vif1

import (
	"fmt"
	"sync"

	"github.com/mogaika/vif1emu/ps2/vif"
)

// RingBuffer is fixed capacity fifo of quadwords between DMA and VIF goroutine.
// All index math stays here, users see only non wrapping runs.
type RingBuffer struct {
	mu      sync.Mutex
	hasData *sync.Cond
	drained *sync.Cond

	buf      []byte
	capacity int

	writePos int
	readPos  int
	size     int

	processing  bool
	closed      bool
	interrupted bool
	discard     bool
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		panic(fmt.Sprintf("ring buffer capacity %d", capacity))
	}
	r := &RingBuffer{
		buf:      make([]byte, capacity*vif.QuadwordSize),
		capacity: capacity,
	}
	r.hasData = sync.NewCond(&r.mu)
	r.drained = sync.NewCond(&r.mu)
	return r
}

func (r *RingBuffer) Capacity() int {
	return r.capacity
}

func (r *RingBuffer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Busy is set by writes and cleared when buffer drains
func (r *RingBuffer) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processing
}

// TryWrite copies as many whole quadwords of data as fit and returns their amount.
// It never waits for free space.
func (r *RingBuffer) TryWrite(data []byte) int {
	if len(data)%vif.QuadwordSize != 0 {
		panic(fmt.Sprintf("ring buffer write of %d bytes", len(data)))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.discard {
		return 0
	}

	units := len(data) / vif.QuadwordSize
	if available := r.capacity - r.size; units > available {
		units = available
	}
	if units == 0 {
		return 0
	}

	first := r.capacity - r.writePos
	if first > units {
		first = units
	}
	copy(r.buf[r.writePos*vif.QuadwordSize:], data[:first*vif.QuadwordSize])
	if split := units - first; split != 0 {
		copy(r.buf, data[first*vif.QuadwordSize:units*vif.QuadwordSize])
	}

	r.writePos = (r.writePos + units) % r.capacity
	r.size += units
	r.processing = true
	r.hasData.Signal()
	return units
}

// ContiguousReadableRun returns longest run from read position that doesn't wrap.
// Returned slice is a view into buffer, valid until it is committed.
// With block it waits for data, ErrClosed and ErrInterrupted end waiting.
func (r *RingBuffer) ContiguousReadableRun(block bool) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if r.closed {
			return nil, ErrClosed
		}
		if r.interrupted {
			r.interrupted = false
			return nil, ErrInterrupted
		}
		if r.size > 0 || !block {
			break
		}
		r.hasData.Wait()
	}

	units := r.capacity - r.readPos
	if units > r.size {
		units = r.size
	}
	start := r.readPos * vif.QuadwordSize
	end := start + units*vif.QuadwordSize
	return r.buf[start:end:end], nil
}

// Commit releases units quadwords from read position
func (r *RingBuffer) Commit(units int) {
	if units == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if units < 0 || units > r.size {
		panic(fmt.Sprintf("ring buffer commit of %d units with size %d", units, r.size))
	}
	r.readPos = (r.readPos + units) % r.capacity
	r.size -= units
	if r.size == 0 {
		r.processing = false
		r.drained.Broadcast()
	}
}

// WaitDrained blocks until everything written is committed
func (r *RingBuffer) WaitDrained() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.size != 0 && !r.closed && !r.discard {
		r.drained.Wait()
	}
}

// Interrupt makes pending or next ContiguousReadableRun return ErrInterrupted
func (r *RingBuffer) Interrupt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interrupted = true
	r.hasData.Broadcast()
}

func (r *RingBuffer) drop() {
	r.writePos = 0
	r.readPos = 0
	r.size = 0
	r.processing = false
	r.drained.Broadcast()
}

// Drop empties buffer, discarding state is kept
func (r *RingBuffer) Drop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop()
}

// Discard empties buffer and makes it refuse writes until Reset
func (r *RingBuffer) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discard = true
	r.drop()
}

func (r *RingBuffer) Discarding() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discard
}

// Reset empties buffer and accepts writes again
func (r *RingBuffer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discard = false
	r.drop()
}

// Close wakes every waiter. Closed buffer accepts nothing.
func (r *RingBuffer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.hasData.Broadcast()
	r.drained.Broadcast()
}

func (r *RingBuffer) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("RingBuffer{Capacity:0x%x; Size:0x%x; Write:0x%x; Read:0x%x}",
		r.capacity, r.size, r.writePos, r.readPos)
}
