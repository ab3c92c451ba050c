package gif

import (
	"encoding/binary"
	"sync"
)

const quadwordSize = 0x10

// Sink receives GIF data, packet may be delivered in several chunks
type Sink interface {
	GifPacket(path int, tag GifTag, data []byte)
}

// Arbiter owns GS input and grants it to one path per packet chain.
// Path is released after packet with EOP is completed.
type Arbiter struct {
	mu          sync.Mutex
	sink        Sink
	active      int
	tag         GifTag
	remaining   uint32
	path3Masked bool

	packets uint64
}

func NewArbiter(sink Sink) *Arbiter {
	return &Arbiter{sink: sink}
}

func (a *Arbiter) TryAcquirePath(path int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if path == PATH3 && a.path3Masked {
		return false
	}
	if a.active != 0 && a.active != path {
		return false
	}
	a.active = path
	return true
}

func (a *Arbiter) ReleasePath(path int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == path {
		a.active = 0
		a.remaining = 0
	}
}

func (a *Arbiter) ActivePath() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func (a *Arbiter) SetPath3Masked(masked bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.path3Masked = masked
}

func (a *Arbiter) Path3Masked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.path3Masked
}

func (a *Arbiter) Packets() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.packets
}

// ProcessPackets consumes whole quadwords of data.
// Processing stops after end of EOP packet, so returned size can be less than offered.
func (a *Arbiter) ProcessPackets(data []byte, meta PacketMetadata) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active != meta.Path {
		return 0
	}

	pos := 0
	for len(data)-pos >= quadwordSize {
		if a.remaining == 0 {
			a.tag = NewTag(binary.LittleEndian.Uint64(data[pos:]))
			a.remaining = a.tag.DataQuadwords()
			pos += quadwordSize
		} else {
			n := uint32(len(data)-pos) / quadwordSize
			if n > a.remaining {
				n = a.remaining
			}
			if a.sink != nil {
				a.sink.GifPacket(meta.Path, a.tag, data[pos:pos+int(n)*quadwordSize])
			}
			a.remaining -= n
			pos += int(n) * quadwordSize
		}

		if a.remaining == 0 {
			a.packets++
			if a.tag.EOP() {
				a.active = 0
				break
			}
		}
	}
	return pos
}
