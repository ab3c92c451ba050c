package vif1

import (
	"sync/atomic"

	"github.com/mogaika/vif1emu/ps2/dma"
	"github.com/mogaika/vif1emu/ps2/vif"
)

// ReceiveDMA is called by DMA channel 1. Returns amount of accepted
// quadwords, channel must reissue the rest later.
func (v *Vif1) ReceiveDMA(address, qwc uint32, dir dma.Direction, tagIncluded bool) (uint32, error) {
	if err := v.Err(); err != nil {
		return 0, err
	}
	if qwc == 0 {
		return 0, nil
	}

	if qwc > dma.MAX_QWC {
		return 0, contractViolation("vif1 dma %v of 0x%x quadwords over QWC limit", dir, qwc)
	}
	span, err := v.mem.Resolve(address, qwc*vif.QuadwordSize)
	if err != nil {
		return 0, contractViolation("vif1 dma %v: %v", dir, err)
	}

	if dir == dma.DirToMemory {
		if v.gs == nil {
			return 0, contractViolation("vif1 dma to memory without gs")
		}
		v.gs.ReadImageData(span)
		return qwc, nil
	}

	var accepted int
	if tagIncluded {
		if qwc != 1 {
			return 0, contractViolation("vif1 dma tag transfer of %d quadwords", qwc)
		}
		// lower half is dma tag itself, only upper half carries vif codes
		var qw [vif.QuadwordSize]byte
		copy(qw[8:], span[8:])
		accepted = v.ring.TryWrite(qw[:])
	} else {
		accepted = v.ring.TryWrite(span)
	}

	if accepted == 0 {
		// worker faulted after first check and fifo discards writes
		if err := v.Err(); err != nil {
			return 0, err
		}
	}

	atomic.AddUint64(&v.received, uint64(accepted))
	if uint32(accepted) != qwc {
		atomic.AddUint64(&v.shortWrites, 1)
	}
	return uint32(accepted), nil
}

// WaitComplete blocks until fifo is drained by worker
func (v *Vif1) WaitComplete() {
	v.ring.WaitDrained()
}
