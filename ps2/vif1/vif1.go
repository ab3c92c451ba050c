// Package vif1 emulates VIF1, DMA fed front end of vector unit 1.
//
// DMA side writes quadwords into ring buffer, dedicated goroutine decodes
// VIF command stream from it. DIRECT/DIRECTHL payload goes to GIF PATH2,
// everything else goes into vector unit through base vif logic.
package vif1

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mogaika/vif1emu/ps2/ee"
	"github.com/mogaika/vif1emu/ps2/gif"
	"github.com/mogaika/vif1emu/ps2/vif"
	"github.com/mogaika/vif1emu/utils"
)

const (
	Number = 1

	STATE_PATH_FORMAT                 = "vpu/vif1_%d.yaml"
	STATE_REGS_BASE                   = "BASE"
	STATE_REGS_TOP                    = "TOP"
	STATE_REGS_TOPS                   = "TOPS"
	STATE_REGS_OFST                   = "OFST"
	STATE_REGS_DIRECTQWORDBUFFER      = "directQwordBuffer"
	STATE_REGS_DIRECTQWORDBUFFERINDEX = "directQwordBufferIndex"
)

type GIF interface {
	TryAcquirePath(path int) bool
	// Returns amount of consumed bytes, multiple of quadword and not more than offered
	ProcessPackets(data []byte, meta gif.PacketMetadata) int
	SetPath3Masked(masked bool)
}

// GS is source of local to host image transfers
type GS interface {
	ReadImageData(dst []byte)
}

type Options struct {
	RingCapacity int // quadwords
	DirectPath   int

	// Retry delay of stalled command grows from min to max
	StallBackoffMin time.Duration
	StallBackoffMax time.Duration
	// Log every n-th retry of the same stall, 0 disables
	StallLogEvery uint64
}

func DefaultOptions() Options {
	return Options{
		RingCapacity:    0x1000,
		DirectPath:      gif.PATH2,
		StallBackoffMin: 20 * time.Microsecond,
		StallBackoffMax: 2 * time.Millisecond,
		StallLogEvery:   1000,
	}
}

type Stats struct {
	ReceivedQuadwords uint64
	ShortWrites       uint64
	ConsumedQuadwords uint64
	DirectQuadwords   uint64
	StallRetries      uint64
	MicroPrograms     uint64
}

// Registers is copy of unit visible state
type Registers struct {
	BASE uint32
	OFST uint32
	TOP  uint32
	TOPS uint32

	DirectQwordBuffer      [vif.QuadwordSize]byte
	DirectQwordBufferIndex uint32

	Stat  vif.Stat
	Code  vif.VifCode
	Imm   uint32
	Cycle uint32
	Mode  uint32
	Mask  uint32
	Mark  uint32
	Itop  uint32
	Itops uint32
	Row   [4]uint32
	Col   [4]uint32

	PendingMicroProgram     bool
	PendingMicroProgramAddr uint32
}

type control struct {
	fn   func() error
	done chan error
}

type Vif1 struct {
	opts Options
	mem  *ee.Memory
	gif  GIF
	gs   GS
	vu   vif.VectorUnit

	// owned by worker goroutine
	core   *vif.Core
	stream vif.Stream
	base   uint32
	ofst   uint32
	top    uint32
	tops   uint32

	directQword      [vif.QuadwordSize]byte
	directQwordIndex uint32
	stats            Stats

	ring *RingBuffer

	received    uint64 // atomic
	shortWrites uint64 // atomic

	ctlMu    sync.Mutex
	controls []control

	faultMu sync.Mutex
	fault   error

	wake      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newVif1(mem *ee.Memory, g GIF, gs GS, vu vif.VectorUnit, opts Options) *Vif1 {
	v := &Vif1{
		opts: opts,
		mem:  mem,
		gif:  g,
		gs:   gs,
		vu:   vu,
		ring: NewRingBuffer(opts.RingCapacity),
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	v.core = vif.NewCore(Number, vu, v)
	return v
}

// New creates unit and starts its goroutine, Close must be called to stop it
func New(mem *ee.Memory, g GIF, gs GS, vu vif.VectorUnit, opts Options) *Vif1 {
	v := newVif1(mem, g, gs, vu, opts)
	go v.worker()
	return v
}

// Close stops goroutine and waits for it
func (v *Vif1) Close() {
	v.closeOnce.Do(func() {
		close(v.quit)
		v.ring.Close()
	})
	<-v.done
}

// Kick wakes stalled goroutine, call it after VU finished or GIF path was released
func (v *Vif1) Kick() {
	select {
	case v.wake <- struct{}{}:
	default:
	}
}

// Busy reports that ring buffer still has data for processing
func (v *Vif1) Busy() bool {
	return v.ring.Busy()
}

func (v *Vif1) Ring() *RingBuffer {
	return v.ring
}

// Err returns contract violation which stopped command processing
func (v *Vif1) Err() error {
	v.faultMu.Lock()
	defer v.faultMu.Unlock()
	return v.fault
}

func (v *Vif1) setFault(err error) {
	v.faultMu.Lock()
	defer v.faultMu.Unlock()
	if v.fault == nil {
		v.fault = err
		log.Printf("[vif1] processing stopped: %v\n%s", err, utils.SDump(v.registers()))
	}
}

// control runs fn on worker goroutine between two command invocations
func (v *Vif1) control(fn func() error) error {
	select {
	case <-v.done:
		return ErrClosed
	default:
	}

	c := control{fn: fn, done: make(chan error, 1)}
	v.ctlMu.Lock()
	v.controls = append(v.controls, c)
	v.ctlMu.Unlock()

	v.ring.Interrupt()
	v.Kick()

	select {
	case err := <-c.done:
		return err
	case <-v.done:
		return ErrClosed
	}
}

func (v *Vif1) runControls() {
	v.ctlMu.Lock()
	controls := v.controls
	v.controls = nil
	v.ctlMu.Unlock()

	for _, c := range controls {
		c.done <- c.fn()
	}
}

func (v *Vif1) registers() Registers {
	c := v.core
	return Registers{
		BASE:                    v.base,
		OFST:                    v.ofst,
		TOP:                     v.top,
		TOPS:                    v.tops,
		DirectQwordBuffer:       v.directQword,
		DirectQwordBufferIndex:  v.directQwordIndex,
		Stat:                    c.Stat,
		Code:                    c.Code,
		Imm:                     c.Imm,
		Cycle:                   c.Cycle,
		Mode:                    c.Mode,
		Mask:                    c.Mask,
		Mark:                    c.Mark,
		Itop:                    c.Itop,
		Itops:                   c.Itops,
		Row:                     c.Row,
		Col:                     c.Col,
		PendingMicroProgram:     c.PendingMicroProgram,
		PendingMicroProgramAddr: c.PendingMicroProgramAddr,
	}
}

// Registers returns state copy taken between two command invocations
func (v *Vif1) Registers() (Registers, error) {
	var regs Registers
	err := v.control(func() error {
		regs = v.registers()
		regs.Stat.SetFQC(uint32(v.ring.Size()))
		return nil
	})
	return regs, err
}

func (v *Vif1) Stats() (Stats, error) {
	var stats Stats
	err := v.control(func() error {
		stats = v.stats
		return nil
	})
	stats.ReceivedQuadwords = atomic.LoadUint64(&v.received)
	stats.ShortWrites = atomic.LoadUint64(&v.shortWrites)
	return stats, err
}

// Reset is hard reset of unit: registers, pending command and fifo are cleared
func (v *Vif1) Reset() error {
	return v.control(func() error {
		v.reset()
		return nil
	})
}

func (v *Vif1) reset() {
	v.core.Reset()
	v.stream.Reset()
	v.ring.Reset()
	v.base = 0
	v.ofst = 0
	v.top = 0
	v.tops = 0
	v.directQword = [vif.QuadwordSize]byte{}
	v.directQwordIndex = 0

	v.faultMu.Lock()
	v.fault = nil
	v.faultMu.Unlock()
}

func (v *Vif1) String() string {
	return fmt.Sprintf("Vif1{%v}", v.ring)
}
