// Package vpu is vector unit model used as VIF target.
// Microprograms are not executed, unit only tracks memory writes and
// run state controlled by caller.
package vpu

import (
	"sync"

	"github.com/mogaika/vif1emu/ps2/vif"
)

const (
	VU1_MICRO_MEM_SIZE = 0x4000
	VU1_DATA_MEM_SIZE  = 0x4000
)

type Vpu struct {
	mu      sync.Mutex
	running bool
	micro   []byte
	data    []byte

	started   []vif.MicroProgram
	unpacks   uint64
	onStarted func(p vif.MicroProgram)
}

func NewVpu() *Vpu {
	return &Vpu{
		micro: make([]byte, VU1_MICRO_MEM_SIZE),
		data:  make([]byte, VU1_DATA_MEM_SIZE),
	}
}

// OnMicroProgram is called from VIF goroutine when microprogram starts
func (v *Vpu) OnMicroProgram(cb func(p vif.MicroProgram)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onStarted = cb
}

func (v *Vpu) IsRunning() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.running
}

// SetRunning changes run state, unit that waits for microprogram end should be kicked after that
func (v *Vpu) SetRunning(running bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.running = running
}

func (v *Vpu) ExecuteMicroProgram(p vif.MicroProgram) {
	v.mu.Lock()
	v.started = append(v.started, p)
	cb := v.onStarted
	v.mu.Unlock()
	if cb != nil {
		cb(p)
	}
}

func (v *Vpu) WriteMicroMemory(addr uint32, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	addr &= VU1_MICRO_MEM_SIZE - 1
	copy(v.micro[addr:], data)
}

// Unpack stores raw payload, decompression of vector formats is not modeled
func (v *Vpu) Unpack(code vif.VifCode, addr uint32, payload []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	offset := (addr * 0x10) & (VU1_DATA_MEM_SIZE - 1)
	copy(v.data[offset:], payload)
	v.unpacks++
}

func (v *Vpu) MicroPrograms() []vif.MicroProgram {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]vif.MicroProgram(nil), v.started...)
}

func (v *Vpu) Unpacks() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.unpacks
}

func (v *Vpu) MicroMemory(addr, size uint32) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.micro[addr:addr+size]...)
}

func (v *Vpu) DataMemory(addr, size uint32) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.data[addr:addr+size]...)
}
