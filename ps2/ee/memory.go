// Package ee describes emotion engine memory visible to DMA controller
package ee

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	EE_RAM_SIZE = 0x2000000 // 32MB main memory
	EE_SPR_SIZE = 0x4000    // 16KB scratchpad

	// Selects scratchpad in DMA addresses
	SPR_ADDRESS_BIT = 0x80000000
)

var ErrOutOfRange = errors.New("memory access out of range")

type Memory struct {
	RAM []byte
	SPR []byte
}

func NewMemory(ramSize, sprSize uint32) (*Memory, error) {
	for _, size := range []uint32{ramSize, sprSize} {
		if size == 0 || size&(size-1) != 0 {
			return nil, errors.Errorf("memory region size 0x%x is not power of two", size)
		}
	}
	return &Memory{
		RAM: make([]byte, ramSize),
		SPR: make([]byte, sprSize),
	}, nil
}

func region(name string, mem []byte, address, size uint32) ([]byte, error) {
	address &= uint32(len(mem)) - 1
	if uint64(address)+uint64(size) > uint64(len(mem)) {
		return nil, errors.Wrapf(ErrOutOfRange, "%s access [0x%x:0x%x] over region size 0x%x",
			name, address, uint64(address)+uint64(size), len(mem))
	}
	return mem[address : address+size], nil
}

// Resolve returns span of size bytes for DMA address.
// Address gets masked into selected region, span is never wrapped around region end.
func (m *Memory) Resolve(address, size uint32) ([]byte, error) {
	if address&SPR_ADDRESS_BIT != 0 {
		return region("spr", m.SPR, address, size)
	}
	return region("ram", m.RAM, address, size)
}

func (m *Memory) String() string {
	return fmt.Sprintf("Memory{RAM:0x%x; SPR:0x%x}", len(m.RAM), len(m.SPR))
}
