package dma

import (
	"context"
	"encoding/binary"
	"log"
	"runtime"

	"github.com/pkg/errors"

	"github.com/mogaika/vif1emu/ps2/ee"
)

const asrDepth = 2

// Receiver is peripheral side of DMA channel
type Receiver interface {
	// Returns amount of quadwords accepted, rest must be reissued later
	ReceiveDMA(address, qwc uint32, dir Direction, tagIncluded bool) (uint32, error)
	WaitComplete()
}

type ChainStats struct {
	Tags        int
	Quadwords   uint64
	ShortWrites uint64
}

// Chain walks source chain of DMA tags starting from TADR
type Chain struct {
	mem    *ee.Memory
	target Receiver

	// Transfer tag quadword itself, VIF reads codes from its upper half
	TTE bool
	// Stop with error after this amount of tags, 0 means no limit
	MaxTags int
	// Called after every tag
	OnTag func(tadr uint32, tag DmaTag)

	tadr  uint32
	asr   []uint32
	stats ChainStats
}

func NewChain(mem *ee.Memory, target Receiver, tadr uint32) *Chain {
	return &Chain{
		mem:    mem,
		target: target,
		TTE:    true,
		tadr:   tadr,
	}
}

func (c *Chain) Stats() ChainStats {
	return c.stats
}

func (c *Chain) readTag() (DmaTag, error) {
	raw, err := c.mem.Resolve(c.tadr, 0x10)
	if err != nil {
		return 0, errors.Wrapf(err, "Failed to read tag at 0x%.8x", c.tadr)
	}
	return NewTag(binary.LittleEndian.Uint64(raw)), nil
}

func (c *Chain) transfer(ctx context.Context, addr, qwc uint32, tagIncluded bool) error {
	for qwc != 0 {
		n, err := c.target.ReceiveDMA(addr, qwc, DirFromMemory, tagIncluded)
		if err != nil {
			return err
		}
		if n > qwc {
			return errors.Errorf("receiver accepted %d of %d quadwords", n, qwc)
		}
		addr += n * 0x10
		qwc -= n
		c.stats.Quadwords += uint64(n)
		if qwc != 0 {
			c.stats.ShortWrites++
			if err := ctx.Err(); err != nil {
				return err
			}
			runtime.Gosched()
		}
	}
	return nil
}

// Run transfers whole chain and waits until receiver consumed it
func (c *Chain) Run(ctx context.Context) error {
	for {
		if c.MaxTags != 0 && c.stats.Tags >= c.MaxTags {
			return errors.Errorf("chain exceeded %d tags", c.MaxTags)
		}
		tag, err := c.readTag()
		if err != nil {
			return err
		}
		c.stats.Tags++
		if c.OnTag != nil {
			c.OnTag(c.tadr, tag)
		}

		if c.TTE {
			if err := c.transfer(ctx, c.tadr, 1, true); err != nil {
				return errors.Wrapf(err, "tag transfer %v", tag)
			}
		}

		following := c.tadr + 0x10
		qwc := uint32(tag.QWC())
		end := false

		switch tag.ID() {
		case DMA_TAG_REFE, DMA_TAG_REF, DMA_TAG_REFS:
			if err := c.transfer(ctx, tag.DataAddress(), qwc, false); err != nil {
				return errors.Wrapf(err, "%v", tag)
			}
			c.tadr = following
			end = tag.ID() == DMA_TAG_REFE
		case DMA_TAG_CNT, DMA_TAG_NEXT, DMA_TAG_CALL, DMA_TAG_RET, DMA_TAG_END:
			if err := c.transfer(ctx, following, qwc, false); err != nil {
				return errors.Wrapf(err, "%v", tag)
			}
			after := following + qwc*0x10
			switch tag.ID() {
			case DMA_TAG_CNT:
				c.tadr = after
			case DMA_TAG_NEXT:
				c.tadr = tag.DataAddress()
			case DMA_TAG_CALL:
				if len(c.asr) == asrDepth {
					return errors.Errorf("call at 0x%.8x overflows address stack", c.tadr)
				}
				c.asr = append(c.asr, after)
				c.tadr = tag.DataAddress()
			case DMA_TAG_RET:
				if len(c.asr) == 0 {
					end = true
				} else {
					c.tadr = c.asr[len(c.asr)-1]
					c.asr = c.asr[:len(c.asr)-1]
				}
			case DMA_TAG_END:
				end = true
			}
		}

		if end {
			break
		}
	}

	c.target.WaitComplete()
	log.Printf("[dma] chain done: %d tags, 0x%x quadwords, %d short writes",
		c.stats.Tags, c.stats.Quadwords, c.stats.ShortWrites)
	return nil
}
