package vif1

import (
	"log"
	"time"

	"github.com/pkg/errors"

	"github.com/mogaika/vif1emu/ps2/vif"
)

func (v *Vif1) worker() {
	defer close(v.done)

	var consumed int
	var stalled bool
	var retries uint64
	backoff := v.opts.StallBackoffMin

	for {
		v.ring.Commit(consumed / vif.QuadwordSize)
		consumed = 0
		v.runControls()

		if v.Err() != nil {
			// only controls and close are served until reset
			select {
			case <-v.wake:
				continue
			case <-v.quit:
				return
			}
		}

		if stalled {
			if !v.waitStall(backoff) {
				return
			}
			retries++
			v.stats.StallRetries++
			if v.opts.StallLogEvery != 0 && retries%v.opts.StallLogEvery == 0 {
				log.Printf("[vif1] %v stalled for %d retries (%v)", v.core.Code, retries, v.core.Stat)
			}
			if backoff *= 2; backoff > v.opts.StallBackoffMax {
				backoff = v.opts.StallBackoffMax
			}
		}

		run, err := v.ring.ContiguousReadableRun(!stalled)
		switch errors.Cause(err) {
		case nil:
		case ErrInterrupted:
			continue
		default:
			return
		}

		consumed, err = v.processRun(run)
		if err != nil {
			v.setFault(err)
			// fifo content can't be decoded anymore, drop it and refuse
			// writes until reset, so WaitComplete returns
			v.ring.Discard()
			consumed = 0
			stalled = false
			continue
		}

		progress := consumed != 0
		stalled = v.core.Stalled() || (!progress && v.core.Pending() && v.stream.Available() != 0)
		if progress || !stalled {
			retries = 0
			backoff = v.opts.StallBackoffMin
		}
	}
}

// processRun decodes commands from run and returns amount of consumed bytes
func (v *Vif1) processRun(run []byte) (int, error) {
	v.stream.SetSource(run)
	err := v.core.Process(&v.stream, v)
	consumed := len(run) - v.stream.Remaining()
	v.stats.ConsumedQuadwords += uint64(consumed / vif.QuadwordSize)
	if err != nil {
		return consumed, err
	}
	if consumed%vif.QuadwordSize != 0 {
		return consumed, contractViolation("consumed 0x%x bytes of 0x%x byte run", consumed, len(run))
	}
	return consumed, nil
}

func (v *Vif1) waitStall(backoff time.Duration) bool {
	t := time.NewTimer(backoff)
	defer t.Stop()
	select {
	case <-v.wake:
	case <-t.C:
	case <-v.quit:
		return false
	}
	return true
}
