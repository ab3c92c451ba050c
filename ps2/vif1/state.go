package vif1

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/mogaika/vif1emu/ps2/vif"
	"github.com/mogaika/vif1emu/states"
)

// SaveState stores registers and pending DIRECT quadword. Fifo content is not saved.
func (v *Vif1) SaveState(w states.Writer) error {
	return v.control(func() error {
		return v.saveState(w)
	})
}

// LoadState restores registers and empties fifo
func (v *Vif1) LoadState(r states.Reader) error {
	return v.control(func() error {
		return v.loadState(r)
	})
}

func (v *Vif1) statePath() string {
	return fmt.Sprintf(STATE_PATH_FORMAT, Number)
}

func (v *Vif1) saveState(w states.Writer) error {
	if err := v.core.SaveState(w); err != nil {
		return errors.Wrapf(err, "Failed to save vif%d core", Number)
	}

	f := states.NewRegisterFile(v.statePath())
	f.SetRegister32(STATE_REGS_BASE, v.base)
	f.SetRegister32(STATE_REGS_TOP, v.top)
	f.SetRegister32(STATE_REGS_TOPS, v.tops)
	f.SetRegister32(STATE_REGS_OFST, v.ofst)
	f.SetRegister128(STATE_REGS_DIRECTQWORDBUFFER, states.Uint128FromBytes(v.directQword[:]))
	f.SetRegister32(STATE_REGS_DIRECTQWORDBUFFERINDEX, v.directQwordIndex)
	return w.InsertFile(f)
}

func (v *Vif1) loadState(r states.Reader) error {
	f, err := r.ReadRegisterFile(v.statePath())
	if err != nil {
		return err
	}

	var regs [5]uint32
	for i, name := range []string{
		STATE_REGS_BASE, STATE_REGS_TOP, STATE_REGS_TOPS, STATE_REGS_OFST,
		STATE_REGS_DIRECTQWORDBUFFERINDEX,
	} {
		if regs[i], err = f.GetRegister32(name); err != nil {
			return err
		}
	}
	qword, err := f.GetRegister128(STATE_REGS_DIRECTQWORDBUFFER)
	if err != nil {
		return err
	}
	if regs[4] >= vif.QuadwordSize {
		return errors.Errorf("%s %d out of range", STATE_REGS_DIRECTQWORDBUFFERINDEX, regs[4])
	}

	if err := v.core.LoadState(r); err != nil {
		return errors.Wrapf(err, "Failed to load vif%d core", Number)
	}

	v.base, v.top, v.tops, v.ofst = regs[0], regs[1], regs[2], regs[3]
	v.directQwordIndex = regs[4]
	qword.PutBytes(v.directQword[:])

	v.stream.Reset()
	v.ring.Drop()
	return nil
}
