package vif

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/mogaika/vif1emu/states"
)

var ErrUnknownCommand = errors.New("unknown vif command")

// Address passed to VectorUnit by MSCNT: continue from current pc
const MicroProgramContinue = 0xffffffff

type MicroProgram struct {
	Addr uint32
	Top  uint32
	Itop uint32
}

type VectorUnit interface {
	IsRunning() bool
	ExecuteMicroProgram(p MicroProgram)
	WriteMicroMemory(addr uint32, data []byte)
	Unpack(code VifCode, addr uint32, payload []byte)
}

// Executor decodes one command of concrete vif unit.
// Unit specific commands are handled there, rest goes to Core.ExecuteBase.
type Executor interface {
	ExecuteCommand(s *Stream, code VifCode) error
}

// Hooks let vif unit alter base command behaviour
type Hooks interface {
	UnpackAddress(code VifCode, addr uint32) uint32
	PrepareMicroProgram(p *MicroProgram)
}

// Core is command processing logic shared by VIF0 and VIF1
type Core struct {
	Number int

	Stat  Stat
	Code  VifCode // command in progress
	Num   uint8
	Imm   uint32 // remaining immediate of command in progress
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

	payload   []byte
	remaining uint32

	vu    VectorUnit
	hooks Hooks
}

func NewCore(number int, vu VectorUnit, hooks Hooks) *Core {
	return &Core{
		Number: number,
		vu:     vu,
		hooks:  hooks,
	}
}

func (c *Core) Reset() {
	vu, hooks, number := c.vu, c.hooks, c.Number
	*c = Core{Number: number, vu: vu, hooks: hooks}
}

// Stalled reports that command in progress waits for external event
// (microprogram end or downstream unit), not for more data
func (c *Core) Stalled() bool {
	return c.Stat.VEW()
}

// Pending reports that command in progress was not finished
func (c *Core) Pending() bool {
	return c.Stat.VEW() || c.Stat.VPS() != VPS_IDLE
}

// Process decodes commands while stream has data and nothing is stalled
func (c *Core) Process(s *Stream, exec Executor) error {
	var raw [CodeSize]byte
	for {
		if c.Stat.VEW() {
			if c.vu.IsRunning() {
				return nil
			}
			c.Stat.SetVEW(false)
			if err := exec.ExecuteCommand(s, c.Code); err != nil {
				return err
			}
			if c.Stat.VEW() {
				return nil
			}
			continue
		}

		if c.Stat.VPS() != VPS_IDLE {
			before := s.Available()
			if err := exec.ExecuteCommand(s, c.Code); err != nil {
				return err
			}
			if c.Stat.VPS() != VPS_IDLE && s.Available() == before {
				return nil
			}
			continue
		}

		if s.Available() < CodeSize {
			return nil
		}
		if err := s.Read(raw[:]); err != nil {
			return err
		}
		c.Code = NewCode(binary.LittleEndian.Uint32(raw[:]))
		c.Num = c.Code.Num()
		c.Imm = uint32(c.Code.Imm())
		c.Stat.SetMRK(false)
		if c.Code.IsIRQ() {
			c.Stat.SetINT(true)
		}
		if err := exec.ExecuteCommand(s, c.Code); err != nil {
			return err
		}
	}
}

// readPayload collects data of multi word command.
// Returns true when whole payload of size bytes is collected.
func (c *Core) readPayload(s *Stream, size uint32) (bool, error) {
	if c.Stat.VPS() == VPS_IDLE {
		c.payload = c.payload[:0]
		c.remaining = size
	}

	amount := uint32(s.Available())
	if amount > c.remaining {
		amount = c.remaining
	}
	if amount != 0 {
		start := len(c.payload)
		c.payload = append(c.payload, make([]byte, amount)...)
		if err := s.Read(c.payload[start:]); err != nil {
			return false, err
		}
		c.remaining -= amount
	}

	if c.remaining != 0 {
		c.Stat.SetVPS(VPS_WAITDATA)
		return false, nil
	}
	c.Stat.SetVPS(VPS_IDLE)
	return true, nil
}

func (c *Core) startMicroProgram(addr uint32) {
	if c.vu.IsRunning() {
		c.PendingMicroProgram = true
		c.PendingMicroProgramAddr = addr
		c.Stat.SetVEW(true)
		return
	}
	c.PendingMicroProgram = false
	c.Itop = c.Itops
	p := MicroProgram{Addr: addr, Itop: c.Itop}
	c.hooks.PrepareMicroProgram(&p)
	c.vu.ExecuteMicroProgram(p)
}

// ResumeDelayedMicroProgram starts microprogram postponed by busy VU.
// Returns true when it is still delayed.
func (c *Core) ResumeDelayedMicroProgram() bool {
	if !c.PendingMicroProgram {
		return false
	}
	if c.vu.IsRunning() {
		return true
	}
	c.startMicroProgram(c.PendingMicroProgramAddr)
	return false
}

// ExecuteBase handles commands common for all vif units
func (c *Core) ExecuteBase(s *Stream, code VifCode) error {
	if code.IsUnpack() {
		return c.unpack(s, code)
	}

	switch code.Cmd() {
	case VIF_CMD_NOP:
	case VIF_CMD_STCYCL:
		c.Cycle = uint32(code.Imm())
	case VIF_CMD_ITOP:
		c.Itops = uint32(code.Imm() & 0x3ff)
	case VIF_CMD_STMOD:
		c.Mode = uint32(code.Imm() & 0x3)
	case VIF_CMD_MARK:
		c.Mark = uint32(code.Imm())
		c.Stat.SetMRK(true)
	case VIF_CMD_FLUSHE:
		c.Stat.SetVEW(c.vu.IsRunning())
		if c.ResumeDelayedMicroProgram() {
			c.Stat.SetVEW(true)
		}
	case VIF_CMD_MSCAL, VIF_CMD_MSCALF:
		c.startMicroProgram(uint32(code.Imm()) * 8)
	case VIF_CMD_MSCNT:
		c.startMicroProgram(MicroProgramContinue)
	case VIF_CMD_STMASK:
		if done, err := c.readPayload(s, 4); err != nil || !done {
			return err
		}
		c.Mask = binary.LittleEndian.Uint32(c.payload)
	case VIF_CMD_STROW, VIF_CMD_STCOL:
		if done, err := c.readPayload(s, 16); err != nil || !done {
			return err
		}
		dst := &c.Row
		if code.Cmd() == VIF_CMD_STCOL {
			dst = &c.Col
		}
		for i := range dst {
			dst[i] = binary.LittleEndian.Uint32(c.payload[i*4:])
		}
	case VIF_CMD_MPG:
		if c.Stat.VPS() == VPS_IDLE && c.vu.IsRunning() {
			// microprogram memory can't be changed while it is executed
			c.Stat.SetVEW(true)
			return nil
		}
		size, _ := payloadSize(code, c.Num)
		if done, err := c.readPayload(s, size); err != nil || !done {
			return err
		}
		c.vu.WriteMicroMemory(uint32(code.Imm())*8, c.payload)
	default:
		return errors.Wrapf(ErrUnknownCommand, "vif%d: %v", c.Number, code)
	}
	return nil
}

// MaxPayloadSize is largest data block of one command, V4-32 UNPACK of 256 elements
const MaxPayloadSize = 256 * 16

// payloadSize returns amount of data collected by code with NUM register num,
// false for commands without payload
func payloadSize(code VifCode, num uint8) (uint32, bool) {
	if code.IsUnpack() {
		return NewUnpack(code).Size(), true
	}
	switch code.Cmd() {
	case VIF_CMD_STMASK:
		return 4, true
	case VIF_CMD_STROW, VIF_CMD_STCOL:
		return 16, true
	case VIF_CMD_MPG:
		size := uint32(num)
		if size == 0 {
			size = 256
		}
		return size * 8, true
	}
	return 0, false
}

func (c *Core) unpack(s *Stream, code VifCode) error {
	u := NewUnpack(code)
	if done, err := c.readPayload(s, u.Size()); err != nil || !done {
		return err
	}
	addr := c.hooks.UnpackAddress(code, u.Target)
	c.vu.Unpack(code, addr, c.payload)
	return nil
}

func (c *Core) statePath() string {
	return fmt.Sprintf("vpu/vif_%d.yaml", c.Number)
}

func boolToReg(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

func (c *Core) SaveState(w states.Writer) error {
	f := states.NewRegisterFile(c.statePath())
	f.SetRegister32("STAT", uint32(c.Stat))
	f.SetRegister32("CODE", uint32(c.Code))
	f.SetRegister32("NUM", uint32(c.Num))
	f.SetRegister32("IMM", c.Imm)
	f.SetRegister32("CYCLE", c.Cycle)
	f.SetRegister32("MODE", c.Mode)
	f.SetRegister32("MASK", c.Mask)
	f.SetRegister32("MARK", c.Mark)
	f.SetRegister32("ITOP", c.Itop)
	f.SetRegister32("ITOPS", c.Itops)
	f.SetRegister128("ROW", states.Uint128(c.Row))
	f.SetRegister128("COL", states.Uint128(c.Col))
	f.SetRegister32("PENDINGMPG", boolToReg(c.PendingMicroProgram))
	f.SetRegister32("PENDINGMPGADDR", c.PendingMicroProgramAddr)
	f.SetRegister32("PAYLOADREMAINING", c.remaining)
	f.SetRegister32("PAYLOADLEN", uint32(len(c.payload)))
	for i := 0; i < len(c.payload); i += QuadwordSize {
		var qw [QuadwordSize]byte
		copy(qw[:], c.payload[i:])
		f.SetRegister128(fmt.Sprintf("PAYLOAD%d", i/QuadwordSize), states.Uint128FromBytes(qw[:]))
	}
	return w.InsertFile(f)
}

func (c *Core) LoadState(r states.Reader) error {
	f, err := r.ReadRegisterFile(c.statePath())
	if err != nil {
		return err
	}

	var regs []uint32
	for _, name := range []string{"STAT", "CODE", "NUM", "IMM", "CYCLE", "MODE",
		"MASK", "MARK", "ITOP", "ITOPS", "PENDINGMPG", "PENDINGMPGADDR",
		"PAYLOADREMAINING", "PAYLOADLEN"} {
		v, err := f.GetRegister32(name)
		if err != nil {
			return err
		}
		regs = append(regs, v)
	}
	row, err := f.GetRegister128("ROW")
	if err != nil {
		return err
	}
	col, err := f.GetRegister128("COL")
	if err != nil {
		return err
	}
	length, remaining := regs[13], regs[12]
	if length > MaxPayloadSize || remaining > MaxPayloadSize {
		return errors.Errorf("vif%d payload of 0x%x bytes with 0x%x remaining is over 0x%x",
			c.Number, length, remaining, MaxPayloadSize)
	}
	if Stat(regs[0]).VPS() == VPS_WAITDATA {
		code := VifCode(regs[1])
		if size, ok := payloadSize(code, uint8(regs[2])); ok && length+remaining != size {
			return errors.Errorf("vif%d payload 0x%x+0x%x doesn't match %v size 0x%x",
				c.Number, length, remaining, code, size)
		}
	}

	payload := make([]byte, 0, length+QuadwordSize)
	for i := uint32(0); i < regs[13]; i += QuadwordSize {
		qw, err := f.GetRegister128(fmt.Sprintf("PAYLOAD%d", i/QuadwordSize))
		if err != nil {
			return err
		}
		var b [QuadwordSize]byte
		qw.PutBytes(b[:])
		payload = append(payload, b[:]...)
	}

	c.Stat = Stat(regs[0])
	c.Code = VifCode(regs[1])
	c.Num = uint8(regs[2])
	c.Imm = regs[3]
	c.Cycle = regs[4]
	c.Mode = regs[5]
	c.Mask = regs[6]
	c.Mark = regs[7]
	c.Itop = regs[8]
	c.Itops = regs[9]
	c.PendingMicroProgram = regs[10] != 0
	c.PendingMicroProgramAddr = regs[11]
	c.Row = [4]uint32(row)
	c.Col = [4]uint32(col)
	c.remaining = remaining
	c.payload = payload[:length]
	return nil
}
