package vif

import "fmt"

type VifCode uint32

const (
	VIF_CMD_NOP      = 0x00 // No Operation
	VIF_CMD_STCYCL   = 0x01 // Sets CYCLE register
	VIF_CMD_OFFSET   = 0x02 // Sets OFFSET register (VIF1)
	VIF_CMD_BASE     = 0x03 // Sets BASE register (VIF1)
	VIF_CMD_ITOP     = 0x04 // Sets ITOPS register
	VIF_CMD_STMOD    = 0x05 // Sets MODE register
	VIF_CMD_MSKPATH3 = 0x06 // Mask GIF transfer (VIF1)
	VIF_CMD_MARK     = 0x07 // Sets Mark register
	VIF_CMD_FLUSHE   = 0x10 // Wait for end of microprogram
	VIF_CMD_FLUSH    = 0x11 // Wait for end of microprogram & Path 1/2 GIF xfer (VIF1)
	VIF_CMD_FLUSHA   = 0x13 // Wait for end of microprogram & all Path GIF xfer (VIF1)
	VIF_CMD_MSCAL    = 0x14 // Activate microprogram
	VIF_CMD_MSCALF   = 0x15 // Activate microprogram (VIF1)
	VIF_CMD_MSCNT    = 0x17 // Execute microrprogram continuously
	VIF_CMD_STMASK   = 0x20 // Sets MASK register
	VIF_CMD_STROW    = 0x30 // Sets ROW register
	VIF_CMD_STCOL    = 0x31 // Sets COL register
	VIF_CMD_MPG      = 0x4A // Load microprogram
	VIF_CMD_DIRECT   = 0x50 // Transfer data to GIF (VIF1)
	VIF_CMD_DIRECTHL = 0x51 // Transfer data to GIF but stall for Path 3 IMAGE mode (VIF1)
	VIF_CMD_UNPACK   = 0x60 // Unpack family base, 0x60-0x7f
)

// Size of the code itself inside stream
const CodeSize = 4

// Transfer unit of every fifo on the bus
const QuadwordSize = 0x10

var cmdNames = map[uint8]string{
	VIF_CMD_NOP:      "NOP",
	VIF_CMD_STCYCL:   "STCYCL",
	VIF_CMD_OFFSET:   "OFFSET",
	VIF_CMD_BASE:     "BASE",
	VIF_CMD_ITOP:     "ITOP",
	VIF_CMD_STMOD:    "STMOD",
	VIF_CMD_MSKPATH3: "MSKPATH3",
	VIF_CMD_MARK:     "MARK",
	VIF_CMD_FLUSHE:   "FLUSHE",
	VIF_CMD_FLUSH:    "FLUSH",
	VIF_CMD_FLUSHA:   "FLUSHA",
	VIF_CMD_MSCAL:    "MSCAL",
	VIF_CMD_MSCALF:   "MSCALF",
	VIF_CMD_MSCNT:    "MSCNT",
	VIF_CMD_STMASK:   "STMASK",
	VIF_CMD_STROW:    "STROW",
	VIF_CMD_STCOL:    "STCOL",
	VIF_CMD_MPG:      "MPG",
	VIF_CMD_DIRECT:   "DIRECT",
	VIF_CMD_DIRECTHL: "DIRECTHL",
}

func (v VifCode) Cmd() uint8 {
	return uint8((v >> 24) & 0x7f)
}

func (v VifCode) Num() uint8 {
	return uint8((v >> 16) & 0xff)
}

func (v VifCode) Imm() uint16 {
	return uint16(v & 0xffff)
}

func (v VifCode) IsIRQ() bool {
	return (v>>31)&1 != 0
}

func (v VifCode) IsUnpack() bool {
	return v.Cmd()&VIF_CMD_UNPACK == VIF_CMD_UNPACK
}

func (v VifCode) IsDirect() bool {
	return v.Cmd() == VIF_CMD_DIRECT || v.Cmd() == VIF_CMD_DIRECTHL
}

func (v VifCode) Name() string {
	if v.IsUnpack() {
		return "UNPACK"
	}
	if name, ok := cmdNames[v.Cmd()]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%.2x", v.Cmd())
}

func (v VifCode) String() string {
	return fmt.Sprintf("VifCode{Cmd:0x%.2x(%s); Num:0x%.2x; Imm:0x%.4x; IRQ:%t}",
		v.Cmd(), v.Name(), v.Num(), v.Imm(), v.IsIRQ())
}

func NewCode(raw uint32) VifCode {
	return VifCode(raw)
}

// MakeCode builds raw code from fields, irq bit is left cleared
func MakeCode(cmd uint8, num uint8, imm uint16) VifCode {
	return VifCode(uint32(cmd&0x7f)<<24 | uint32(num)<<16 | uint32(imm))
}
