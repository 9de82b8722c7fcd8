package kern

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/oisee/mx16/pkg/isa"
)

// HaltState is the CPU's halt condition. Paused and Stopped differ only in
// intent (pause is resumable by external means, stop is final); the kernel
// treats both as "do nothing on tick".
type HaltState int

const (
	Running HaltState = iota
	Paused
	Stopped
)

func (h HaltState) String() string {
	switch h {
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "running"
	}
}

// CPU is the processor kernel: linear memory, the 11-register file and the
// bus I/O buffers. One instruction executes per tick.
type CPU struct {
	mem  []byte
	regs [isa.RegCount]uint16

	busAddr uint8

	sendBuf  Msg
	hasSend  bool
	sendDone bool

	rcvBuf     Msg
	hasRcv     bool
	rcvWaiting bool

	halt      HaltState
	lastInstr *isa.Instruction
}

// NewCPU builds a CPU with ramSize bytes of zeroed memory and the program
// image loaded at address 0.
func NewCPU(ramSize uint16, prog []byte) *CPU {
	mem := make([]byte, ramSize)
	copy(mem, prog)
	return &CPU{mem: mem, sendDone: true}
}

// Reg reads a register (diagnostic/test access).
func (c *CPU) Reg(r isa.Reg) uint16 {
	return c.regs[r]
}

// Mem reads one memory byte (diagnostic/test access).
func (c *CPU) Mem(addr uint16) uint8 {
	return c.mem[addr]
}

// Halt returns the current halt state.
func (c *CPU) Halt() HaltState {
	return c.halt
}

func (c *CPU) Name() string {
	return "cpu"
}

func (c *CPU) InitBus(addr uint8) {
	c.busAddr = addr
}

func (c *CPU) SendBusMsg() (Msg, bool) {
	if !c.hasSend {
		return Msg{}, false
	}
	msg := c.sendBuf
	c.hasSend = false
	c.sendDone = false
	return msg, true
}

func (c *CPU) EndSendBusMsg() {
	c.sendDone = true
}

func (c *CPU) RcvBusMsg(msg Msg) {
	c.rcvBuf = msg
	c.hasRcv = true
}

func (c *CPU) CanRcvBusMsg() bool {
	return c.rcvWaiting || !c.hasRcv
}

func (c *CPU) Halted() bool {
	return c.halt != Running
}

func (c *CPU) advanceSI(in isa.Instruction) {
	c.regs[isa.SI] += uint16(in.Op.Size())
}

// stop is the fault policy: running off valid code or touching memory out
// of range terminates the processor instead of faulting the system.
func (c *CPU) stop() {
	c.halt = Stopped
}

func (c *CPU) Tick() {
	if c.halt != Running {
		return
	}

	si := int(c.regs[isa.SI])
	if si > len(c.mem) {
		c.stop()
		return
	}
	in, err := isa.Decode(bytes.NewReader(c.mem[si:]))
	if err != nil {
		c.stop()
		return
	}

	c.exec(in)
	c.lastInstr = &in
}

func (c *CPU) exec(in isa.Instruction) {
	switch in.Op {
	case isa.Skip:
		c.advanceSI(in)

	case isa.Pause:
		c.halt = Paused
	case isa.Stop:
		c.halt = Stopped

	case isa.Wait:
		if c.regs[isa.OA] != 0 {
			c.regs[isa.OA]--
		} else {
			c.advanceSI(in)
		}

	case isa.Set:
		c.regs[in.A] = in.Imm
		if in.A != isa.SI {
			c.advanceSI(in)
		}
	case isa.SetIfNotZero:
		if c.regs[isa.OC] != 0 {
			c.regs[in.A] = in.Imm
			if in.A != isa.SI {
				c.advanceSI(in)
			}
		} else {
			c.advanceSI(in)
		}
	case isa.SetIfZero:
		if c.regs[isa.OC] == 0 {
			c.regs[in.A] = in.Imm
			if in.A != isa.SI {
				c.advanceSI(in)
			}
		} else {
			c.advanceSI(in)
		}

	case isa.Copy:
		c.regs[in.B] = c.regs[in.A]
		if in.B != isa.SI {
			c.advanceSI(in)
		}
	case isa.Swap:
		c.regs[in.A], c.regs[in.B] = c.regs[in.B], c.regs[in.A]
		// Advance unless the swap moved si only partially: a swap with
		// exactly one si operand IS the branch, both-or-neither is not.
		if (in.A == isa.SI) == (in.B == isa.SI) {
			c.advanceSI(in)
		}

	case isa.WriteByte:
		addr := int(c.regs[isa.OC])
		if addr >= len(c.mem) {
			c.stop()
			return
		}
		c.mem[addr] = uint8(c.regs[isa.OA])
		c.advanceSI(in)
	case isa.WriteWord:
		addr := int(c.regs[isa.OC])
		if addr+1 >= len(c.mem) {
			c.stop()
			return
		}
		c.mem[addr] = uint8(c.regs[isa.OA])
		c.mem[addr+1] = uint8(c.regs[isa.OA] >> 8)
		c.advanceSI(in)
	case isa.ReadByte:
		addr := int(c.regs[isa.OC])
		if addr >= len(c.mem) {
			c.stop()
			return
		}
		c.regs[isa.OA] = c.regs[isa.OA]&0xff00 | uint16(c.mem[addr])
		c.advanceSI(in)
	case isa.ReadWord:
		addr := int(c.regs[isa.OC])
		if addr+1 >= len(c.mem) {
			c.stop()
			return
		}
		c.regs[isa.OA] = uint16(c.mem[addr]) | uint16(c.mem[addr+1])<<8
		c.advanceSI(in)

	case isa.Add:
		sum := uint32(c.regs[isa.OA]) + uint32(c.regs[isa.OB])
		c.regs[isa.OC] = uint16(sum)
		// Inverted polarity: bit 0 of ss means "no overflow".
		if sum > 0xffff {
			c.regs[isa.SS] &^= 0x0001
		} else {
			c.regs[isa.SS] |= 0x0001
		}
		c.advanceSI(in)
	case isa.CompareUnsigned:
		a, b := c.regs[isa.OA], c.regs[isa.OB]
		c.regs[isa.OC] = cmpBits(a == b, a > b)
		c.advanceSI(in)
	case isa.CompareSigned:
		a, b := int16(c.regs[isa.OA]), int16(c.regs[isa.OB])
		c.regs[isa.OC] = cmpBits(a == b, a > b)
		c.advanceSI(in)
	case isa.And:
		c.regs[isa.OC] = c.regs[isa.OA] & c.regs[isa.OB]
		c.advanceSI(in)
	case isa.Or:
		c.regs[isa.OC] = c.regs[isa.OA] | c.regs[isa.OB]
		c.advanceSI(in)
	case isa.Xor:
		c.regs[isa.OC] = c.regs[isa.OA] ^ c.regs[isa.OB]
		c.advanceSI(in)
	case isa.Rotate:
		c.regs[isa.OA] = bits.RotateLeft16(c.regs[isa.OA], 1)
		c.advanceSI(in)

	case isa.IoWrite:
		if addr := uint8(c.regs[isa.OC]); addr != 0 {
			c.sendBuf = Msg{Data: uint8(c.regs[isa.OA]), Peer: addr}
			c.hasSend = true
			c.sendDone = false
		}
		c.advanceSI(in)
	case isa.IoRead:
		want := uint8(c.regs[isa.OC])
		if c.hasRcv && (want == 0 || c.rcvBuf.Peer == want) {
			c.regs[isa.OA] = c.regs[isa.OA]&0xff00 | uint16(c.rcvBuf.Data)
		} else {
			c.regs[isa.OC] = 0
		}
		c.advanceSI(in)
	case isa.IoWaitForWrite:
		if c.sendDone || c.regs[isa.OA] == 0 {
			c.advanceSI(in)
		} else if c.regs[isa.OA] != 0xffff {
			c.regs[isa.OA]--
		}
	case isa.IoWaitForRead:
		c.rcvWaiting = true
		if (c.hasRcv && c.rcvBuf.Peer == uint8(c.regs[isa.OC])) || c.regs[isa.OA] == 0 {
			c.rcvWaiting = false
			c.advanceSI(in)
		} else if c.regs[isa.OA] != 0xffff {
			c.regs[isa.OA]--
		}
	case isa.IoBufClearWrite:
		c.hasSend = false
		c.advanceSI(in)
	case isa.IoBufClearRead:
		c.hasRcv = false
		c.advanceSI(in)
	case isa.IoBufReadWrite:
		// Peek-and-yield: inspects the pending send without advancing si.
		if c.hasSend {
			c.regs[isa.OC] = uint16(c.sendBuf.Peer)
			c.regs[isa.OA] = c.regs[isa.OA]&0xff00 | uint16(c.sendBuf.Data)
		} else {
			c.regs[isa.OC] = 0
		}
	}
}

func cmpBits(eq, gt bool) uint16 {
	var v uint16
	if eq {
		v |= 1
	}
	if gt {
		v |= 2
	}
	return v
}

func (c *CPU) String() string {
	last := "n/a"
	if c.lastInstr != nil {
		last = c.lastInstr.String()
	}
	return fmt.Sprintf(
		"si: 0x%04x | oa: 0x%04x | ob: 0x%04x | oc: 0x%04x | ga: 0x%04x | gb: 0x%04x | gc: 0x%04x | gd: 0x%04x | da: %d (0x%04x) | db: %d (0x%04x) | last: %s",
		c.regs[isa.SI], c.regs[isa.OA], c.regs[isa.OB], c.regs[isa.OC],
		c.regs[isa.GA], c.regs[isa.GB], c.regs[isa.GC], c.regs[isa.GD],
		c.regs[isa.DA], c.regs[isa.DA], c.regs[isa.DB], c.regs[isa.DB],
		last,
	)
}
