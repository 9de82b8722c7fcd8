package sys

import (
	"fmt"
	"os"

	"github.com/oisee/mx16/pkg/kern"
)

// Device couples a kernel to the bus: an address, a clock, a tick counter
// and one mailbox in each direction. The outbound mailbox belongs to the
// device; the arbiter alone moves messages between mailboxes.
type Device struct {
	Kernel    kern.Kernel
	Addr      uint8
	ClockFreq uint32
	Verbose   bool
	Ticks     uint64

	sendMsg kern.Msg
	hasSend bool
	rcvMsg  kern.Msg
	hasRcv  bool
}

// NewDevice wires a kernel to its bus address.
func NewDevice(k kern.Kernel, addr uint8, clockFreq uint32, verbose bool) *Device {
	k.InitBus(addr)
	return &Device{Kernel: k, Addr: addr, ClockFreq: clockFreq, Verbose: verbose}
}

// Tick runs one device cycle: deliver a waiting inbound message if the
// kernel is ready, tick the kernel, then publish any outbound message.
func (d *Device) Tick() {
	if d.hasRcv && d.Kernel.CanRcvBusMsg() {
		msg := d.rcvMsg
		d.hasRcv = false
		d.Kernel.RcvBusMsg(msg)
	}

	d.Kernel.Tick()
	d.Ticks++

	if d.Verbose {
		fmt.Fprintf(os.Stderr, "%s (t%d): %s\n", d.Kernel.Name(), d.Ticks, d.Kernel)
	}

	if msg, ok := d.Kernel.SendBusMsg(); ok {
		d.sendMsg, d.hasSend = msg, true
	}
}
