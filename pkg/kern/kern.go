// Package kern holds the device kernels: the logic clocked inside each
// device on the bus.
package kern

import "fmt"

// Msg is one bus message: a payload byte and the peer's bus address (the
// destination when sending, the sender when receiving).
type Msg struct {
	Data uint8
	Peer uint8
}

// Kernel is the contract between a device wrapper and the logic it clocks.
// SendBusMsg hands the pending outbound message to the wrapper (draining
// it); EndSendBusMsg tells the kernel the bus finished delivering it.
// Halted reports that the kernel has no further work of its own; passive
// kernels that only react to messages report true.
type Kernel interface {
	fmt.Stringer

	Name() string
	InitBus(addr uint8)
	Tick()
	SendBusMsg() (Msg, bool)
	EndSendBusMsg()
	RcvBusMsg(Msg)
	CanRcvBusMsg() bool
	Halted() bool
}
