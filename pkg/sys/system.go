// Package sys assembles devices into a clocked system: per-device timers, a
// shared message bus with at most one delivery per bus tick, and the main
// run loop. Everything is single-threaded; determinism comes from ticking
// devices in ascending address order and arbitrating the bus after them.
package sys

import (
	"time"

	"github.com/oisee/mx16/pkg/kern"
)

// Slots is the number of bus addresses.
const Slots = 16

// DeviceDescription is the construction-time recipe for one device.
type DeviceDescription struct {
	BusAddr   uint8
	Kernel    kern.Kernel
	ClockFreq uint32
	Verbose   bool
}

type slot struct {
	dev   *Device
	timer timer
}

// System is the simulated machine: up to 16 devices and the bus between
// them.
type System struct {
	devices  [Slots]*slot
	busFreq  uint32
	busTimer timer

	// lastDevLockedBus is the fairness cursor: after a device transmits,
	// higher addresses are preferred until wraparound. -1 means unset.
	lastDevLockedBus int

	// StopWhenHalted makes the run loops return once every kernel reports
	// halted (passive kernels always do, so in practice: every CPU).
	StopWhenHalted bool
}

// New builds a system from device descriptions. Slots not described stay
// empty; messages sent to them are dropped.
func New(devs []DeviceDescription, busFreq uint32) *System {
	s := &System{busFreq: busFreq, busTimer: newTimer(periodOf(busFreq)), lastDevLockedBus: -1}
	for _, d := range devs {
		if int(d.BusAddr) >= Slots {
			continue
		}
		s.devices[d.BusAddr] = &slot{
			dev:   NewDevice(d.Kernel, d.BusAddr, d.ClockFreq, d.Verbose),
			timer: newTimer(periodOf(d.ClockFreq)),
		}
	}
	return s
}

// Device returns the device at a bus address, or nil.
func (s *System) Device(addr uint8) *Device {
	if int(addr) >= Slots || s.devices[addr] == nil {
		return nil
	}
	return s.devices[addr].dev
}

// TickBus arbitrates one bus cycle: at most one message is delivered, the
// sender with the lowest address strictly above the fairness cursor first,
// wrapping to the lowest eligible sender.
func (s *System) TickBus() {
	eligible := func(i int) bool {
		sl := s.devices[i]
		if sl == nil || !sl.dev.hasSend {
			return false
		}
		// An absent destination never blocks; the message is dropped at
		// delivery instead.
		if peer := int(sl.dev.sendMsg.Peer); peer < Slots {
			if to := s.devices[peer]; to != nil && !to.dev.Kernel.CanRcvBusMsg() {
				return false
			}
		}
		return true
	}

	first, chosen := -1, -1
	for i := 0; i < Slots; i++ {
		if !eligible(i) {
			continue
		}
		if first < 0 {
			first = i
		}
		if i > s.lastDevLockedBus {
			chosen = i
			break
		}
	}
	if chosen < 0 {
		chosen = first
	}
	if chosen < 0 {
		return
	}
	s.lastDevLockedBus = chosen

	sender := s.devices[chosen].dev
	msg := sender.sendMsg
	sender.hasSend = false
	sender.Kernel.EndSendBusMsg()

	if peer := int(msg.Peer); peer < Slots {
		if to := s.devices[peer]; to != nil {
			to.dev.rcvMsg = kern.Msg{Data: msg.Data, Peer: uint8(chosen)}
			to.dev.hasRcv = true
		}
	}
}

// Tick advances every timer by step, ticking whatever fires: due devices in
// ascending address order, then the bus. It returns the shortest remaining
// time across all timers, i.e. how long the caller may sleep.
func (s *System) Tick(step time.Duration) time.Duration {
	next := time.Duration(1000) * time.Second
	for _, sl := range s.devices {
		if sl == nil {
			continue
		}
		if sl.timer.advance(step) {
			sl.dev.Tick()
		}
		if sl.timer.left < next {
			next = sl.timer.left
		}
	}

	if s.busTimer.advance(step) {
		s.TickBus()
	}
	if s.busTimer.left < next {
		next = s.busTimer.left
	}
	return next
}

// Halted reports whether every kernel in the system is halted.
func (s *System) Halted() bool {
	any := false
	for _, sl := range s.devices {
		if sl == nil {
			continue
		}
		any = true
		if !sl.dev.Kernel.Halted() {
			return false
		}
	}
	return any
}

// Run is the paced loop: it sleeps between ticks, keeping the simulation
// near real time. A dur of 0 runs with no time budget.
func (s *System) Run(dur time.Duration) {
	var runtime, delay time.Duration
	for dur == 0 || runtime < dur {
		if s.StopWhenHalted && s.Halted() {
			return
		}
		time.Sleep(delay)
		delay = s.Tick(delay)
		if dur != 0 {
			runtime += delay
		}
	}
}

// RunFree is the free-running loop: no sleeping, steps are the measured
// wall-clock deltas, giving maximum throughput.
func (s *System) RunFree(dur time.Duration) {
	var runtime, tickTime time.Duration
	start := time.Now()
	for dur == 0 || runtime < dur {
		if s.StopWhenHalted && s.Halted() {
			return
		}
		s.Tick(tickTime)

		total := time.Since(start)
		if total <= 0 {
			total = time.Nanosecond
		}
		tickTime = total - runtime
		runtime = total
	}
}
