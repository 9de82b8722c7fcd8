package kern

import (
	"bytes"
	"testing"
)

func TestSerialPrintsAscii(t *testing.T) {
	var out bytes.Buffer
	s := NewSerialWriter(&out)

	s.RcvBusMsg(Msg{Data: 'H', Peer: 0})
	s.Tick()
	s.RcvBusMsg(Msg{Data: 'i', Peer: 0})
	s.Tick()

	if out.String() != "Hi" {
		t.Errorf("output = %q, want %q", out.String(), "Hi")
	}
}

func TestSerialIgnoresNonAscii(t *testing.T) {
	var out bytes.Buffer
	s := NewSerialWriter(&out)

	s.RcvBusMsg(Msg{Data: 0xc3, Peer: 0})
	s.Tick()

	if out.Len() != 0 {
		t.Errorf("non-ascii byte printed: %q", out.String())
	}
	if !s.CanRcvBusMsg() {
		t.Error("buffer should be free again after the tick")
	}
}

func TestSerialBackpressure(t *testing.T) {
	var out bytes.Buffer
	s := NewSerialWriter(&out)

	if !s.CanRcvBusMsg() {
		t.Fatal("fresh serial should accept")
	}
	s.RcvBusMsg(Msg{Data: 'x', Peer: 0})
	if s.CanRcvBusMsg() {
		t.Error("serial holding a message should refuse another")
	}
	s.Tick()
	if !s.CanRcvBusMsg() {
		t.Error("serial should accept after draining")
	}
}

func TestSerialNeverSends(t *testing.T) {
	s := NewSerialWriter(&bytes.Buffer{})
	if _, ok := s.SendBusMsg(); ok {
		t.Error("serial should never send")
	}
}
