package types

import "testing"

func TestNewDataPayloadPadding(t *testing.T) {
	p := NewDataPayload(7, []byte("hi"))
	if p.Ctrl {
		t.Fatalf("expected non-ctrl payload")
	}
	if p.Data[0] != 'h' || p.Data[1] != 'i' {
		t.Fatalf("data not copied: %v", p.Data[:2])
	}
	if p.Data[2] != payloadPad {
		t.Fatalf("expected padding, got %x", p.Data[2])
	}
}

func TestCtrlPayloadRoundTrip(t *testing.T) {
	p := NewCtrlPayload(99, CtrlFields{Op: OpFailoverR, B: 0x01, N: 5, W: 0xCAFEBABE})
	if !p.IsFailoverRequest() {
		t.Fatalf("expected failover request")
	}
	got := p.CtrlFields()
	if got.Op != OpFailoverR || got.B != 0x01 || got.N != 5 || got.W != 0xCAFEBABE {
		t.Fatalf("ctrl fields mismatch: %+v", got)
	}
}

func TestPayloadFrameRoundTrip(t *testing.T) {
	p := NewDataPayload(0x10203040, []byte("payload-data"))
	f := p.ToFrame(3, StateTICK, 0)
	back := PayloadFromFrame(f, false)
	if back.TreeID != p.TreeID {
		t.Fatalf("treeid mismatch: got %x want %x", back.TreeID, p.TreeID)
	}
	if back.Data != p.Data {
		t.Fatalf("data mismatch")
	}
}

func TestFailoverDoneDetection(t *testing.T) {
	p := NewCtrlPayload(1, CtrlFields{Op: OpFailoverD, B: 2, N: 0, W: 0})
	if !p.IsFailoverDone() {
		t.Fatalf("expected failover done")
	}
	if p.IsFailoverRequest() {
		t.Fatalf("did not expect failover request")
	}
}
