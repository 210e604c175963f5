package types

import "encoding/binary"

// ctrlHeaderOffset is where the {op, b, n, w} control header begins
// inside the 44-byte payload data area when Ctrl is set.
const ctrlHeaderOffset = PayloadSize - 8

// Payload is the application unit carried by a Frame: 44 bytes of data
// plus the routing/control metadata that travels alongside it.
type Payload struct {
	Ctrl   bool
	TreeID uint32
	Data   [PayloadSize]byte
}

// NewDataPayload builds a plain (non-control) payload for the given
// tree, copying up to PayloadSize bytes from data and padding the rest
// with 0x20.
func NewDataPayload(treeID uint32, data []byte) Payload {
	p := Payload{TreeID: treeID}
	for i := range p.Data {
		p.Data[i] = payloadPad
	}
	copy(p.Data[:], data)
	return p
}

// Ctrl message fields, valid only when Payload.Ctrl is true.
type CtrlFields struct {
	Op byte
	B  byte
	N  uint16
	W  uint32
}

// NewCtrlPayload builds a control payload carrying the given fields.
func NewCtrlPayload(treeID uint32, f CtrlFields) Payload {
	p := Payload{Ctrl: true, TreeID: treeID}
	for i := range p.Data {
		p.Data[i] = payloadPad
	}
	h := p.Data[ctrlHeaderOffset:]
	h[0] = f.Op
	h[1] = f.B
	binary.BigEndian.PutUint16(h[2:4], f.N)
	binary.BigEndian.PutUint32(h[4:8], f.W)
	return p
}

// CtrlFields extracts the control header. It is meaningful only when
// Ctrl is true.
func (p Payload) CtrlFields() CtrlFields {
	h := p.Data[ctrlHeaderOffset:]
	return CtrlFields{
		Op: h[0],
		B:  h[1],
		N:  binary.BigEndian.Uint16(h[2:4]),
		W:  binary.BigEndian.Uint32(h[4:8]),
	}
}

// IsFailoverRequest reports whether this payload's control header
// carries a FAILOVER_R op. The wire format has no dedicated ctrl bit;
// only a component that itself originates FAILOVER_R/FAILOVER_D (the
// Hub) has the context to treat this as meaningful, so detection is by
// op code rather than by the advisory Ctrl field.
func (p Payload) IsFailoverRequest() bool {
	return p.CtrlFields().Op == OpFailoverR
}

// IsFailoverDone reports whether this payload's control header carries
// a FAILOVER_D op.
func (p Payload) IsFailoverDone() bool {
	return p.CtrlFields().Op == OpFailoverD
}

// ToFrame embeds the payload into an entangled frame with the given
// sequence and protocol state bytes.
func (p Payload) ToFrame(sequence uint16, iState, uState byte) Frame {
	f := NewEntangled(sequence, iState, uState)
	f.SetTreeID(p.TreeID)
	f.SetPayloadBytes(p.Data[:])
	return f
}

// PayloadFromFrame extracts the Payload carried by an entangled frame.
// ctrl must be supplied by the caller (the frame format does not carry
// a dedicated ctrl bit; callers derive it from protocol context, e.g.
// the Hub recognizing its own ctrl_queue traffic).
func PayloadFromFrame(f Frame, ctrl bool) Payload {
	p := Payload{Ctrl: ctrl, TreeID: f.TreeID()}
	copy(p.Data[:], f.PayloadBytes())
	return p
}
