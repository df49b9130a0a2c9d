package wire

import (
	"fmt"

	"github.com/oddlama/forge/pkg/codec"
)

// Kind distinguishes request packets (controller → dispatcher) from
// response packets (dispatcher → controller).
type Kind int

const (
	KindRequest Kind = iota
	KindResponse
)

// descriptor carries everything needed to decode and identify a packet by
// its numeric ID, without any reflection.
type descriptor struct {
	id   PacketID
	name string
	kind Kind
	new  func() Packet
}

// registry is populated once at package init time, in the exact order of
// the PacketID constants. Both the controller and the dispatcher binary
// import this package, so they can never disagree about IDs, names, or
// kinds — there is only one copy of this table.
var registry []descriptor

func register(id PacketID, name string, kind Kind, new func() Packet) {
	if int(id) != len(registry) {
		panic(fmt.Sprintf("wire: packet %q registered out of order: got id %d, expected %d", name, id, len(registry)))
	}
	registry = append(registry, descriptor{id: id, name: name, kind: kind, new: new})
}

func init() {
	register(PacketIDOk, "Ok", KindResponse, func() Packet { return &Ok{} })
	register(PacketIDAck, "Ack", KindResponse, func() Packet { return &Ack{} })
	register(PacketIDCheckAlive, "CheckAlive", KindRequest, func() Packet { return &CheckAlive{} })
	register(PacketIDExit, "Exit", KindRequest, func() Packet { return &Exit{} })
	register(PacketIDInvalidField, "InvalidField", KindResponse, func() Packet { return &InvalidField{} })
	register(PacketIDProcessCompleted, "ProcessCompleted", KindResponse, func() Packet { return &ProcessCompleted{} })
	register(PacketIDProcessPreexecError, "ProcessPreexecError", KindResponse, func() Packet { return &ProcessPreexecError{} })
	register(PacketIDProcessRun, "ProcessRun", KindRequest, func() Packet { return &ProcessRun{} })
	register(PacketIDStatResult, "StatResult", KindResponse, func() Packet { return &StatResult{} })
	register(PacketIDStat, "Stat", KindRequest, func() Packet { return &Stat{} })
	register(PacketIDResolveResult, "ResolveResult", KindResponse, func() Packet { return &ResolveResult{} })
	register(PacketIDResolveUser, "ResolveUser", KindRequest, func() Packet { return &ResolveUser{} })
	register(PacketIDResolveGroup, "ResolveGroup", KindRequest, func() Packet { return &ResolveGroup{} })
	register(PacketIDUpload, "Upload", KindRequest, func() Packet { return &Upload{} })
	register(PacketIDDownloadResult, "DownloadResult", KindResponse, func() Packet { return &DownloadResult{} })
	register(PacketIDDownload, "Download", KindRequest, func() Packet { return &Download{} })
}

// ProtocolError indicates a fatal framing/registry violation: an unknown
// packet ID, or a response packet arriving where a request was expected
// (or vice versa). Per spec, this is fatal to the dispatcher (exit code 3)
// and aborts the owning host worker on the controller side.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "wire: protocol error: " + e.Reason }

// Name returns the registered name of a packet ID, or "" if unknown.
func Name(id PacketID) string {
	if int(id) < 0 || int(id) >= len(registry) {
		return ""
	}
	return registry[id].name
}

// WritePacket frames and writes p: a u32 packet ID followed by its fields
// in declared order, then flushes. There is no outer length prefix — the
// packet ID plus its field types fully determine the byte count.
func WritePacket(w *codec.Writer, p Packet) error {
	if err := w.WriteU32(uint32(p.PacketID())); err != nil {
		return err
	}
	if err := p.Encode(w); err != nil {
		return err
	}
	return w.Flush()
}

// ReadRequest reads the next packet and requires it to be a request.
// Used by the dispatcher's main loop.
func ReadRequest(r *codec.Reader) (Request, error) {
	id, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	d, ok := lookup(PacketID(id))
	if !ok {
		return nil, &ProtocolError{Reason: fmt.Sprintf("unknown packet id %d", id)}
	}
	if d.kind != KindRequest {
		return nil, &ProtocolError{Reason: fmt.Sprintf("packet %q is a response, not a request", d.name)}
	}
	p := d.new()
	if err := p.Decode(r); err != nil {
		return nil, err
	}
	return p.(Request), nil
}

// ReadResponse reads the next packet and requires it to be a response.
// Used by the connector awaiting the dispatcher's reply.
func ReadResponse(r *codec.Reader) (Response, error) {
	id, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	d, ok := lookup(PacketID(id))
	if !ok {
		return nil, &ProtocolError{Reason: fmt.Sprintf("unknown packet id %d", id)}
	}
	if d.kind != KindResponse {
		return nil, &ProtocolError{Reason: fmt.Sprintf("packet %q is a request, not a response", d.name)}
	}
	p := d.new()
	if err := p.Decode(r); err != nil {
		return nil, err
	}
	return p.(Response), nil
}

func lookup(id PacketID) (descriptor, bool) {
	if int(id) < 0 || int(id) >= len(registry) {
		return descriptor{}, false
	}
	return registry[id], true
}
