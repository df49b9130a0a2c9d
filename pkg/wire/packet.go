// Package wire defines the packet registry for the controller/dispatcher
// protocol: a dense, statically ordered enumeration of packet shapes shared
// by both ends of the connection.
//
// There is deliberately no decorator or reflection-based registration here.
// Both the controller and the dispatcher link this same package, so the
// registration table below is the single source of truth for packet IDs,
// names, and field layouts on both sides — the "registry agreement"
// invariant holds by construction rather than by convention.
package wire

import "github.com/oddlama/forge/pkg/codec"

// PacketID is a dense, small identifier assigned by registration order.
type PacketID uint32

// Packet IDs, in registration order. The order matters: it is the wire
// format. Do not reorder existing entries; only append.
const (
	PacketIDOk PacketID = iota
	PacketIDAck
	PacketIDCheckAlive
	PacketIDExit
	PacketIDInvalidField
	PacketIDProcessCompleted
	PacketIDProcessPreexecError
	PacketIDProcessRun
	PacketIDStatResult
	PacketIDStat
	PacketIDResolveResult
	PacketIDResolveUser
	PacketIDResolveGroup
	PacketIDUpload
	PacketIDDownloadResult
	PacketIDDownload
)

// Packet is implemented by every request and response shape.
type Packet interface {
	PacketID() PacketID
	Encode(w *codec.Writer) error
	Decode(r *codec.Reader) error
}

// Request marks a packet the controller is allowed to send. Response-only
// packets do not implement this.
type Request interface {
	Packet
	isRequest()
}

// Response marks a packet the dispatcher is allowed to send. The
// controller never sends one of these as a request.
type Response interface {
	Packet
	isResponse()
}

// ---------------------------------------------------------------------
// Ok — generic successful status indicator.
// ---------------------------------------------------------------------

type Ok struct{}

func (Ok) PacketID() PacketID            { return PacketIDOk }
func (Ok) Encode(w *codec.Writer) error  { return nil }
func (*Ok) Decode(r *codec.Reader) error { return nil }
func (Ok) isResponse()                   {}

// ---------------------------------------------------------------------
// Ack — acknowledges CheckAlive.
// ---------------------------------------------------------------------

type Ack struct{}

func (Ack) PacketID() PacketID            { return PacketIDAck }
func (Ack) Encode(w *codec.Writer) error  { return nil }
func (*Ack) Decode(r *codec.Reader) error { return nil }
func (Ack) isResponse()                   {}

// ---------------------------------------------------------------------
// CheckAlive — liveness probe. Receiver must answer with Ack immediately.
// ---------------------------------------------------------------------

type CheckAlive struct{}

func (CheckAlive) PacketID() PacketID            { return PacketIDCheckAlive }
func (CheckAlive) Encode(w *codec.Writer) error  { return nil }
func (*CheckAlive) Decode(r *codec.Reader) error { return nil }
func (CheckAlive) isRequest()                    {}

// ---------------------------------------------------------------------
// Exit — signals the dispatcher to close the connection. No response.
// ---------------------------------------------------------------------

type Exit struct{}

func (Exit) PacketID() PacketID            { return PacketIDExit }
func (Exit) Encode(w *codec.Writer) error  { return nil }
func (*Exit) Decode(r *codec.Reader) error { return nil }
func (Exit) isRequest()                    {}

// ---------------------------------------------------------------------
// InvalidField — an invalid value was given for the named field.
// ---------------------------------------------------------------------

type InvalidField struct {
	Field        string
	ErrorMessage string
}

func (InvalidField) PacketID() PacketID { return PacketIDInvalidField }

func (p InvalidField) Encode(w *codec.Writer) error {
	if err := w.WriteString(p.Field); err != nil {
		return err
	}
	return w.WriteString(p.ErrorMessage)
}

func (p *InvalidField) Decode(r *codec.Reader) error {
	var err error
	if p.Field, err = r.ReadString(); err != nil {
		return err
	}
	if p.ErrorMessage, err = r.ReadString(); err != nil {
		return err
	}
	return nil
}

func (InvalidField) isResponse() {}

// ---------------------------------------------------------------------
// ProcessCompleted — result of a finished remote process.
// ---------------------------------------------------------------------

type ProcessCompleted struct {
	Stdout     *[]byte
	Stderr     *[]byte
	ReturnCode int32
}

func (ProcessCompleted) PacketID() PacketID { return PacketIDProcessCompleted }

func (p ProcessCompleted) Encode(w *codec.Writer) error {
	if err := codec.WriteOptional(w, p.Stdout, (*codec.Writer).WriteBytes); err != nil {
		return err
	}
	if err := codec.WriteOptional(w, p.Stderr, (*codec.Writer).WriteBytes); err != nil {
		return err
	}
	return w.WriteI32(p.ReturnCode)
}

func (p *ProcessCompleted) Decode(r *codec.Reader) error {
	var err error
	if p.Stdout, err = codec.ReadOptional(r, (*codec.Reader).ReadBytes); err != nil {
		return err
	}
	if p.Stderr, err = codec.ReadOptional(r, (*codec.Reader).ReadBytes); err != nil {
		return err
	}
	if p.ReturnCode, err = r.ReadI32(); err != nil {
		return err
	}
	return nil
}

func (ProcessCompleted) isResponse() {}

// ---------------------------------------------------------------------
// ProcessPreexecError — the pre-exec/fork step itself raised.
// ---------------------------------------------------------------------

type ProcessPreexecError struct{}

func (ProcessPreexecError) PacketID() PacketID            { return PacketIDProcessPreexecError }
func (ProcessPreexecError) Encode(w *codec.Writer) error  { return nil }
func (*ProcessPreexecError) Decode(r *codec.Reader) error { return nil }
func (ProcessPreexecError) isResponse()                   {}

// ---------------------------------------------------------------------
// ProcessRun — run a command on the remote.
// ---------------------------------------------------------------------

type ProcessRun struct {
	Command        []string
	Stdin          *[]byte
	CaptureOutput  bool
	User           *string
	Group          *string
	Umask          *string
	Cwd            *string
}

func (ProcessRun) PacketID() PacketID { return PacketIDProcessRun }

func (p ProcessRun) Encode(w *codec.Writer) error {
	if err := codec.WriteList(w, p.Command, (*codec.Writer).WriteString); err != nil {
		return err
	}
	if err := codec.WriteOptional(w, p.Stdin, (*codec.Writer).WriteBytes); err != nil {
		return err
	}
	if err := w.WriteBool(p.CaptureOutput); err != nil {
		return err
	}
	if err := codec.WriteOptional(w, p.User, (*codec.Writer).WriteString); err != nil {
		return err
	}
	if err := codec.WriteOptional(w, p.Group, (*codec.Writer).WriteString); err != nil {
		return err
	}
	if err := codec.WriteOptional(w, p.Umask, (*codec.Writer).WriteString); err != nil {
		return err
	}
	return codec.WriteOptional(w, p.Cwd, (*codec.Writer).WriteString)
}

func (p *ProcessRun) Decode(r *codec.Reader) error {
	var err error
	if p.Command, err = codec.ReadList(r, (*codec.Reader).ReadString); err != nil {
		return err
	}
	if p.Stdin, err = codec.ReadOptional(r, (*codec.Reader).ReadBytes); err != nil {
		return err
	}
	if p.CaptureOutput, err = r.ReadBool(); err != nil {
		return err
	}
	if p.User, err = codec.ReadOptional(r, (*codec.Reader).ReadString); err != nil {
		return err
	}
	if p.Group, err = codec.ReadOptional(r, (*codec.Reader).ReadString); err != nil {
		return err
	}
	if p.Umask, err = codec.ReadOptional(r, (*codec.Reader).ReadString); err != nil {
		return err
	}
	if p.Cwd, err = codec.ReadOptional(r, (*codec.Reader).ReadString); err != nil {
		return err
	}
	return nil
}

func (ProcessRun) isRequest() {}

// ---------------------------------------------------------------------
// StatResult — result of stat().
// ---------------------------------------------------------------------

type StatResult struct {
	Type      string
	Mode      uint64
	Owner     string
	Group     string
	Size      uint64
	MtimeNs   uint64
	CtimeNs   uint64
	Sha512Sum *[]byte
}

func (StatResult) PacketID() PacketID { return PacketIDStatResult }

func (p StatResult) Encode(w *codec.Writer) error {
	if err := w.WriteString(p.Type); err != nil {
		return err
	}
	if err := w.WriteU64(p.Mode); err != nil {
		return err
	}
	if err := w.WriteString(p.Owner); err != nil {
		return err
	}
	if err := w.WriteString(p.Group); err != nil {
		return err
	}
	if err := w.WriteU64(p.Size); err != nil {
		return err
	}
	if err := w.WriteU64(p.MtimeNs); err != nil {
		return err
	}
	if err := w.WriteU64(p.CtimeNs); err != nil {
		return err
	}
	return codec.WriteOptional(w, p.Sha512Sum, (*codec.Writer).WriteBytes)
}

func (p *StatResult) Decode(r *codec.Reader) error {
	var err error
	if p.Type, err = r.ReadString(); err != nil {
		return err
	}
	if p.Mode, err = r.ReadU64(); err != nil {
		return err
	}
	if p.Owner, err = r.ReadString(); err != nil {
		return err
	}
	if p.Group, err = r.ReadString(); err != nil {
		return err
	}
	if p.Size, err = r.ReadU64(); err != nil {
		return err
	}
	if p.MtimeNs, err = r.ReadU64(); err != nil {
		return err
	}
	if p.CtimeNs, err = r.ReadU64(); err != nil {
		return err
	}
	if p.Sha512Sum, err = codec.ReadOptional(r, (*codec.Reader).ReadBytes); err != nil {
		return err
	}
	return nil
}

func (StatResult) isResponse() {}

// ---------------------------------------------------------------------
// Stat — retrieve information about a file or directory.
// ---------------------------------------------------------------------

type Stat struct {
	Path         string
	FollowLinks  bool
	Sha512Sum    bool
}

func (Stat) PacketID() PacketID { return PacketIDStat }

func (p Stat) Encode(w *codec.Writer) error {
	if err := w.WriteString(p.Path); err != nil {
		return err
	}
	if err := w.WriteBool(p.FollowLinks); err != nil {
		return err
	}
	return w.WriteBool(p.Sha512Sum)
}

func (p *Stat) Decode(r *codec.Reader) error {
	var err error
	if p.Path, err = r.ReadString(); err != nil {
		return err
	}
	if p.FollowLinks, err = r.ReadBool(); err != nil {
		return err
	}
	if p.Sha512Sum, err = r.ReadBool(); err != nil {
		return err
	}
	return nil
}

func (Stat) isRequest() {}

// ---------------------------------------------------------------------
// ResolveResult — canonical name returned by ResolveUser/ResolveGroup.
// ---------------------------------------------------------------------

type ResolveResult struct {
	Value string
}

func (ResolveResult) PacketID() PacketID           { return PacketIDResolveResult }
func (p ResolveResult) Encode(w *codec.Writer) error { return w.WriteString(p.Value) }

func (p *ResolveResult) Decode(r *codec.Reader) error {
	var err error
	p.Value, err = r.ReadString()
	return err
}

func (ResolveResult) isResponse() {}

// ---------------------------------------------------------------------
// ResolveUser / ResolveGroup — canonicalize a name/id and ensure it exists.
// ---------------------------------------------------------------------

type ResolveUser struct {
	User string
}

func (ResolveUser) PacketID() PacketID           { return PacketIDResolveUser }
func (p ResolveUser) Encode(w *codec.Writer) error { return w.WriteString(p.User) }

func (p *ResolveUser) Decode(r *codec.Reader) error {
	var err error
	p.User, err = r.ReadString()
	return err
}

func (ResolveUser) isRequest() {}

type ResolveGroup struct {
	Group string
}

func (ResolveGroup) PacketID() PacketID           { return PacketIDResolveGroup }
func (p ResolveGroup) Encode(w *codec.Writer) error { return w.WriteString(p.Group) }

func (p *ResolveGroup) Decode(r *codec.Reader) error {
	var err error
	p.Group, err = r.ReadString()
	return err
}

func (ResolveGroup) isRequest() {}

// ---------------------------------------------------------------------
// Upload — write content to a remote file.
// ---------------------------------------------------------------------

type Upload struct {
	File    string
	Content []byte
	Mode    *string
	Owner   *string
	Group   *string
}

func (Upload) PacketID() PacketID { return PacketIDUpload }

func (p Upload) Encode(w *codec.Writer) error {
	if err := w.WriteString(p.File); err != nil {
		return err
	}
	if err := w.WriteBytes(p.Content); err != nil {
		return err
	}
	if err := codec.WriteOptional(w, p.Mode, (*codec.Writer).WriteString); err != nil {
		return err
	}
	if err := codec.WriteOptional(w, p.Owner, (*codec.Writer).WriteString); err != nil {
		return err
	}
	return codec.WriteOptional(w, p.Group, (*codec.Writer).WriteString)
}

func (p *Upload) Decode(r *codec.Reader) error {
	var err error
	if p.File, err = r.ReadString(); err != nil {
		return err
	}
	if p.Content, err = r.ReadBytes(); err != nil {
		return err
	}
	if p.Mode, err = codec.ReadOptional(r, (*codec.Reader).ReadString); err != nil {
		return err
	}
	if p.Owner, err = codec.ReadOptional(r, (*codec.Reader).ReadString); err != nil {
		return err
	}
	if p.Group, err = codec.ReadOptional(r, (*codec.Reader).ReadString); err != nil {
		return err
	}
	return nil
}

func (Upload) isRequest() {}

// ---------------------------------------------------------------------
// DownloadResult / Download — read the contents of a remote file.
// ---------------------------------------------------------------------

type DownloadResult struct {
	Content []byte
}

func (DownloadResult) PacketID() PacketID           { return PacketIDDownloadResult }
func (p DownloadResult) Encode(w *codec.Writer) error { return w.WriteBytes(p.Content) }

func (p *DownloadResult) Decode(r *codec.Reader) error {
	var err error
	p.Content, err = r.ReadBytes()
	return err
}

func (DownloadResult) isResponse() {}

type Download struct {
	File string
}

func (Download) PacketID() PacketID           { return PacketIDDownload }
func (p Download) Encode(w *codec.Writer) error { return w.WriteString(p.File) }

func (p *Download) Decode(r *codec.Reader) error {
	var err error
	p.File, err = r.ReadString()
	return err
}

func (Download) isRequest() {}
