// Package dispatcher implements the remote dispatcher (§4.C): the
// self-contained program that runs on the target host, reads requests from
// its stdin, executes them against the local OS, and writes responses to
// its stdout. It owns no persistent state across requests.
package dispatcher

import (
	"io"
	"log/slog"

	"github.com/oddlama/forge/pkg/codec"
	"github.com/oddlama/forge/pkg/wire"
)

// Handler processes one decoded request and returns the response to send,
// or (nil, true) for Exit, which sends no response and signals the loop to
// stop.
type Handler func(req wire.Request) (resp wire.Response, shouldClose bool)

// handlers maps each request packet ID to its handler. Built once, keyed
// by the same dense IDs the wire package assigns, so dispatch never needs
// a type switch spread across the package.
var handlers = map[wire.PacketID]Handler{
	wire.PacketIDCheckAlive:   handleCheckAlive,
	wire.PacketIDExit:         handleExit,
	wire.PacketIDProcessRun:   handleProcessRun,
	wire.PacketIDStat:         handleStat,
	wire.PacketIDResolveUser:  handleResolveUser,
	wire.PacketIDResolveGroup: handleResolveGroup,
	wire.PacketIDUpload:       handleUpload,
	wire.PacketIDDownload:     handleDownload,
}

// Serve runs the dispatcher's main loop against r/w until a request sets
// should_close or a fatal I/O error occurs. It returns the process exit
// code the caller should use: 0 on a clean Exit, 3 on a protocol error.
func Serve(r io.Reader, w io.Writer, log *slog.Logger) int {
	reader := codec.NewReader(r)
	writer := codec.NewWriter(w)

	for {
		log.Debug("waiting for packet")
		req, err := wire.ReadRequest(reader)
		if err != nil {
			log.Error("fatal protocol error, aborting", "error", err)
			return 3
		}
		log.Debug("received packet", "packet", wire.Name(req.PacketID()))

		handle, ok := handlers[req.PacketID()]
		if !ok {
			log.Error("no handler registered for request", "packet", wire.Name(req.PacketID()))
			return 3
		}

		resp, shouldClose := handle(req)
		if shouldClose {
			return 0
		}
		if resp == nil {
			log.Error("handler produced no response", "packet", wire.Name(req.PacketID()))
			return 3
		}
		if err := wire.WritePacket(writer, resp); err != nil {
			log.Error("failed writing response", "error", err)
			return 3
		}
	}
}

func invalidField(field, message string) *wire.InvalidField {
	return &wire.InvalidField{Field: field, ErrorMessage: message}
}
