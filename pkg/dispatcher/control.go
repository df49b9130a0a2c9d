package dispatcher

import "github.com/oddlama/forge/pkg/wire"

func handleCheckAlive(req wire.Request) (wire.Response, bool) {
	return &wire.Ack{}, false
}

func handleExit(req wire.Request) (wire.Response, bool) {
	return nil, true
}
