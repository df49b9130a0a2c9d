package dispatcher

import (
	"os"
	"strconv"
	"syscall"

	"github.com/oddlama/forge/pkg/wire"
)

// handleUpload writes content to file, applying mode (if given) and
// chown'ing to owner/group (if either is given; the other keeps its
// existing value via -1). The umask is briefly relaxed to 0o022 around the
// write/create so an explicit mode always takes effect regardless of the
// dispatcher process's own umask, then restored.
func handleUpload(req wire.Request) (wire.Response, bool) {
	p := req.(*wire.Upload)

	var mode os.FileMode = 0o600
	if p.Mode != nil {
		m, err := strconv.ParseUint(*p.Mode, 8, 32)
		if err != nil {
			return invalidField("mode", "not a valid octal mode: "+*p.Mode), false
		}
		mode = os.FileMode(m)
	}

	var uid, gid uint32 = ^uint32(0), ^uint32(0)
	chown := false
	if p.Owner != nil {
		s, err := resolveUserToUID(*p.Owner)
		if err != nil {
			return invalidField("owner", err.Error()), false
		}
		v, _ := strconv.ParseUint(s, 10, 32)
		uid = uint32(v)
		chown = true
	}
	if p.Group != nil {
		s, err := resolveGroupToGID(*p.Group)
		if err != nil {
			return invalidField("group", err.Error()), false
		}
		v, _ := strconv.ParseUint(s, 10, 32)
		gid = uint32(v)
		chown = true
	}

	old := syscall.Umask(0o022)
	err := os.WriteFile(p.File, p.Content, 0o600)
	syscall.Umask(old)
	if err != nil {
		return invalidField("file", err.Error()), false
	}

	if p.Mode != nil {
		if err := os.Chmod(p.File, mode); err != nil {
			return invalidField("mode", err.Error()), false
		}
	}
	if chown {
		if err := os.Chown(p.File, int(int32(uid)), int(int32(gid))); err != nil {
			return invalidField("owner", err.Error()), false
		}
	}

	return &wire.Ok{}, false
}
