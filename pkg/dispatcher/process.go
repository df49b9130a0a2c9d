package dispatcher

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/oddlama/forge/pkg/wire"
)

// handleProcessRun validates every field before touching exec.Cmd at all:
// a bad umask, an unresolvable user/group, or a cwd that doesn't exist all
// come back as InvalidField without any fork ever happening. Only a
// failure of the fork/exec step itself (credential or working-directory
// rejected by the kernel after validation already passed) becomes
// ProcessPreexecError; a missing binary is reported as InvalidField on
// "command", since that failure happens before any process is created.
func handleProcessRun(req wire.Request) (wire.Response, bool) {
	p := req.(*wire.ProcessRun)

	if len(p.Command) == 0 {
		return invalidField("command", "command must not be empty"), false
	}

	var umask int
	if p.Umask != nil {
		m, err := strconv.ParseUint(*p.Umask, 8, 32)
		if err != nil {
			return invalidField("umask", "not a valid octal mode: "+*p.Umask), false
		}
		umask = int(m)
	}

	var uid, gid *uint32
	if p.User != nil {
		s, err := resolveUserToUID(*p.User)
		if err != nil {
			return invalidField("user", err.Error()), false
		}
		id, _ := strconv.ParseUint(s, 10, 32)
		v := uint32(id)
		uid = &v
		// The user's primary group is the default unless group is also given.
		if p.Group == nil {
			if u, err := userPrimaryGroup(*p.User); err == nil {
				gid = &u
			}
		}
	}
	if p.Group != nil {
		s, err := resolveGroupToGID(*p.Group)
		if err != nil {
			return invalidField("group", err.Error()), false
		}
		id, _ := strconv.ParseUint(s, 10, 32)
		v := uint32(id)
		gid = &v
	}

	if p.Cwd != nil {
		if fi, err := os.Stat(*p.Cwd); err != nil || !fi.IsDir() {
			return invalidField("cwd", "no such directory: "+*p.Cwd), false
		}
	}

	cmd := exec.Command(p.Command[0], p.Command[1:]...)
	if p.Cwd != nil {
		cmd.Dir = *p.Cwd
	}
	if uid != nil || gid != nil {
		cred := &syscall.Credential{}
		if uid != nil {
			cred.Uid = *uid
		}
		if gid != nil {
			cred.Gid = *gid
		}
		cmd.SysProcAttr = &syscall.SysProcAttr{Credential: cred}
	}

	var stdout, stderr bytes.Buffer
	if p.CaptureOutput {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	} else {
		// Never inherit the dispatcher's own stdio: that file descriptor
		// carries the protocol stream, and a child writing to it directly
		// would corrupt framing.
		cmd.Stdout = nil
		cmd.Stderr = nil
	}
	if p.Stdin != nil {
		cmd.Stdin = bytes.NewReader(*p.Stdin)
	}

	if p.Umask != nil {
		old := syscall.Umask(umask)
		defer syscall.Umask(old)
	}

	if err := cmd.Start(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return invalidField("command", execErr.Error()), false
		}
		// A command given as a path skips the PATH lookup, so a missing
		// binary surfaces here as a not-exist error instead of *exec.Error.
		if errors.Is(err, os.ErrNotExist) {
			return invalidField("command", err.Error()), false
		}
		return &wire.ProcessPreexecError{}, false
	}

	waitErr := cmd.Wait()

	result := &wire.ProcessCompleted{ReturnCode: exitCode(waitErr)}
	if p.CaptureOutput {
		out := stdout.Bytes()
		errb := stderr.Bytes()
		result.Stdout = &out
		result.Stderr = &errb
	}
	return result, false
}

func exitCode(err error) int32 {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return int32(exitErr.ExitCode())
	}
	return -1
}
