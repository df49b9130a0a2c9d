package dispatcher

import (
	"os/user"
	"strconv"

	"github.com/oddlama/forge/pkg/wire"
)

// resolveUserToUID accepts either a username or a decimal uid string and
// returns the canonical uid, erroring if neither resolves.
func resolveUserToUID(value string) (string, error) {
	if u, err := user.Lookup(value); err == nil {
		return u.Uid, nil
	}
	if _, err := strconv.Atoi(value); err == nil {
		if u, err := user.LookupId(value); err == nil {
			return u.Uid, nil
		}
	}
	return "", errNoSuchUser
}

func resolveGroupToGID(value string) (string, error) {
	if g, err := user.LookupGroup(value); err == nil {
		return g.Gid, nil
	}
	if _, err := strconv.Atoi(value); err == nil {
		if g, err := user.LookupGroupId(value); err == nil {
			return g.Gid, nil
		}
	}
	return "", errNoSuchGroup
}

var (
	errNoSuchUser  = userLookupError("The user does not exist")
	errNoSuchGroup = userLookupError("The group does not exist")
)

// userPrimaryGroup returns the numeric gid of value's primary group, so
// that running a process as a given user without an explicit group still
// picks up that user's own group rather than inheriting the dispatcher's.
func userPrimaryGroup(value string) (uint32, error) {
	u, err := user.Lookup(value)
	if err != nil {
		if _, convErr := strconv.Atoi(value); convErr == nil {
			u, err = user.LookupId(value)
		}
	}
	if err != nil {
		return 0, err
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(gid), nil
}

type userLookupError string

func (e userLookupError) Error() string { return string(e) }

func handleResolveUser(req wire.Request) (wire.Response, bool) {
	p := req.(*wire.ResolveUser)
	if u, err := user.Lookup(p.User); err == nil {
		return &wire.ResolveResult{Value: u.Username}, false
	}
	if _, err := strconv.Atoi(p.User); err == nil {
		if u, err := user.LookupId(p.User); err == nil {
			return &wire.ResolveResult{Value: u.Username}, false
		}
	}
	return invalidField("user", "The user does not exist"), false
}

func handleResolveGroup(req wire.Request) (wire.Response, bool) {
	p := req.(*wire.ResolveGroup)
	if g, err := user.LookupGroup(p.Group); err == nil {
		return &wire.ResolveResult{Value: g.Name}, false
	}
	if _, err := strconv.Atoi(p.Group); err == nil {
		if g, err := user.LookupGroupId(p.Group); err == nil {
			return &wire.ResolveResult{Value: g.Name}, false
		}
	}
	return invalidField("group", "The group does not exist"), false
}
