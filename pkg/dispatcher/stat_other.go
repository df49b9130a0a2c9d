//go:build darwin || freebsd

package dispatcher

import "syscall"

func statCtimeNs(sys *syscall.Stat_t) int64 {
	return sys.Ctimespec.Sec*1e9 + sys.Ctimespec.Nsec
}
