//go:build linux

package dispatcher

import "syscall"

func statCtimeNs(sys *syscall.Stat_t) int64 {
	return sys.Ctim.Sec*1e9 + sys.Ctim.Nsec
}
