//go:build darwin

package rename

import (
	"os"
	"syscall"
	"time"
)

func creationTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		sec, nsec := st.Birthtimespec.Unix()
		return time.Unix(sec, nsec)
	}
	return info.ModTime()
}
