//go:build linux || darwin || freebsd

package backups

import "syscall"

func mkfifo(path string) error {
	return syscall.Mkfifo(path, 0644)
}
