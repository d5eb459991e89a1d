//go:build !(linux || darwin || freebsd)

package backups

import "errors"

func mkfifo(path string) error {
	return errors.New("no fifos on this platform")
}
