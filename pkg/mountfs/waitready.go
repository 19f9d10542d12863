// SPDX-License-Identifier: Apache-2.0

package mountfs

import (
	"os"
	"syscall"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
)

// WaitReady polls until mountpoint shows up as a mounted filesystem,
// giving the caller a synchronous "mount succeeded" signal in background
// mode, where fs.Mount itself has already returned control to the caller
// before the kernel has necessarily finished attaching the session.
func WaitReady(mountpoint string) error {
	return retry.Do(
		func() error {
			mounted, err := isMountpoint(mountpoint)
			if err != nil {
				return err
			}
			if !mounted {
				return errors.Errorf("%s is not yet mounted", mountpoint)
			}
			return nil
		},
		retry.Attempts(50),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

// isMountpoint compares the device id of mountpoint against its parent
// directory: on a real mount these differ, matching the same test POSIX
// `mountpoint(1)` uses.
func isMountpoint(path string) (bool, error) {
	st, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	parent, err := os.Stat(path + "/..")
	if err != nil {
		return false, err
	}
	return st.Sys().(*syscall.Stat_t).Dev != parent.Sys().(*syscall.Stat_t).Dev, nil
}
