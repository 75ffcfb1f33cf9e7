//go:build linux

package fatal

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// SystemReboot flushes filesystem buffers and restarts the machine.
// It needs CAP_SYS_BOOT and only returns on failure.
func SystemReboot() error {
	unix.Sync()
	if err := unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}

func exitProcess(code int) {
	os.Exit(code)
}
