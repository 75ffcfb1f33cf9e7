//go:build !linux

package fatal

import (
	"errors"
	"os"
)

// SystemReboot is unsupported off Linux; the handler falls back to exiting.
func SystemReboot() error {
	return errors.New("reboot: unsupported platform")
}

func exitProcess(code int) {
	os.Exit(code)
}
