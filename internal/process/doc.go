// Package process provides subprocess lifecycle management for the host
// helpers the node depends on: the SoftAP provisioning helper and the
// DHCP client.
//
// Features:
//   - Start/stop with graceful shutdown of the whole process group
//   - Automatic restart with exponential backoff
//   - Line-based capture of stdout/stderr, delivered to OnOutput
//   - OnGiveUp once the process has failed for good
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:     "udhcpc",
//	    Binary:   "/sbin/udhcpc",
//	    Args:     []string{"-f", "-i", "wlan0"},
//	    OnOutput: func(stream, line string) { ... },
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
