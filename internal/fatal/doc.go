// Package fatal is the node's single escalation path.
//
// Any coordinator that hits a condition which would leave two coordinators
// with inconsistent views of the world calls Escalator.Fatal. Planned
// restarts (provisioning asked for a reboot, the user wiped credentials)
// call Escalator.Restart. Both go through the same sequence:
//
//  1. Run registered hooks once (the node closes the status bus here, so
//     nothing is published after escalation, and flushes telemetry)
//  2. Log the reason and flush the log sink
//  3. Perform the configured action: reboot, exit or halt
//
// Only the first call acts. Later calls, from any goroutine, block until
// the process ends.
//
// # Testing
//
// Recorder implements Escalator without side effects for use in tests of
// the coordinators.
package fatal
