// Package gpio drives the node's status LEDs and reads its buttons through
// the Linux GPIO character device.
//
// Lines are configured by offset on one chip. Active-low wiring is handled
// by the kernel, so LED.Set(true) always means lit and a button press is
// always a logical rising edge.
package gpio
