// Package addressing runs the DHCP client that acquires an address once
// the link is associated.
//
// The client binary and its arguments come from config; the literal
// "{iface}" in an argument is replaced with the interface name. Start is
// a no-op while a client is already running for the interface.
package addressing
