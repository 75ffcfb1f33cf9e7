// Package softap adapts the SoftAP provisioning helper to the
// provisioning coordinator's ProtocolService.
//
// The helper is an external binary that runs the access point and the
// credential exchange. It reports progress as JSON lines on stdout:
//
//	{"event":"started"}
//	{"event":"client_connected"}
//	{"event":"credentials_received","ssid":"home","passphrase":"...","security":"wpa2-psk"}
//	{"event":"client_disconnected"}
//	{"event":"completed"}
//	{"event":"reboot_needed"}
//	{"event":"fatal_error","detail":"..."}
//
// Received credentials are saved to the credential store before the
// event is forwarded. A helper that exits before reporting completed is
// treated as a fatal error.
package softap
