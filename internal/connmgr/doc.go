// Package connmgr is the Linux connectivity manager used by the network
// and provisioning coordinators.
//
// It watches the managed interface over rtnetlink and turns kernel link
// updates into network.LinkEvent values:
//
//   - operational state up (associated, carrier present) -> LinkConnected
//   - any other operational state                        -> LinkDisconnected
//   - the interface disappearing, or the netlink socket
//     failing so updates would be lost                   -> LinkFatalError
//
// Association itself is done by the host supplicant; RequestConnect only
// makes sure the interface is up and starts reporting. Address updates
// are logged so DHCP progress is visible next to link changes.
//
// Radio power save is toggled with iw(8).
package connmgr
