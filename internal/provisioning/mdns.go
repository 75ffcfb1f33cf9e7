package provisioning

import (
	"context"
	"fmt"
	"net"

	"github.com/grandcat/zeroconf"
)

// MDNSAnnouncer advertises the node over mDNS while it is discoverable.
type MDNSAnnouncer struct {
	Instance string
	Service  string
	Domain   string
	Port     int
	Text     []string

	// Interface restricts the announcement to one interface when set.
	Interface string
}

// Announce registers the service and returns a function that withdraws it.
func (a *MDNSAnnouncer) Announce(_ context.Context) (func(), error) {
	var ifaces []net.Interface
	if a.Interface != "" {
		iface, err := net.InterfaceByName(a.Interface)
		if err != nil {
			return nil, fmt.Errorf("mdns: looking up %s: %w", a.Interface, err)
		}
		ifaces = []net.Interface{*iface}
	}

	server, err := zeroconf.Register(a.Instance, a.Service, a.Domain, a.Port, a.Text, ifaces)
	if err != nil {
		return nil, fmt.Errorf("mdns: registering %s: %w", a.Service, err)
	}
	return server.Shutdown, nil
}
