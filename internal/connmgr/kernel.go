package connmgr

import (
	"github.com/vishvananda/netlink"
)

// linkAPI is the slice of rtnetlink the manager uses.
type linkAPI interface {
	LinkByName(name string) (netlink.Link, error)
	LinkSetUp(link netlink.Link) error
	LinkSubscribe(ch chan<- netlink.LinkUpdate, done <-chan struct{}, onError func(error)) error
	AddrSubscribe(ch chan<- netlink.AddrUpdate, done <-chan struct{}, onError func(error)) error
}

// kernel talks to the running kernel.
type kernel struct{}

func (kernel) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name)
}

func (kernel) LinkSetUp(link netlink.Link) error {
	return netlink.LinkSetUp(link)
}

func (kernel) LinkSubscribe(ch chan<- netlink.LinkUpdate, done <-chan struct{}, onError func(error)) error {
	return netlink.LinkSubscribeWithOptions(ch, done, netlink.LinkSubscribeOptions{
		ErrorCallback: onError,
		ListExisting:  true,
	})
}

func (kernel) AddrSubscribe(ch chan<- netlink.AddrUpdate, done <-chan struct{}, onError func(error)) error {
	return netlink.AddrSubscribeWithOptions(ch, done, netlink.AddrSubscribeOptions{
		ErrorCallback: onError,
		ListExisting:  true,
	})
}
