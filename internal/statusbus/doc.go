// Package statusbus is the node's typed publish/subscribe status bus.
//
// The bus carries three single-slot broadcast channels, one per status
// type: network, provisioning and transport. A coordinator that owns a
// status publishes it; any number of subscribers wait for change
// notifications and then read the channel to obtain the latest value.
//
// # Semantics
//
//   - Publish stores the value first and then notifies subscribers, so a
//     Read after the matching Wait never sees an older value.
//   - Each subscriber has a small bounded backlog of notifications. If a
//     backlog stays full for the whole publish timeout, Publish returns
//     ErrTimeout; it never blocks forever and never drops silently.
//   - Wait and Read take explicit timeouts so no coordinator hangs on a
//     status that never arrives.
//   - Close makes every later Publish fail with ErrClosed. The fatal path
//     closes the bus so nothing is published after escalation.
//
// # Usage
//
//	bus := statusbus.New(statusbus.Options{QueueSize: 4})
//	sub := bus.Subscribe("feedback", bus.Network, bus.Provisioning, bus.Transport)
//
//	// publisher
//	err := bus.Network.Publish(statusbus.NetworkConnected, time.Second)
//
//	// subscriber
//	id, err := sub.Wait(ctx, 5*time.Second)
//	if id == statusbus.ChannelNetwork {
//	    status, err := bus.Network.Read(100 * time.Millisecond)
//	}
package statusbus
