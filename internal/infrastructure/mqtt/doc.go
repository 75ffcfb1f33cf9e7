// Package mqtt provides the node's MQTT connectivity.
//
// This package manages:
//   - Connection to the site broker with paho's auto-reconnect
//   - A retained availability topic with Last Will and Testament
//   - Context-bounded publishing for status mirrors and button payloads
//
// # Architecture
//
// The node is a leaf on the Gray Logic MQTT bus. It never subscribes; the
// transport package owns the client and turns connect/disconnect callbacks
// into TransportStatus on the status bus.
//
//	node transport -> MQTT broker -> Gray Logic Core
//
// # Security Considerations
//
//   - Set cfg.Broker.TLS=true outside the lab
//   - Broker credentials should come from GRAYLOGIC_NODE_MQTT_* variables
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.Node.ID))
//	client.SetOnConnect(func() { ... })
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	ctx, cancel := context.WithTimeout(ctx, time.Second)
//	defer cancel()
//	err := client.Publish(ctx, client.Topics().Payload(), body, false)
package mqtt
