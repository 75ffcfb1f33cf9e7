// Package transport is the node's application transport: an MQTT session
// to the site broker.
//
// The Service waits for the network coordinator to report a link before
// dialling the broker, mirrors the session state onto the status bus as
// TransportStatus, and sends the publish-button payloads the feedback
// coordinator hands it. Optionally each status channel is mirrored to a
// retained topic so the rest of the site can see the node's state.
//
// Reconnection after the first successful connect is left to paho; the
// first connect is retried here with exponential backoff, restarting the
// wait whenever the network drops.
package transport
