// Package feedback implements the feedback coordinator: status LEDs and
// the two buttons.
//
// A single loop subscribes to the network, provisioning and transport
// channels and keeps a UIState. LEDs are recomputed only when the field
// they depend on changes, so re-publishing a status has no effect.
//
//	connectivity LED   on when the transport is connected, else off
//	provisioning LED   not started         fast blink
//	                   in progress         slow blink
//	                   completed, online   on
//	                   completed, offline  fast blink
//
// Buttons are handled off the edge handler. A press submits a prebuilt
// workq.Item; a press while that item is still pending is absorbed.
//
//	publish button  sends a Payload if the transport is connected,
//	                otherwise logs one warning
//	reset button    deletes every stored credential, then restarts
//	                the node whatever the outcome of the delete
package feedback
