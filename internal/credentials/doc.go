// Package credentials persists Wi-Fi credentials received during
// provisioning.
//
// The store is the node's source of truth for "is this node provisioned":
// an empty store means the provisioning flow must run. A user reset
// deletes every entry before the planned restart.
package credentials
