// Package msgs provides the console protocol and all message schemas.
package msgs

// The console protocol is spoken between a node and ground stations.
// Every packet is a Typed envelope. Commands carry a sequence number
// echoed by the reply, events are not sequenced.
//
// Producer: node
// Consumer: ground station
