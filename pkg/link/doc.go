// Package link provides the framed request/response protocol between
// the node and its companion module.
package link

// The link runs over a point-to-point byte channel (a UART on the target).
// Both peers may initiate an exchange: the high bit of the opcode tells who
// initiated it, so a request from the companion and a reply to one of our
// own requests can never be confused.
//
// Frames are self-delimiting. Each starts with DLE STX and any DLE in the
// body is doubled, so a receiver that lost sync simply waits for the next
// start marker. A CRC-16 guards every frame.
//
// At most one locally initiated exchange is in flight at any time.
//
// Producer: node or companion
// Consumer: the peer
