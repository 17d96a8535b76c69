// Package protocol defines the wire envelope exchanged over the WebSocket.
//
// Frames are UTF-8 JSON text with a fixed "type" discriminator. Decoding keeps
// the raw frame bytes so signaling envelopes can be forwarded byte-identical.
package protocol
