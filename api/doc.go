// Package api defines the message catalogue spoken over the device link.
//
// Every message the device and client exchange is a Go struct with a
// fixed type tag and a compact binary field encoding. The package covers
// session control (hello, login, ping, disconnect), device metadata,
// entity discovery, state reporting, log streaming, and entity commands.
//
// # Message Interface
//
// All messages implement Message:
//   - MessageType reports the numeric type tag carried on the wire
//   - MarshalBinary produces the field-encoded payload
//   - UnmarshalBinary parses a payload into the receiver
//
// Two refinements classify messages further:
//   - StateMessage: state reports keyed to an entity (EntityKey)
//   - EntityMessage: entity descriptions with common identification
//     fields (Entity)
//
// # Field Encoding
//
// Payloads use a tag-length-value field encoding. Each field is a key
// varint (field number and wire type) followed by the value. Fields with
// zero values are omitted when encoding, and unknown fields are skipped
// when decoding, so either end can speak a newer catalogue revision
// without breaking the other.
//
// Wire types in use:
//   - Varint: booleans, enums, counters
//   - Length-delimited: strings and repeated strings
//   - Fixed 32-bit: entity keys, epoch timestamps, floats
//
// # Registry
//
// The Registry ties tags to constructors so raw frames can be decoded
// into typed messages:
//
//	reg := api.NewRegistry()
//	msg, err := reg.Decode(tag, payload)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	switch msg := msg.(type) {
//	case *api.SensorStateResponse:
//	    fmt.Printf("key %d reads %f\n", msg.Key, msg.State)
//	}
//
// NewRegistry registers the full stock catalogue. Register extends it
// with vendor messages or replaces a stock decoding.
//
// # Error Handling
//
// Decode failures fall into two kinds:
//   - ErrUnknownType: the tag has no registered constructor
//   - ErrMalformedPayload: the payload does not parse
//
// Both are wrapped with the message name for debugging.
//
// # Thread Safety
//
// A Registry is safe for concurrent use once built. Message values are
// plain structs with no internal locking; do not share one value between
// goroutines that mutate it.
package api
