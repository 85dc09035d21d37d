// Package wire implements the gridpath client protocol: 4-byte big-endian
// length-prefixed frames carrying protobuf-encoded Request and Response
// messages.
//
// The schema lives in gridpath.proto. Messages are encoded directly with
// protowire; there is no generated code.
package wire
