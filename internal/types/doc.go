// Package types holds the FlatBuffers tables exchanged between nodes.
package types

//go:generate flatc --go -o .. messages.fbs
