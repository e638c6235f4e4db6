package models

// RawMessage is one payload received from the signal bus before
// normalization. Channel identifies the producer channel/topic it
// arrived on.
type RawMessage struct {
	Channel string
	Data    []byte
}
