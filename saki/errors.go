package saki

import "sakinode-go/errcode"

var (
	// ErrCapacity reports an insert that would grow a bounded table past its limit.
	ErrCapacity = &errcode.E{C: errcode.Capacity, Msg: "table full"}
	// ErrTooManyTokens reports a payload with more than MaxTokens fields.
	ErrTooManyTokens = &errcode.E{C: errcode.TooManyTokens, Msg: "payload has too many fields"}
	// ErrEmptyPayload reports a data frame that carried no command key.
	ErrEmptyPayload = &errcode.E{C: errcode.EmptyPayload, Msg: "no command key"}
	// ErrCorruptBlock reports a persisted block whose item count exceeds MaxItems.
	ErrCorruptBlock = &errcode.E{C: errcode.Unconfigured, Msg: "persisted item count out of range"}
)
