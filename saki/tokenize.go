package saki

import "strings"

const (
	// MaxTokens is the most fields a payload may carry, command key included.
	MaxTokens = 20
	// Sep separates payload fields.
	Sep = ':'
)

// Tokenize splits payload on ':' skipping empty fields, so "a::b:" yields
// [a b]. More than MaxTokens fields is ErrTooManyTokens.
func Tokenize(payload string) ([]string, error) {
	toks := strings.FieldsFunc(payload, func(r rune) bool { return r == Sep })
	if len(toks) > MaxTokens {
		return nil, ErrTooManyTokens
	}
	return toks, nil
}
