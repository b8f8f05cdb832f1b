// Package core provides the transaction model and its lenient decoding rules.
//
// This file contains the amount type and the coercion applied to whatever the
// task API sends in the amount field.
package core

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a transaction amount. The zero value is 0.
type Amount struct {
	decimal.Decimal
}

// NewAmount returns an amount of value units.
func NewAmount(value int64) Amount {
	return Amount{Decimal: decimal.NewFromInt(value)}
}

// ParseAmount coerces a textual amount. Surrounding whitespace is ignored, an
// empty string is 0 and anything that is not a number is 0.
//
// Examples:
//
//	ParseAmount("12.50") -> 12.50
//	ParseAmount(" 7 ")   -> 7
//	ParseAmount("1e3")   -> 1000
//	ParseAmount("abc")   -> 0
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}
	}
	return Amount{Decimal: d}
}

// CoerceAmount converts a raw JSON value into an amount. Numbers and numeric
// strings keep their value, true is 1, everything else is 0.
func CoerceAmount(raw json.RawMessage) Amount {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Amount{}
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Amount{}
		}
		return ParseAmount(s)
	case c == '-' || (c >= '0' && c <= '9'):
		return ParseAmount(string(raw))
	case bytes.Equal(raw, []byte("true")):
		return NewAmount(1)
	default:
		return Amount{}
	}
}

// UnmarshalJSON never fails: malformed amounts decode as 0.
func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = CoerceAmount(data)
	return nil
}
