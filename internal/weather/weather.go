// Package weather names the dictionary keys exchanged between the watch face
// and its companion, and the values the face starts with.
package weather

import (
	"fmt"
	"unicode/utf8"

	"github.com/danmuck/watchsync/internal/icon"
	"github.com/danmuck/watchsync/internal/protocol/dict"
	"github.com/danmuck/watchsync/internal/shadow"
)

const (
	KeyIcon        dict.Key = 0
	KeyTemperature dict.Key = 1
	KeyLocation    dict.Key = 2
)

// Conditions is the face-independent weather state.
type Conditions struct {
	Icon        icon.Code
	Temperature string
	Location    string
}

// DefaultConditions is what the face shows before the first update.
func DefaultConditions() Conditions {
	return Conditions{Icon: icon.CodeCloud, Temperature: "...°F", Location: "St Pebblesburg"}
}

// Entries renders c in key order.
func (c Conditions) Entries() []dict.Entry {
	return []dict.Entry{
		{Key: KeyIcon, Value: dict.U8(uint8(c.Icon))},
		{Key: KeyTemperature, Value: dict.String(c.Temperature)},
		{Key: KeyLocation, Value: dict.String(c.Location)},
	}
}

// Validators returns the shadow validators for the weather keys.
func Validators(t icon.Table) map[dict.Key]shadow.Validator {
	return map[dict.Key]shadow.Validator{
		KeyIcon:        t.Validator(),
		KeyTemperature: textValidator,
		KeyLocation:    textValidator,
	}
}

func textValidator(v dict.Value) error {
	s, err := dict.AsText(v)
	if err != nil {
		return err
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: text is not valid UTF-8", dict.ErrInvalidValue)
	}
	return nil
}
