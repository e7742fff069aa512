// Package icon maps weather codes received from the companion to display resources.
package icon

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/watchsync/internal/protocol/dict"
)

var ErrUnknownCode = errors.New("icon: unknown code")

// Code is the weather condition code carried under the icon key.
type Code uint32

const (
	CodeClear Code = iota
	CodeCloud
	CodeRain
	CodeSnow
)

// Resource describes one displayable icon.
type Resource struct {
	Code  Code
	Name  string
	Glyph string
}

// Table is a bounded code-to-resource lookup.
type Table struct {
	resources []Resource
}

// DefaultTable holds the four weather conditions in code order.
func DefaultTable() Table {
	return Table{resources: []Resource{
		{Code: CodeClear, Name: "clear", Glyph: "☀"},
		{Code: CodeCloud, Name: "cloud", Glyph: "☁"},
		{Code: CodeRain, Name: "rain", Glyph: "☂"},
		{Code: CodeSnow, Name: "snow", Glyph: "❄"},
	}}
}

func (t Table) Len() int { return len(t.resources) }

// Resolve never indexes out of range; unknown codes yield ErrUnknownCode.
func (t Table) Resolve(code Code) (Resource, error) {
	if uint64(code) >= uint64(len(t.resources)) {
		return Resource{}, fmt.Errorf("%w: %d (table has %d)", ErrUnknownCode, code, len(t.resources))
	}
	return t.resources[code], nil
}

// ResolveValue resolves an integer dictionary value.
func (t Table) ResolveValue(v dict.Value) (Resource, error) {
	n, err := dict.AsUint(v)
	if err != nil {
		return Resource{}, err
	}
	return t.Resolve(Code(n))
}

// Validator adapts the table to a per-key store validator.
func (t Table) Validator() func(dict.Value) error {
	return func(v dict.Value) error {
		_, err := t.ResolveValue(v)
		return err
	}
}

// Loader hands out exclusively owned handles to resources and tracks how many
// are still live.
type Loader struct {
	mu   sync.Mutex
	live int
	next uint64
}

// Handle is one acquired resource. Release must be called exactly once; later
// calls are no-ops.
type Handle struct {
	Resource Resource
	id       uint64
	loader   *Loader
	once     sync.Once
}

func NewLoader() *Loader {
	return &Loader{}
}

func (l *Loader) Acquire(r Resource) *Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.live++
	l.next++
	return &Handle{Resource: r, id: l.next, loader: l}
}

// Live returns the number of acquired but unreleased handles.
func (l *Loader) Live() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live
}

func (h *Handle) Release() {
	if h == nil || h.loader == nil {
		return
	}
	h.once.Do(func() {
		h.loader.mu.Lock()
		h.loader.live--
		h.loader.mu.Unlock()
	})
}

func (h *Handle) ID() uint64 {
	if h == nil {
		return 0
	}
	return h.id
}
