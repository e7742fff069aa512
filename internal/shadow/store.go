// Package shadow holds the last accepted value for every synced key.
//
// Ownership boundary:
//   - typed bytes per key, never resource handles
//   - byte-for-byte change detection
//   - capacity accounting over the encoded size of all stored entries
package shadow

import (
	"fmt"
	"sync"

	"github.com/danmuck/watchsync/internal/protocol/dict"
)

// Validator accepts or rejects one incoming value for its key.
type Validator func(dict.Value) error

type Options struct {
	// Capacity bounds the summed encoded size of every stored entry.
	Capacity   int
	Validators map[dict.Key]Validator
}

// ChangeEvent reports one key whose stored value was replaced. Old is handed
// back so the owner of any resource derived from it can release it.
type ChangeEvent struct {
	Key    dict.Key
	New    dict.Value
	Old    dict.Value
	HadOld bool
}

// Rejection is one entry skipped by its key's validator.
type Rejection struct {
	Key   dict.Key
	Value dict.Value
	Err   error
}

// Result describes one applied dictionary.
type Result struct {
	Changes   []ChangeEvent
	Rejected  []Rejection
	Unchanged int
}

// Store is the local authoritative copy of synced values.
type Store struct {
	mu         sync.RWMutex
	capacity   int
	validators map[dict.Key]Validator
	order      []dict.Key
	values     map[dict.Key]dict.Value
	size       int
}

func New(opts Options) *Store {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = dict.DefaultCapacity
	}
	validators := make(map[dict.Key]Validator, len(opts.Validators))
	for k, v := range opts.Validators {
		validators[k] = v
	}
	return &Store{
		capacity:   capacity,
		validators: validators,
		values:     make(map[dict.Key]dict.Value),
	}
}

// Seed installs initial values. Any rejected seed entry is an error.
func (s *Store) Seed(entries []dict.Entry) error {
	res, err := s.Apply(entries)
	if err != nil {
		return fmt.Errorf("shadow: seed: %w", err)
	}
	if len(res.Rejected) > 0 {
		r := res.Rejected[0]
		return fmt.Errorf("shadow: seed key %d: %w", r.Key, r.Err)
	}
	return nil
}

// Apply diffs entries against the stored values in message order. Entries
// rejected by a validator are skipped individually; a result that would not fit
// in capacity leaves the store untouched.
func (s *Store) Apply(entries []dict.Entry) (Result, error) {
	seen := make(map[dict.Key]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Key]; dup {
			return Result{}, fmt.Errorf("%w: %d", dict.ErrDuplicateKey, e.Key)
		}
		seen[e.Key] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res Result
	changed := make([]dict.Entry, 0, len(entries))
	size := s.size
	for _, e := range entries {
		if e.Value == nil {
			res.Rejected = append(res.Rejected, Rejection{Key: e.Key, Err: dict.ErrInvalidValue})
			continue
		}
		if validate, ok := s.validators[e.Key]; ok {
			if err := validate(e.Value); err != nil {
				res.Rejected = append(res.Rejected, Rejection{Key: e.Key, Value: e.Value, Err: err})
				continue
			}
		}
		old, had := s.values[e.Key]
		if had && dict.Equal(old, e.Value) {
			res.Unchanged++
			continue
		}
		if had {
			size -= dict.EntrySize(old)
		}
		size += dict.EntrySize(e.Value)
		changed = append(changed, e)
	}
	if size > s.capacity {
		return Result{}, fmt.Errorf("%w: store would hold %d bytes, capacity %d", dict.ErrCapacityExceeded, size, s.capacity)
	}

	for _, e := range changed {
		old, had := s.values[e.Key]
		if !had {
			s.order = append(s.order, e.Key)
		}
		stored := dict.Clone(e.Value)
		s.values[e.Key] = stored
		res.Changes = append(res.Changes, ChangeEvent{
			Key:    e.Key,
			New:    dict.Clone(stored),
			Old:    old,
			HadOld: had,
		})
	}
	s.size = size
	return res, nil
}

func (s *Store) Get(key dict.Key) (dict.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	return dict.Clone(v), true
}

// Snapshot returns every stored entry in first-seen order.
func (s *Store) Snapshot() []dict.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dict.Entry, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, dict.Entry{Key: k, Value: dict.Clone(s.values[k])})
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Size is the encoded size of everything stored.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *Store) Capacity() int {
	return s.capacity
}
