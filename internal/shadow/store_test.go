package shadow

import (
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/watchsync/internal/icon"
	"github.com/danmuck/watchsync/internal/protocol/dict"
	"github.com/danmuck/watchsync/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keyIcon     dict.Key = 0
	keyTemp     dict.Key = 1
	keyLocation dict.Key = 2
)

func newSeededStore(t *testing.T) *Store {
	t.Helper()
	s := New(Options{
		Capacity:   dict.DefaultCapacity,
		Validators: map[dict.Key]Validator{keyIcon: icon.DefaultTable().Validator()},
	})
	err := s.Seed([]dict.Entry{
		{Key: keyIcon, Value: dict.U8(1)},
		{Key: keyTemp, Value: dict.String("...°F")},
		{Key: keyLocation, Value: dict.String("St Pebblesburg")},
	})
	require.NoError(t, err)
	return s
}

func TestApplyFirstOccurrenceIsChange(t *testing.T) {
	testlog.Start(t)
	s := New(Options{})
	res, err := s.Apply([]dict.Entry{{Key: 5, Value: dict.U8(9)}})
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.False(t, res.Changes[0].HadOld)
	assert.Nil(t, res.Changes[0].Old)
	assert.True(t, dict.Equal(dict.U8(9), res.Changes[0].New))
}

func TestApplyIdenticalDictionaryTwiceIsIdempotent(t *testing.T) {
	testlog.Start(t)
	s := newSeededStore(t)
	update := []dict.Entry{
		{Key: keyIcon, Value: dict.U8(2)},
		{Key: keyTemp, Value: dict.String("58°F")},
	}
	first, err := s.Apply(update)
	require.NoError(t, err)
	require.Len(t, first.Changes, 2)

	second, err := s.Apply(update)
	require.NoError(t, err)
	assert.Empty(t, second.Changes)
	assert.Equal(t, 2, second.Unchanged)
}

func TestApplyPartialUpdatePreservesUnseenKeys(t *testing.T) {
	testlog.Start(t)
	s := newSeededStore(t)
	res, err := s.Apply([]dict.Entry{{Key: keyTemp, Value: dict.String("61°F")}})
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)

	v, ok := s.Get(keyIcon)
	require.True(t, ok)
	assert.True(t, dict.Equal(dict.U8(1), v))
	v, ok = s.Get(keyLocation)
	require.True(t, ok)
	assert.True(t, dict.Equal(dict.String("St Pebblesburg"), v))
}

func TestApplyUnknownIconCodeSkipsOnlyThatKey(t *testing.T) {
	testlog.Start(t)
	s := newSeededStore(t)
	res, err := s.Apply([]dict.Entry{
		{Key: keyIcon, Value: dict.U8(7)},
		{Key: keyTemp, Value: dict.String("40°F")},
	})
	require.NoError(t, err)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, keyIcon, res.Rejected[0].Key)
	assert.ErrorIs(t, res.Rejected[0].Err, icon.ErrUnknownCode)

	require.Len(t, res.Changes, 1)
	assert.Equal(t, keyTemp, res.Changes[0].Key)

	v, _ := s.Get(keyIcon)
	assert.True(t, dict.Equal(dict.U8(1), v), "icon must keep its previous value")
}

func TestApplyChangeCarriesOldValueInMessageOrder(t *testing.T) {
	testlog.Start(t)
	s := newSeededStore(t)
	res, err := s.Apply([]dict.Entry{
		{Key: keyTemp, Value: dict.String("58°F")},
		{Key: keyIcon, Value: dict.U8(2)},
	})
	require.NoError(t, err)
	require.Len(t, res.Changes, 2)
	assert.Equal(t, keyTemp, res.Changes[0].Key)
	assert.Equal(t, keyIcon, res.Changes[1].Key)
	assert.True(t, res.Changes[1].HadOld)
	assert.True(t, dict.Equal(dict.U8(1), res.Changes[1].Old))
	assert.True(t, dict.Equal(dict.String("...°F"), res.Changes[0].Old))
}

func TestApplyOverCapacityLeavesStoreUntouched(t *testing.T) {
	testlog.Start(t)
	s := newSeededStore(t)
	before := s.Snapshot()
	sizeBefore := s.Size()

	_, err := s.Apply([]dict.Entry{
		{Key: keyTemp, Value: dict.String("12°F")},
		{Key: keyLocation, Value: dict.String(strings.Repeat("z", 50))},
	})
	require.ErrorIs(t, err, dict.ErrCapacityExceeded)
	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, sizeBefore, s.Size())
}

func TestApplyRejectsDuplicateKeys(t *testing.T) {
	testlog.Start(t)
	s := New(Options{})
	_, err := s.Apply([]dict.Entry{{Key: 1, Value: dict.U8(1)}, {Key: 1, Value: dict.U8(2)}})
	require.True(t, errors.Is(err, dict.ErrDuplicateKey))
	assert.Equal(t, 0, s.Len())
}

func TestSeedRejectsInvalidValue(t *testing.T) {
	testlog.Start(t)
	s := New(Options{Validators: map[dict.Key]Validator{keyIcon: icon.DefaultTable().Validator()}})
	err := s.Seed([]dict.Entry{{Key: keyIcon, Value: dict.U8(9)}})
	require.ErrorIs(t, err, icon.ErrUnknownCode)
}

func TestSnapshotIsACopy(t *testing.T) {
	testlog.Start(t)
	s := newSeededStore(t)
	snap := s.Snapshot()
	require.Len(t, snap, 3)
	snap[1].Value.(dict.Text)[0] = 'X'

	v, _ := s.Get(keyTemp)
	assert.True(t, dict.Equal(dict.String("...°F"), v))
}

func TestSizeTracksEncodedEntries(t *testing.T) {
	testlog.Start(t)
	s := newSeededStore(t)
	want := dict.EncodedSize(s.Snapshot())
	assert.Equal(t, want, s.Size())

	_, err := s.Apply([]dict.Entry{{Key: keyTemp, Value: dict.String("100°F")}})
	require.NoError(t, err)
	assert.Equal(t, dict.EncodedSize(s.Snapshot()), s.Size())
}
