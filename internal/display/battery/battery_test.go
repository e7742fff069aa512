package battery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/watchsync/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestStaticClamps(t *testing.T) {
	testlog.Start(t)
	for in, want := range map[int]int{-1: 0, 0: 0, 55: 55, 100: 100, 140: 100} {
		got, err := Static(in).Level()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestSysfsReadsFirstCapacity(t *testing.T) {
	testlog.Start(t)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "AC"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "BAT0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "BAT0", "capacity"), []byte("83\n"), 0o644))

	got, err := Sysfs{Root: root}.Level()
	require.NoError(t, err)
	require.Equal(t, 83, got)
}

func TestSysfsErrors(t *testing.T) {
	testlog.Start(t)
	_, err := Sysfs{Root: t.TempDir()}.Level()
	require.ErrorIs(t, err, ErrNoBattery)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "BAT0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "BAT0", "capacity"), []byte("full"), 0o644))
	_, err = Sysfs{Root: root}.Level()
	require.Error(t, err)
}

func TestNew(t *testing.T) {
	testlog.Start(t)
	src, err := New("static", 40, "")
	require.NoError(t, err)
	require.Equal(t, Static(40), src)
	src, err = New("SysFS", 0, "/tmp/x")
	require.NoError(t, err)
	require.Equal(t, Sysfs{Root: "/tmp/x"}, src)
	_, err = New("acpi", 0, "")
	require.Error(t, err)
}
