package app

import (
	"context"
	"testing"
	"time"

	"github.com/danmuck/watchsync/internal/appsync"
	"github.com/danmuck/watchsync/internal/companion"
	"github.com/danmuck/watchsync/internal/config"
	"github.com/danmuck/watchsync/internal/display/battery"
	"github.com/danmuck/watchsync/internal/icon"
	"github.com/danmuck/watchsync/internal/protocol/dict"
	"github.com/danmuck/watchsync/internal/testutil/testlog"
	"github.com/danmuck/watchsync/internal/transport/loopback"
	"github.com/danmuck/watchsync/internal/weather"
	"github.com/stretchr/testify/require"
)

func TestAppSyncsWithCompanion(t *testing.T) {
	testlog.Start(t)
	device, host := loopback.Pair(loopback.Options{})
	defer host.Close()

	peer := companion.NewPeer(companion.PeerConfig{}, host, weather.Conditions{
		Icon: icon.CodeRain, Temperature: "58°F", Location: "St Pebblesburg",
	})

	loader := icon.NewLoader()
	a, err := New(Options{
		Config:    config.Default(),
		Transport: device,
		Loader:    loader,
		Battery:   battery.Static(55),
	})
	require.NoError(t, err)

	v := a.Face().Snapshot(time.Now())
	require.Equal(t, "cloud", v.Icon.Name)
	require.Equal(t, "...°F", v.Temperature)
	require.Equal(t, ".5", v.Battery)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		v := a.Face().Snapshot(time.Now())
		return v.Icon.Name == "rain" && v.Temperature == "58°F"
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, loader.Live())

	_, err = peer.Publish(weather.Conditions{Icon: icon.CodeSnow, Temperature: "30°F", Location: "St Pebblesburg"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		v := a.Face().Snapshot(time.Now())
		return v.Icon.Name == "snow" && v.Temperature == "30°F"
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, loader.Live())

	st := a.Status()
	require.Equal(t, appsync.StateIdle, st.State)
	require.GreaterOrEqual(t, st.InboundApplied, uint64(2))

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	require.Zero(t, loader.Live())
}

func TestRefreshWithoutPeerTimesOut(t *testing.T) {
	testlog.Start(t)
	device, host := loopback.Pair(loopback.Options{})
	defer host.Close()

	cfg := config.Default()
	cfg.Sync.RequestTimeout = 30 * time.Millisecond
	a, err := New(Options{Config: cfg, Transport: device, TickInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx) }()

	require.Eventually(t, func() bool {
		st := a.Status()
		return st.RequestsSent == 1 && st.State == appsync.StateIdle && st.LastError != nil
	}, 2*time.Second, 10*time.Millisecond)
	require.ErrorIs(t, a.Status().LastError, appsync.ErrRequestTimeout)
}

func TestNewValidates(t *testing.T) {
	testlog.Start(t)
	device, host := loopback.Pair(loopback.Options{})
	defer device.Close()
	defer host.Close()

	_, err := New(Options{Config: config.Default()})
	require.Error(t, err)

	cfg := config.Default()
	cfg.Seed.Icon = 7
	_, err = New(Options{Config: cfg, Transport: device})
	require.ErrorIs(t, err, icon.ErrUnknownCode)
}

func TestInvalidTextSkipsOnlyThatKey(t *testing.T) {
	testlog.Start(t)
	device, host := loopback.Pair(loopback.Options{})
	defer host.Close()
	a, err := New(Options{Config: config.Default(), Transport: device})
	require.NoError(t, err)
	defer a.Close()

	payload, err := dict.Codec{}.Encode([]dict.Entry{
		{Key: weather.KeyTemperature, Value: dict.Text{'5', 0xff, 'F'}},
		{Key: weather.KeyLocation, Value: dict.String("Port Wren")},
	})
	require.NoError(t, err)
	res, err := a.Engine().Deliver(payload)
	require.NoError(t, err)
	require.Len(t, res.Rejected, 1)
	require.Equal(t, weather.KeyTemperature, res.Rejected[0].Key)

	v := a.Face().Snapshot(time.Now())
	require.Equal(t, "...°F", v.Temperature)
	require.Equal(t, "Port Wren", v.Location)
}
