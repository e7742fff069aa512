package loopback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/watchsync/internal/testutil/testlog"
	"github.com/danmuck/watchsync/internal/transport"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	sent    []transport.Handle
	failed  []error
	inbound [][]byte
	events  chan string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(chan string, 16)}
}

func (s *recordingSink) OutboxSent(h transport.Handle) {
	s.mu.Lock()
	s.sent = append(s.sent, h)
	s.mu.Unlock()
	s.events <- "sent"
}

func (s *recordingSink) OutboxFailed(_ transport.Handle, err error) {
	s.mu.Lock()
	s.failed = append(s.failed, err)
	s.mu.Unlock()
	s.events <- "failed"
}

func (s *recordingSink) InboxReceived(payload []byte) {
	s.mu.Lock()
	s.inbound = append(s.inbound, payload)
	s.mu.Unlock()
	s.events <- "inbound"
}

func wait(t *testing.T, s *recordingSink, want string) {
	t.Helper()
	select {
	case got := <-s.events:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}

func TestPairDeliversAndCompletes(t *testing.T) {
	testlog.Start(t)
	a, b := Pair(Options{})
	defer a.Close()
	defer b.Close()
	sa, sb := newRecordingSink(), newRecordingSink()
	a.Attach(sa)
	b.Attach(sb)

	h, err := a.OpenOutbound()
	require.NoError(t, err)
	payload := []byte{1, 2, 3}
	require.NoError(t, a.Submit(h, payload))
	payload[0] = 9

	wait(t, sb, "inbound")
	wait(t, sa, "sent")
	sb.mu.Lock()
	require.Equal(t, []byte{1, 2, 3}, sb.inbound[0])
	sb.mu.Unlock()
	sa.mu.Lock()
	require.Equal(t, h, sa.sent[0])
	sa.mu.Unlock()

	_, err = a.OpenOutbound()
	require.NoError(t, err, "slot should be free after completion")
}

func TestOpenOutboundBusyUntilCompletion(t *testing.T) {
	testlog.Start(t)
	a, b := Pair(Options{Latency: 50 * time.Millisecond})
	defer a.Close()
	defer b.Close()
	sa := newRecordingSink()
	a.Attach(sa)
	b.Attach(newRecordingSink())

	h, err := a.OpenOutbound()
	require.NoError(t, err)
	require.NoError(t, a.Submit(h, []byte{1}))
	_, err = a.OpenOutbound()
	require.ErrorIs(t, err, transport.ErrBusy)
	wait(t, sa, "sent")
}

func TestFailNextReportsFailure(t *testing.T) {
	testlog.Start(t)
	a, b := Pair(Options{})
	defer a.Close()
	defer b.Close()
	sa, sb := newRecordingSink(), newRecordingSink()
	a.Attach(sa)
	b.Attach(sb)

	a.FailNext(transport.Fatal("injected", nil))
	h, err := a.OpenOutbound()
	require.NoError(t, err)
	require.NoError(t, a.Submit(h, []byte{1}))
	wait(t, sa, "failed")
	sa.mu.Lock()
	require.False(t, transport.IsRetriable(sa.failed[0]))
	sa.mu.Unlock()
	select {
	case ev := <-sb.events:
		t.Fatalf("peer should not see the payload, got %s", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropNextCompletesWithoutDelivery(t *testing.T) {
	testlog.Start(t)
	a, b := Pair(Options{})
	defer a.Close()
	defer b.Close()
	sa, sb := newRecordingSink(), newRecordingSink()
	a.Attach(sa)
	b.Attach(sb)

	a.DropNext()
	h, err := a.OpenOutbound()
	require.NoError(t, err)
	require.NoError(t, a.Submit(h, []byte{1}))
	wait(t, sa, "sent")
	require.Len(t, sb.events, 0)
}

func TestClosedPeerFailsRetriably(t *testing.T) {
	testlog.Start(t)
	a, b := Pair(Options{})
	defer a.Close()
	sa := newRecordingSink()
	a.Attach(sa)
	require.NoError(t, b.Close())

	h, err := a.OpenOutbound()
	require.NoError(t, err)
	require.NoError(t, a.Submit(h, []byte{1}))
	wait(t, sa, "failed")
	sa.mu.Lock()
	require.True(t, errors.Is(sa.failed[0], transport.ErrNotConnected))
	require.True(t, transport.IsRetriable(sa.failed[0]))
	sa.mu.Unlock()
}

func TestClosedEndpointRejectsOpen(t *testing.T) {
	testlog.Start(t)
	a, b := Pair(Options{})
	defer b.Close()
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	_, err := a.OpenOutbound()
	require.ErrorIs(t, err, transport.ErrClosed)
}

func TestSubmitUnknownHandle(t *testing.T) {
	testlog.Start(t)
	a, b := Pair(Options{})
	defer a.Close()
	defer b.Close()
	err := a.Submit(transport.NewHandle(), []byte{1})
	require.ErrorIs(t, err, transport.ErrUnknownHandle)
}
