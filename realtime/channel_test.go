package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vizit/client"
	"vizit/utils"
)

// fakeConn blocks reads until a frame or failure is injected, and unblocks
// on Close so stale read loops can exit.
type fakeConn struct {
	frames    chan []byte
	errs      chan error
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case err := <-c.errs:
		return nil, err
	case <-c.done:
		return nil, &utils.TransportError{Op: "read", Err: errors.New("connection closed")}
	}
}

func (c *fakeConn) WriteMessage(data []byte) error { return nil }

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// fakeTransport hands out fakeConns and counts dials.
type fakeTransport struct {
	mu      sync.Mutex
	dials   int
	dialErr error
	conns   []*fakeConn
}

func (t *fakeTransport) Name() string { return "fake" }

func (t *fakeTransport) Dial(ctx context.Context, rawURL, token string) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials++
	if t.dialErr != nil {
		return nil, t.dialErr
	}
	conn := newFakeConn()
	t.conns = append(t.conns, conn)
	return conn, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

// fakeRefresher counts refresh calls and can be made slow to provoke
// concurrent callers.
type fakeRefresher struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	pair  client.TokenPair
}

func (f *fakeRefresher) RefreshToken(ctx context.Context, refreshToken string) (*client.TokenPair, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	pair := f.pair
	return &pair, nil
}

func newTestChannel(transport Transport, auth Refresher, tokens *utils.TokenStore) *Channel {
	return NewChannel(Options{
		URL:                  "ws://example.test/realtime",
		ConnectTimeout:       time.Second,
		ReconnectMaxAttempts: 2,
		Transports:           []Transport{transport},
	}, auth, tokens)
}

func TestConnect_IdempotentForSameToken(t *testing.T) {
	transport := &fakeTransport{}
	tokens := utils.NewTokenStore("access-1", "refresh-1")
	ch := newTestChannel(transport, &fakeRefresher{}, tokens)
	defer ch.Disconnect()

	first, err := ch.Connect("access-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ch.Connect("access-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatal("same token on a live connection must return the identical conn")
	}
	if got := transport.dialCount(); got != 1 {
		t.Fatalf("expected exactly one handshake, got %d", got)
	}
}

func TestConnect_NewTokenTearsDownOldConnection(t *testing.T) {
	transport := &fakeTransport{}
	tokens := utils.NewTokenStore("access-1", "refresh-1")
	ch := newTestChannel(transport, &fakeRefresher{}, tokens)
	defer ch.Disconnect()

	if _, err := ch.Connect("access-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ch.Connect("access-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := transport.dialCount(); got != 2 {
		t.Fatalf("expected two handshakes, got %d", got)
	}
	if !transport.conns[0].closed.Load() {
		t.Fatal("old connection must be closed before the new handshake")
	}
	if transport.conns[1].closed.Load() {
		t.Fatal("new connection must stay open")
	}
}

func TestConnect_FallsBackToSecondaryTransport(t *testing.T) {
	primary := &fakeTransport{dialErr: &utils.TransportError{Op: "dial", Err: errors.New("blocked")}}
	secondary := &fakeTransport{}
	tokens := utils.NewTokenStore("access-1", "refresh-1")
	ch := NewChannel(Options{
		URL:                  "ws://example.test/realtime",
		ConnectTimeout:       time.Second,
		ReconnectMaxAttempts: 2,
		Transports:           []Transport{primary, secondary},
	}, &fakeRefresher{}, tokens)
	defer ch.Disconnect()

	if _, err := ch.Connect("access-1"); err != nil {
		t.Fatalf("fallback transport should have connected: %v", err)
	}
	if primary.dialCount() != 1 || secondary.dialCount() != 1 {
		t.Fatalf("expected primary then secondary, got %d/%d", primary.dialCount(), secondary.dialCount())
	}
}

func TestRefreshCredentials_SingleFlight(t *testing.T) {
	refresher := &fakeRefresher{
		delay: 50 * time.Millisecond,
		pair:  client.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"},
	}
	tokens := utils.NewTokenStore("access-1", "refresh-1")
	ch := newTestChannel(&fakeTransport{}, refresher, tokens)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ch.RefreshCredentials(context.Background())
		}(i)
	}
	wg.Wait()

	if got := refresher.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: unexpected error: %v", i, err)
		}
	}
	if tokens.Access() != "access-2" || tokens.Refresh() != "refresh-2" {
		t.Fatalf("token store not updated: %s/%s", tokens.Access(), tokens.Refresh())
	}
}

func TestRefreshCredentials_FailureClearsTokensAndStops(t *testing.T) {
	refresher := &fakeRefresher{err: &utils.AuthExpiredError{Message: "refresh token revoked"}}
	tokens := utils.NewTokenStore("access-1", "refresh-1")
	transport := &fakeTransport{}
	ch := newTestChannel(transport, refresher, tokens)

	if _, err := ch.Connect("access-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ch.RefreshCredentials(context.Background()); err == nil {
		t.Fatal("expected the refresh failure to surface")
	}
	if tokens.Access() != "" || tokens.Refresh() != "" {
		t.Fatal("failed refresh must clear stored credentials")
	}
	if ch.State() != StateDisconnected {
		t.Fatalf("channel must stay down, state=%s", ch.State())
	}
	if got := refresher.calls.Load(); got != 1 {
		t.Fatalf("failed refresh must not be retried, got %d calls", got)
	}
}

func TestRefreshCredentials_SuccessReconnectsViaTokenStore(t *testing.T) {
	refresher := &fakeRefresher{pair: client.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}}
	tokens := utils.NewTokenStore("access-1", "refresh-1")
	transport := &fakeTransport{}
	ch := newTestChannel(transport, refresher, tokens)
	defer ch.Disconnect()

	// Emulate the composition root: a token change reconnects.
	tokens.OnChange(func(access string) {
		if access != "" {
			ch.Connect(access)
		}
	})

	if _, err := ch.Connect("access-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ch.RefreshCredentials(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.State() != StateConnected {
		t.Fatalf("expected reconnect with the new token, state=%s", ch.State())
	}
	if got := transport.dialCount(); got != 2 {
		t.Fatalf("expected old + new handshake, got %d", got)
	}
	if !transport.conns[0].closed.Load() {
		t.Fatal("stale connection must be torn down on refresh")
	}
}

func TestSubscribe_ReceivesDispatchedEvents(t *testing.T) {
	transport := &fakeTransport{}
	tokens := utils.NewTokenStore("access-1", "refresh-1")
	ch := newTestChannel(transport, &fakeRefresher{}, tokens)
	defer ch.Disconnect()

	sub := ch.Subscribe("visit-7")
	other := ch.Subscribe("visit-8")
	defer ch.Unsubscribe("visit-8", other)

	if _, err := ch.Connect("access-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transport.conns[0].frames <- []byte(`{"type":"message","visit_id":"visit-7","message":{"id":"m1","visit_id":"visit-7","content":"ping"}}`)

	select {
	case event := <-sub:
		if event.Message == nil || event.Message.ID != "m1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}

	select {
	case event := <-other:
		t.Fatalf("event leaked to the wrong visit: %+v", event)
	default:
	}

	ch.Unsubscribe("visit-7", sub)
	if _, ok := <-sub; ok {
		t.Fatal("unsubscribed channel must be closed")
	}
}
