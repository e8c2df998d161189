package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"vizit/client"
	"vizit/models"
	"vizit/utils"
)

// Channel states.
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
)

// Refresher is the slice of the marketplace API the channel needs.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*client.TokenPair, error)
}

// Options configures a channel.
type Options struct {
	URL                  string
	ConnectTimeout       time.Duration
	ReconnectMaxAttempts int
	Transports           []Transport // preference order; defaults to websocket then long-poll
}

// Channel owns the single live connection for the process. It is an
// explicitly constructed instance handed out by the composition root; only
// the channel touches the underlying transport. Transport failures drive a
// supervised reconnect with capped attempts; credential expiry instead runs
// a single-flight refresh and waits for the owner to reconnect with the new
// token.
type Channel struct {
	opts   Options
	auth   Refresher
	tokens *utils.TokenStore
	logger *zap.Logger

	mu           sync.Mutex
	state        string
	conn         Conn
	currentToken string
	attempts     int
	gen          int // bumped on every teardown so stale read loops exit
	subs         map[string]map[chan models.ChatEvent]struct{}

	refresh singleflight.Group
}

// NewChannel builds a disconnected channel.
func NewChannel(opts Options, auth Refresher, tokens *utils.TokenStore) *Channel {
	if len(opts.Transports) == 0 {
		opts.Transports = []Transport{
			&WebsocketTransport{HandshakeTimeout: opts.ConnectTimeout},
			&PollingTransport{Wait: 25 * time.Second},
		}
	}
	if opts.ReconnectMaxAttempts <= 0 {
		opts.ReconnectMaxAttempts = 5
	}
	return &Channel{
		opts:   opts,
		auth:   auth,
		tokens: tokens,
		logger: utils.GetLogger(),
		state:  StateDisconnected,
		subs:   make(map[string]map[chan models.ChatEvent]struct{}),
	}
}

// State returns the current connection state.
func (ch *Channel) State() string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// Connect establishes the live connection for the given token. It is
// idempotent: an existing connection with the same token is returned as-is
// with no new handshake. A different token tears the old connection down
// first so two live connections never coexist.
func (ch *Channel) Connect(token string) (Conn, error) {
	ch.mu.Lock()
	if ch.conn != nil && ch.currentToken == token && ch.state == StateConnected {
		conn := ch.conn
		ch.mu.Unlock()
		return conn, nil
	}
	if ch.conn != nil {
		ch.teardownLocked()
	}
	ch.state = StateConnecting
	ch.currentToken = token
	ch.gen++
	gen := ch.gen
	ch.mu.Unlock()

	conn, err := ch.dial(token)

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if gen != ch.gen {
		// Superseded by a newer Connect/Disconnect while dialing.
		if conn != nil {
			conn.Close()
		}
		return nil, &utils.TransportError{Op: "connect", Err: context.Canceled}
	}
	if err != nil {
		ch.state = StateDisconnected
		return nil, err
	}
	ch.conn = conn
	ch.state = StateConnected
	ch.attempts = 0
	go ch.readLoop(conn, gen, token)
	return conn, nil
}

// dial walks the transport preference order with the configured timeout.
func (ch *Channel) dial(token string) (Conn, error) {
	var lastErr error
	for _, transport := range ch.opts.Transports {
		ctx, cancel := context.WithTimeout(context.Background(), ch.opts.ConnectTimeout)
		conn, err := transport.Dial(ctx, ch.opts.URL, token)
		cancel()
		if err == nil {
			ch.logger.Info("realtime connected", zap.String("transport", transport.Name()))
			return conn, nil
		}
		lastErr = err
		if utils.IsAuthExpired(err) {
			// No point trying another transport with a dead credential.
			return nil, err
		}
		ch.logger.Warn("realtime transport failed, trying next",
			zap.String("transport", transport.Name()), zap.Error(err))
	}
	return nil, lastErr
}

// Disconnect tears the connection down and stops any reconnect supervision.
func (ch *Channel) Disconnect() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.teardownLocked()
	ch.currentToken = ""
	ch.state = StateDisconnected
}

// teardownLocked closes the live connection and invalidates its read loop.
// Subscriptions survive; listeners are reattached by the next read loop.
func (ch *Channel) teardownLocked() {
	if ch.conn != nil {
		ch.conn.Close()
		ch.conn = nil
	}
	ch.gen++
}

// Subscribe returns a receive channel for events scoped to one visit.
func (ch *Channel) Subscribe(visitID string) chan models.ChatEvent {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	sub := make(chan models.ChatEvent, 16)
	if ch.subs[visitID] == nil {
		ch.subs[visitID] = make(map[chan models.ChatEvent]struct{})
	}
	ch.subs[visitID][sub] = struct{}{}
	return sub
}

// Unsubscribe releases a subscription obtained from Subscribe.
func (ch *Channel) Unsubscribe(visitID string, sub chan models.ChatEvent) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if set, ok := ch.subs[visitID]; ok {
		if _, ok := set[sub]; ok {
			delete(set, sub)
			close(sub)
		}
		if len(set) == 0 {
			delete(ch.subs, visitID)
		}
	}
}

// readLoop pumps frames from one connection until it dies or is superseded.
func (ch *Channel) readLoop(conn Conn, gen int, token string) {
	for {
		data, err := conn.ReadMessage()
		ch.mu.Lock()
		stale := gen != ch.gen
		ch.mu.Unlock()
		if stale {
			return
		}
		if err != nil {
			ch.handleReadFailure(token, err)
			return
		}
		var event models.ChatEvent
		if err := json.Unmarshal(data, &event); err != nil {
			ch.logger.Warn("realtime: dropping malformed frame", zap.Error(err))
			continue
		}
		ch.dispatch(event)
	}
}

func (ch *Channel) dispatch(event models.ChatEvent) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	for sub := range ch.subs[event.VisitID] {
		select {
		case sub <- event:
		default:
			// Slow consumer; the polling fallback resynchronizes it.
		}
	}
}

// handleReadFailure classifies a dead connection: credential expiry
// short-circuits into the single-flight refresh, anything else goes through
// supervised reconnection.
func (ch *Channel) handleReadFailure(token string, err error) {
	ch.mu.Lock()
	ch.teardownLocked()
	ch.state = StateDisconnected
	ch.mu.Unlock()

	if isAuthExpired(err) || utils.TokenExpired(token) {
		ch.logger.Info("realtime: credential expired, refreshing")
		if refreshErr := ch.RefreshCredentials(context.Background()); refreshErr != nil {
			ch.logger.Warn("realtime: refresh failed, re-authentication required", zap.Error(refreshErr))
		}
		return
	}

	ch.supervisedReconnect(token)
}

// supervisedReconnect retries the same token with linearly increasing
// backoff up to the configured cap. After the cap the channel stays down
// and polling remains the sole source of truth.
func (ch *Channel) supervisedReconnect(token string) {
	for {
		ch.mu.Lock()
		if ch.currentToken != token {
			ch.mu.Unlock()
			return
		}
		ch.attempts++
		attempt := ch.attempts
		ch.mu.Unlock()

		if attempt > ch.opts.ReconnectMaxAttempts {
			ch.logger.Warn("realtime: reconnect attempts exhausted, live updates unavailable",
				zap.Int("attempts", attempt-1))
			return
		}

		delay := time.Duration(attempt*2) * time.Second
		ch.logger.Info("realtime: reconnecting",
			zap.Int("attempt", attempt), zap.Duration("backoff", delay))
		time.Sleep(delay)

		if _, err := ch.Connect(token); err == nil {
			return
		} else if utils.IsAuthExpired(err) {
			ch.handleReadFailure(token, err)
			return
		}
	}
}

// RefreshCredentials runs the credential refresh with single-flight
// semantics: concurrent callers share one in-flight /auth/refresh call and
// its outcome. On success the stale connection identity is cleared and the
// token store is updated; its observers reconnect with the new token. On
// failure the stored credentials are cleared and no retry is attempted;
// the user must re-authenticate.
func (ch *Channel) RefreshCredentials(ctx context.Context) error {
	_, err, _ := ch.refresh.Do("refresh", func() (interface{}, error) {
		refreshToken := ch.tokens.Refresh()
		if refreshToken == "" {
			return nil, &utils.AuthExpiredError{Message: "no refresh token available"}
		}
		pair, err := ch.auth.RefreshToken(ctx, refreshToken)
		if err != nil {
			ch.mu.Lock()
			ch.teardownLocked()
			ch.currentToken = ""
			ch.state = StateDisconnected
			ch.mu.Unlock()
			ch.tokens.Clear()
			return nil, err
		}

		ch.mu.Lock()
		ch.teardownLocked()
		ch.currentToken = ""
		ch.state = StateDisconnected
		ch.mu.Unlock()
		// Observers of the token store see the change and reconnect.
		ch.tokens.Set(pair.AccessToken, pair.RefreshToken)
		return pair, nil
	})
	return err
}

// isAuthExpired is the single place that recognizes credential-expiry
// wording on transport errors. Server-side error codes would replace it.
func isAuthExpired(err error) bool {
	if utils.IsAuthExpired(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"jwt expired", "token expired", "токен истек", "token muddati"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
