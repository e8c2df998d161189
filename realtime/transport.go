package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"vizit/utils"
)

// Conn is one established live connection, whatever the transport.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Transport dials one kind of live connection. The channel tries transports
// in preference order; some networks block websockets, so the ordering must
// be preserved.
type Transport interface {
	Name() string
	Dial(ctx context.Context, rawURL, token string) (Conn, error)
}

// WebsocketTransport is the primary transport.
type WebsocketTransport struct {
	HandshakeTimeout time.Duration
}

func (t *WebsocketTransport) Name() string { return "websocket" }

func (t *WebsocketTransport) Dial(ctx context.Context, rawURL, token string) (Conn, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.HandshakeTimeout,
	}
	endpoint, err := withToken(rawURL, token)
	if err != nil {
		return nil, err
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, &utils.AuthExpiredError{Message: "websocket handshake rejected: unauthorized"}
		}
		return nil, &utils.TransportError{Op: "websocket dial", Err: err}
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			return nil, &utils.AuthExpiredError{Message: err.Error()}
		}
		return nil, &utils.TransportError{Op: "websocket read", Err: err}
	}
	return data, nil
}

func (c *wsConn) WriteMessage(data []byte) error {
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &utils.TransportError{Op: "websocket write", Err: err}
	}
	return nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// PollingTransport is the fallback: HTTP long-poll against the same
// endpoint, for networks that block the websocket upgrade.
type PollingTransport struct {
	HTTP *http.Client
	Wait time.Duration // server-side hold per poll
}

func (t *PollingTransport) Name() string { return "long-poll" }

func (t *PollingTransport) Dial(ctx context.Context, rawURL, token string) (Conn, error) {
	base, err := httpEndpoint(rawURL)
	if err != nil {
		return nil, err
	}
	httpClient := t.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	conn := &pollConn{
		client: httpClient,
		base:   base,
		token:  token,
		wait:   t.Wait,
		closed: make(chan struct{}),
	}
	// One zero-wait poll validates the endpoint and the credential before
	// the transport is declared established.
	if err := conn.poll(ctx, 0); err != nil {
		return nil, err
	}
	return conn, nil
}

type pollConn struct {
	client *http.Client
	base   string
	token  string
	wait   time.Duration
	cursor string
	buf    [][]byte
	closed chan struct{}
}

type pollResponse struct {
	Cursor string            `json:"cursor"`
	Events []json.RawMessage `json:"events"`
}

func (c *pollConn) poll(ctx context.Context, wait time.Duration) error {
	q := url.Values{}
	q.Set("cursor", c.cursor)
	q.Set("wait", fmt.Sprint(int(wait.Seconds())))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/poll?"+q.Encode(), nil)
	if err != nil {
		return &utils.TransportError{Op: "long-poll", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return &utils.TransportError{Op: "long-poll", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return &utils.AuthExpiredError{Message: "long-poll rejected: unauthorized"}
	}
	if resp.StatusCode != http.StatusOK {
		return &utils.TransportError{Op: "long-poll", Status: resp.StatusCode}
	}

	var payload pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return &utils.TransportError{Op: "long-poll decode", Err: err}
	}
	c.cursor = payload.Cursor
	for _, ev := range payload.Events {
		c.buf = append(c.buf, []byte(ev))
	}
	return nil
}

func (c *pollConn) ReadMessage() ([]byte, error) {
	for len(c.buf) == 0 {
		select {
		case <-c.closed:
			return nil, &utils.TransportError{Op: "long-poll read", Err: io.EOF}
		default:
		}
		if err := c.poll(context.Background(), c.wait); err != nil {
			return nil, err
		}
	}
	msg := c.buf[0]
	c.buf = c.buf[1:]
	return msg, nil
}

func (c *pollConn) WriteMessage(data []byte) error {
	req, err := http.NewRequest(http.MethodPost, c.base+"/push", bytes.NewReader(data))
	if err != nil {
		return &utils.TransportError{Op: "long-poll write", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return &utils.TransportError{Op: "long-poll write", Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return &utils.TransportError{Op: "long-poll write", Status: resp.StatusCode}
	}
	return nil
}

func (c *pollConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func withToken(rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &utils.TransportError{Op: "parse realtime url", Err: err}
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// httpEndpoint rewrites a ws(s) URL to its http(s) equivalent for the
// polling fallback.
func httpEndpoint(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &utils.TransportError{Op: "parse realtime url", Err: err}
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	return strings.TrimRight(u.String(), "/"), nil
}
