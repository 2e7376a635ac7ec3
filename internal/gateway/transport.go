package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
)

// Transport is one duplex gateway connection. *websocket.Conn satisfies it.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// WSDialer dials the gateway with gorilla/websocket.
type WSDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d *WSDialer) Dial(ctx context.Context, u string) (Transport, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, u, d.Header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// gatewayURL appends the connection parameters to base.
func gatewayURL(base string, version int, encoding string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("v", strconv.Itoa(version))
	q.Set("encoding", encoding)
	q.Set("compress", "zlib-stream")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func messageType(c Codec) int {
	if c.Binary() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
