package transport

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// wsConn speaks the request/response protocol over a websocket. Frames are
// JSON-encoded Request/Response values. The pool guarantees exclusivity, so
// no demultiplexing is needed; responses with a foreign correlation id are
// leftovers from an abandoned attempt on this channel and are skipped.
type wsConn struct {
	ws *websocket.Conn
}

// DialWebsocket returns a DialFunc connecting to the execution service at
// the given websocket URL.
func DialWebsocket(url string) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "dialing %s", url)
		}
		return &wsConn{ws: ws}, nil
	}
}

func (c *wsConn) Call(ctx context.Context, req Request) (Response, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return Response{}, errors.Wrap(err, "setting write deadline")
	}
	if err := c.ws.WriteJSON(req); err != nil {
		return Response{}, errors.Wrap(err, "writing request")
	}
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return Response{}, errors.Wrap(err, "setting read deadline")
	}
	for {
		var resp Response
		if err := c.ws.ReadJSON(&resp); err != nil {
			return Response{}, errors.Wrap(err, "reading response")
		}
		if resp.CorrelationID == req.CorrelationID {
			return resp, nil
		}
		// Stale response from an abandoned attempt, keep reading.
	}
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
