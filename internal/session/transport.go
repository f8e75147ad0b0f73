package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

// Transport is a duplex ordered frame channel, the boundary spec §1 treats
// as an external collaborator ("only its framing/ordering guarantees are
// contracted"). Implementations must deliver Recv frames in arrival order
// and preserve Send order, but need not be reliable across reconnects.
type Transport interface {
	Send(ctx context.Context, f Frame) error
	Recv(ctx context.Context) (Frame, error)
	Close(reason CloseReason, description string) error
}

// WebsocketTransport adapts a gorilla/websocket connection to Transport,
// the concrete wire binding for the `ws`/`wss` session URL of spec §6.3.
type WebsocketTransport struct {
	conn *websocket.Conn
}

// NewWebsocketTransport wraps an already-upgraded websocket connection.
func NewWebsocketTransport(conn *websocket.Conn) *WebsocketTransport {
	return &WebsocketTransport{conn: conn}
}

func (t *WebsocketTransport) Send(ctx context.Context, f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

func (t *WebsocketTransport) Recv(ctx context.Context) (Frame, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetReadDeadline(deadline); err != nil {
			return Frame{}, err
		}
	}
	_, payload, err := t.conn.ReadMessage()
	if err != nil {
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}
	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return Frame{}, fmt.Errorf("unmarshal frame: %w", err)
	}
	return f, nil
}

// closeCodeFor maps a structured CloseReason onto a websocket close code;
// the description travels as the close frame's text per spec §6.1.
func closeCodeFor(reason CloseReason) int {
	switch reason {
	case Finished:
		return websocket.CloseNormalClosure
	case Rejected, Evicted:
		return websocket.CloseGoingAway
	default:
		return websocket.CloseInternalServerErr
	}
}

func (t *WebsocketTransport) Close(reason CloseReason, description string) error {
	msg := websocket.FormatCloseMessage(closeCodeFor(reason), description)
	_ = t.conn.WriteMessage(websocket.CloseMessage, msg)
	return t.conn.Close()
}
