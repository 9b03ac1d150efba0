package assistant

import (
	"context"
	"encoding/json"
	log "log/slog"
	"net/url"

	"github.com/gorilla/websocket"
)

// BusMessage is the JSON frame exchanged with a hub over the websocket
// frontend. Text-only turns: audio stays on the local loop.
type BusMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

type Bus struct {
	conn *websocket.Conn
}

func NewBus(wsURL string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	log.Info("Connected to bus", "url", wsURL)
	return &Bus{conn: conn}, nil
}

func (b *Bus) Read() (*BusMessage, error) {
	_, raw, err := b.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var m BusMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (b *Bus) Write(m *BusMessage) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Bus) Close() error {
	return b.conn.Close()
}

// RunBus serves text turns from a hub: each incoming message goes through
// the same understanding/dispatch path as a spoken command, and the reply
// is written back to the sender. Returns when the connection drops or the
// context is cancelled.
func (a *Assistant) RunBus(ctx context.Context, wsURL string) error {
	bus, err := NewBus(wsURL)
	if err != nil {
		return err
	}
	defer bus.Close()

	// Unblock the read loop on cancellation.
	go func() {
		<-ctx.Done()
		bus.Close()
	}()

	a.running.Store(true)
	defer a.running.Store(false)

	log.Info("Assistant serving bus", "url", wsURL)

	for {
		msg, err := bus.Read()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if msg.Content == "" {
			continue
		}

		reply := a.ProcessText(ctx, msg.Content)

		resp := &BusMessage{
			From:    "ambient",
			To:      msg.From,
			Kind:    "reply",
			Content: reply,
		}
		if err := bus.Write(resp); err != nil {
			log.Error("Failed to send bus reply", "err", err)
		}
	}
}
