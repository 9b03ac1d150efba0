package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
)

// SocketPath is the default unix socket the daemon listens on.
const SocketPath = "/tmp/ambientd.sock"

// ControlMessage is one command sent over the control socket.
type ControlMessage struct {
	Cmd string `json:"cmd"`
	Arg string `json:"arg,omitempty"`
}

// Reply is the daemon's answer to a control command.
type Reply struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// StartServer listens on path and dispatches each connection's message to
// handler, writing the handler's reply back. The listener closes when ctx
// is done.
func StartServer(ctx context.Context, path string, handler func(ControlMessage) Reply) error {
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
		os.Remove(path)
	}()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			go handleConn(conn, handler)
		}
	}()

	return nil
}

func handleConn(conn net.Conn, handler func(ControlMessage) Reply) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return
	}
	json.NewEncoder(conn).Encode(handler(msg))
}

// Send delivers one command to the daemon at path and waits for its reply.
func Send(path string, msg ControlMessage) (Reply, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return Reply{}, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return Reply{}, fmt.Errorf("send: %w", err)
	}

	var rep Reply
	if err := json.NewDecoder(conn).Decode(&rep); err != nil {
		return Reply{}, fmt.Errorf("read reply: %w", err)
	}
	return rep, nil
}
