package ipc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "ctl.sock")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := StartServer(ctx, sock, func(msg ControlMessage) Reply {
		if msg.Cmd == "say" {
			return Reply{OK: true, Detail: "said: " + msg.Arg}
		}
		return Reply{OK: false, Detail: "unknown command"}
	})
	require.NoError(t, err)

	rep, err := Send(sock, ControlMessage{Cmd: "say", Arg: "hello"})
	require.NoError(t, err)
	assert.True(t, rep.OK)
	assert.Equal(t, "said: hello", rep.Detail)

	rep, err = Send(sock, ControlMessage{Cmd: "bogus"})
	require.NoError(t, err)
	assert.False(t, rep.OK)
}

func TestSendToMissingSocket(t *testing.T) {
	_, err := Send(filepath.Join(t.TempDir(), "nope.sock"), ControlMessage{Cmd: "status"})
	assert.Error(t, err)
}

func TestServerStopsWithContext(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "ctl.sock")
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, StartServer(ctx, sock, func(ControlMessage) Reply {
		return Reply{OK: true}
	}))

	_, err := Send(sock, ControlMessage{Cmd: "status"})
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, func() bool {
		_, err := Send(sock, ControlMessage{Cmd: "status"})
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}
