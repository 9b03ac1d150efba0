package main

import (
	"fmt"
	"os"
	"strings"

	cli "github.com/spf13/pflag"

	"github.com/CrashBytes/ambient-ai-interface/internal/ipc"
)

func main() {
	sockPath := cli.StringP("socket", "s", ipc.SocketPath, "Control socket path")
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ambient-ctl [--socket PATH] <trigger|say|transcribe|status|stop> [arg]")
		os.Exit(2)
	}

	msg := ipc.ControlMessage{Cmd: args[0]}
	if len(args) > 1 {
		msg.Arg = strings.Join(args[1:], " ")
	}

	rep, err := ipc.Send(*sockPath, msg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ambientd not running:", err)
		os.Exit(1)
	}

	if rep.Detail != "" {
		fmt.Println(rep.Detail)
	}
	if !rep.OK {
		os.Exit(1)
	}
}
