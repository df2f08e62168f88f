package main

import (
	"fmt"
	"os"
	"time"

	cli "github.com/spf13/pflag"

	"bmo/internal/ipc"
)

const usage = `usage: bmo-ctl [--socket path] <command>

commands:
  power            click the power button
  ptt down         press and keep holding push-to-talk
  ptt up           release push-to-talk
  ptt hold <dur>   hold push-to-talk for a duration, e.g. 2s
`

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	cli.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	cli.Parse()

	msg, err := parse(cli.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		cli.Usage()
		os.Exit(2)
	}

	if err := ipc.SendCommand(*socket, msg); err != nil {
		fmt.Println("bmo not running:", err)
		os.Exit(1)
	}
}

func parse(args []string) (ipc.ControlMessage, error) {
	if len(args) == 0 {
		return ipc.ControlMessage{}, fmt.Errorf("missing command")
	}

	switch args[0] {
	case ipc.CmdPower:
		return ipc.ControlMessage{Cmd: ipc.CmdPower}, nil

	case ipc.CmdPTT:
		if len(args) < 2 {
			return ipc.ControlMessage{}, fmt.Errorf("ptt needs down, up or hold")
		}
		msg := ipc.ControlMessage{Cmd: ipc.CmdPTT, Action: args[1]}
		if args[1] == ipc.ActionHold {
			if len(args) < 3 {
				return ipc.ControlMessage{}, fmt.Errorf("ptt hold needs a duration")
			}
			d, err := time.ParseDuration(args[2])
			if err != nil {
				return ipc.ControlMessage{}, err
			}
			msg.Hold = d
		}
		return msg, nil
	}

	return ipc.ControlMessage{}, fmt.Errorf("unknown command %q", args[0])
}
