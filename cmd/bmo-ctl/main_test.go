package main

import (
	"testing"
	"time"

	"bmo/internal/ipc"
)

func TestParse(t *testing.T) {
	tests := []struct {
		args    []string
		want    ipc.ControlMessage
		wantErr bool
	}{
		{args: []string{"power"}, want: ipc.ControlMessage{Cmd: ipc.CmdPower}},
		{args: []string{"ptt", "down"}, want: ipc.ControlMessage{Cmd: ipc.CmdPTT, Action: ipc.ActionDown}},
		{args: []string{"ptt", "up"}, want: ipc.ControlMessage{Cmd: ipc.CmdPTT, Action: ipc.ActionUp}},
		{args: []string{"ptt", "hold", "2s"}, want: ipc.ControlMessage{Cmd: ipc.CmdPTT, Action: ipc.ActionHold, Hold: 2 * time.Second}},
		{args: nil, wantErr: true},
		{args: []string{"ptt"}, wantErr: true},
		{args: []string{"ptt", "hold"}, wantErr: true},
		{args: []string{"ptt", "hold", "forever"}, wantErr: true},
		{args: []string{"trigger"}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parse(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("parse(%q) err = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parse(%q) = %+v, want %+v", tt.args, got, tt.want)
		}
	}
}
