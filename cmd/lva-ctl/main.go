// Command lva-ctl sends one logical command to the core's control
// socket. Generalizes the teacher's vox-ctl (a single hardcoded
// "trigger" command) into the full control surface spec.md §6 names.
package main

import (
	"fmt"
	"os"
	"time"

	"lva/pkg/ipc"
)

const controlSockPath = "/tmp/lva-ipc/control.sock"

var commands = map[string]string{
	"manual_wake": ipc.TypeManualWake,
	"mute_toggle": ipc.TypeMuteToggle,
	"volume_up":   ipc.TypeVolumeUp,
	"volume_down": ipc.TypeVolumeDown,
	"cancel":      ipc.TypeCancel,
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <%s>\n", os.Args[0], commandNames())
		os.Exit(2)
	}

	envType, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "lva-ctl: unknown command %q, want one of %s\n", os.Args[1], commandNames())
		os.Exit(2)
	}

	env, err := ipc.New(envType, nil, ipc.SourceExternal, nowSeconds())
	if err != nil {
		fmt.Fprintln(os.Stderr, "lva-ctl: build envelope:", err)
		os.Exit(1)
	}

	if err := ipc.SendLine(controlSockPath, env); err != nil {
		fmt.Fprintln(os.Stderr, "lva-core not reachable:", err)
		os.Exit(1)
	}
}

func commandNames() string {
	out := ""
	for name := range commands {
		if out != "" {
			out += "|"
		}
		out += name
	}
	return out
}

func nowSeconds() float64 { return float64(time.Now().UnixNano()) / 1e9 }
