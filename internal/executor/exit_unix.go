//go:build !windows

package executor

import (
	"os"
	"syscall"
)

// signalExitStatus maps a signal death to the shell's 128+signal convention.
func signalExitStatus(state *os.ProcessState) (int, bool) {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return 0, false
	}
	return 128 + int(ws.Signal()), true
}
