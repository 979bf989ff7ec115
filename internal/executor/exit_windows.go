//go:build windows

package executor

import "os"

// signalExitStatus has no meaning on Windows; exit codes pass through as-is.
func signalExitStatus(*os.ProcessState) (int, bool) {
	return 0, false
}
