package sandbox

import (
	"os"
	"runtime"
	"strings"
)

// shellInvocation returns the interpreter and arguments that run command.
// A non-login shell is used so profile scripts cannot change behavior
// between attempts.
func shellInvocation(shell, command string) (string, []string) {
	if shell = strings.TrimSpace(shell); shell != "" {
		return shell, []string{"-c", command}
	}
	if runtime.GOOS == "windows" {
		comspec := strings.TrimSpace(os.Getenv("COMSPEC"))
		if comspec == "" {
			comspec = "cmd"
		}
		return comspec, []string{"/C", command}
	}
	return "/bin/sh", []string{"-c", command}
}
