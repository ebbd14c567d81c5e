//go:build !unix

package sandbox

import "os/exec"

// configureProcess relies on exec.CommandContext's default kill of the shell.
func configureProcess(cmd *exec.Cmd) {}
