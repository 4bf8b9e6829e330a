//go:build !unix

package qemu

import "os/exec"

func setNewProcessGroup(cmd *exec.Cmd) {}
