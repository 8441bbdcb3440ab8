//go:build darwin

package main

import (
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// adjustRlimit raises the limit on the number of open files. On macOS,
// getrlimit doesn't return the true hard limit (golang/go#30401), so the
// sysctl value is also consulted and the smaller of the two is used.
func adjustRlimit(logger Logger) {
	var limits syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limits)
	if err != nil {
		logger.Printf("Failed to find rlimit from getrlimit: %v", err)
		return
	}

	cmd := exec.Command("/usr/sbin/sysctl", "-n", "kern.maxfilesperproc")
	stdout, err := cmd.Output()
	if err != nil {
		logger.Printf("Failed to find rlimit from sysctl: %v", err)
		return
	}

	sysctlMax, err := strconv.ParseUint(strings.TrimSpace(string(stdout)), 10, 64)
	if err != nil {
		logger.Printf("Failed to parse rlimit from sysctl: %v", err)
		return
	}

	if limits.Max > sysctlMax {
		limits.Max = sysctlMax
	}

	logger.Printf("Initial RLIMIT_NOFILE cur: %d max: %d", limits.Cur, limits.Max)

	limits.Cur = limits.Max

	logger.Printf("Setting RLIMIT_NOFILE cur: %d max: %d", limits.Cur, limits.Max)

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &limits); err != nil {
		logger.Printf("Failed to set rlimit: %v", err)
	}
}
