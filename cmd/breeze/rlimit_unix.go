//go:build !darwin && !windows

package main

import (
	"syscall"
)

// adjustRlimit raises the limit on the number of open files, so breeze can
// serve many concurrent range reads without running out of file descriptors.
func adjustRlimit(logger Logger) {
	var limits syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limits)
	if err != nil {
		logger.Printf("Failed to find rlimit from getrlimit: %v", err)
		return
	}

	logger.Printf("Initial RLIMIT_NOFILE cur: %d max: %d", limits.Cur, limits.Max)

	limits.Cur = limits.Max

	logger.Printf("Setting RLIMIT_NOFILE cur: %d max: %d", limits.Cur, limits.Max)

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &limits); err != nil {
		logger.Printf("Failed to set rlimit: %v", err)
	}
}
