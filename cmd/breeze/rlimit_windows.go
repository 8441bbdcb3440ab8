//go:build windows

package main

// adjustRlimit is a no-op on windows; there is no equivalent of
// RLIMIT_NOFILE to raise.
func adjustRlimit(logger Logger) {}
