//go:build linux

package core

import "golang.org/x/sys/unix"

func gettid() int {
	return unix.Gettid()
}
