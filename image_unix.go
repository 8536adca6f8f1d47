//go:build unix

package relo

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// allocImage returns the zeroed buffer backing a module image. With exec
// set, the image lives in an anonymous read-write-execute mapping so
// relocated code is directly runnable.
func allocImage(size int, exec bool) ([]byte, error) {
	if !exec || size == 0 {
		return make([]byte, size), nil
	}
	b, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %v", ErrNoMemory, err)
	}
	return b, nil
}

func freeImage(b []byte, exec bool) {
	if exec && len(b) > 0 {
		_ = unix.Munmap(b)
	}
}
