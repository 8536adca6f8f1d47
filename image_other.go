//go:build !unix

package relo

// Executable mappings are unix-only; elsewhere images are plain buffers.
func allocImage(size int, _ bool) ([]byte, error) {
	return make([]byte, size), nil
}

func freeImage([]byte, bool) {}
