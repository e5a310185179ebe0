package gonitf

import (
	"sync"
)

// Buffer pools for the scratch spans read by segment readers

// byteSlicePool pools byte slices of various sizes
type byteSlicePool struct {
	// Small buffers (up to 4KB) - one block row of a typical 1024 pixel block
	small sync.Pool
	// Medium buffers (up to 64KB) - block rows of wide or multi-band blocks
	medium sync.Pool
	// Large buffers (up to 1MB) - rows of unblocked images
	large sync.Pool
}

const (
	smallBufferSize  = 4 * 1024    // 4KB
	mediumBufferSize = 64 * 1024   // 64KB
	largeBufferSize  = 1024 * 1024 // 1MB
)

var bufferPool = &byteSlicePool{
	small: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, smallBufferSize)
			return &buf
		},
	},
	medium: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, mediumBufferSize)
			return &buf
		},
	},
	large: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, largeBufferSize)
			return &buf
		},
	},
}

// getBuffer returns a byte slice of exactly the requested length from the pool.
// Call putBuffer when done to return it to the pool.
func getBuffer(size int) []byte {
	if size <= smallBufferSize {
		bufPtr := bufferPool.small.Get().(*[]byte)
		return (*bufPtr)[:size]
	}
	if size <= mediumBufferSize {
		bufPtr := bufferPool.medium.Get().(*[]byte)
		return (*bufPtr)[:size]
	}
	if size <= largeBufferSize {
		bufPtr := bufferPool.large.Get().(*[]byte)
		return (*bufPtr)[:size]
	}
	// For very large buffers, allocate directly
	return make([]byte, size)
}

// putBuffer returns a buffer to the pool.
// The buffer must not be used after calling this function.
func putBuffer(buf []byte) {
	c := cap(buf)
	if c == 0 {
		return
	}

	buf = buf[:c]

	switch c {
	case smallBufferSize:
		bufferPool.small.Put(&buf)
	case mediumBufferSize:
		bufferPool.medium.Put(&buf)
	case largeBufferSize:
		bufferPool.large.Put(&buf)
	}
	// Don't pool non-standard sizes
}
