package upstream

import "sync"

// BufferPool reuses read-path byte slices across the session's inbound
// frames instead of allocating one per message, in three size tiers.
// Adapted from the teacher's utils/buffer_pool.go.
type BufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

const (
	smallBufferSize  = 1024
	mediumBufferSize = 10 * 1024
	largeBufferSize  = 64 * 1024
)

// NewBufferPool returns a BufferPool with its three tiers initialized.
func NewBufferPool() *BufferPool {
	bp := &BufferPool{}
	bp.small.New = func() interface{} { b := make([]byte, smallBufferSize); return &b }
	bp.medium.New = func() interface{} { b := make([]byte, mediumBufferSize); return &b }
	bp.large.New = func() interface{} { b := make([]byte, largeBufferSize); return &b }
	return bp
}

// Get returns a buffer of at least size bytes from the tier that fits it.
func (bp *BufferPool) Get(size int) []byte {
	var p *sync.Pool
	switch {
	case size <= smallBufferSize:
		p = &bp.small
	case size <= mediumBufferSize:
		p = &bp.medium
	default:
		p = &bp.large
	}
	buf := *(p.Get().(*[]byte))
	if cap(buf) < size {
		return make([]byte, size)
	}
	return buf[:size]
}

// Put returns buf to the tier matching its capacity. Buffers outside all
// three tiers are dropped for the GC to collect.
func (bp *BufferPool) Put(buf []byte) {
	c := cap(buf)
	switch c {
	case smallBufferSize:
		bp.small.Put(&buf)
	case mediumBufferSize:
		bp.medium.Put(&buf)
	case largeBufferSize:
		bp.large.Put(&buf)
	}
}
