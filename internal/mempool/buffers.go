// Package mempool pools the byte buffers used to encode response images.
package mempool

import (
	"bytes"
	"sync"
)

const (
	// minClass is the smallest buffer capacity handed out.
	minClass = 64 * 1024
	// MaxPooledBytes caps the capacity of buffers kept for reuse; larger ones
	// are left to the garbage collector.
	MaxPooledBytes = 32 * 1024 * 1024
)

var bufferPools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to the next power of two, starting at minClass.
func sizeClass(n int) int {
	c := minClass
	for c < n {
		c <<= 1
	}
	return c
}

func poolFor(cls int) *sync.Pool {
	pAny, _ := bufferPools.LoadOrStore(cls, &sync.Pool{New: func() any {
		return bytes.NewBuffer(make([]byte, 0, cls))
	}})
	return pAny.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// GetBuffer returns an empty buffer with capacity for at least sizeHint
// bytes. Return it with PutBuffer once its contents are no longer used.
func GetBuffer(sizeHint int) *bytes.Buffer {
	cls := sizeClass(sizeHint)
	buf, ok := poolFor(cls).Get().(*bytes.Buffer)
	if !ok || buf.Cap() < cls {
		return bytes.NewBuffer(make([]byte, 0, cls))
	}
	buf.Reset()
	return buf
}

// PutBuffer hands buf back for reuse. Nil and oversized buffers are dropped.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > MaxPooledBytes {
		return
	}
	// file under the largest class the buffer can satisfy
	cls := minClass
	for cls<<1 <= buf.Cap() {
		cls <<= 1
	}
	if buf.Cap() < cls {
		return
	}
	buf.Reset()
	poolFor(cls).Put(buf)
}
