package odb

import "sync"

// Key buffers can be pooled because engines copy keys during Put. Encoded
// values must stay valid until the transaction ends, so those are allocated
// fresh instead.
var keyBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 32768) // max key size in Bolt
	},
}

func releaseKeyBytes(b []byte) {
	keyBytesPool.Put(b[:0])
}

var emptyIndexValue = []byte{}
