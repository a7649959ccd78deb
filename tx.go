package odb

import (
	"fmt"
	"runtime/debug"
)

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

// safelyCall turns a panic inside a transaction callback into an error, so
// the caller can roll back and settle the queue instead of unwinding with
// the writer lock held.
func safelyCall(fn func(tx storageTx) error, tx storageTx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}
