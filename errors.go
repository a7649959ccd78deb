package odb

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed is returned by operations on a closed Database.
	ErrClosed = errors.New("odb: database is closed")

	// ErrKeyExists is returned by Add when the primary key is already present.
	ErrKeyExists = errors.New("odb: key already exists")

	// ErrUnknownStore is returned by Use for a store missing from the config.
	ErrUnknownStore = errors.New("odb: unknown store")

	// ErrNotKeyValue is returned by item operations on a non-KV store.
	ErrNotKeyValue = errors.New("odb: not a key-value store")

	// ErrInvalidKey is returned when a value cannot serve as a key
	// (anything other than numbers, strings, times and arrays of those).
	ErrInvalidKey = errors.New("odb: invalid key")

	// ErrVersionMismatch is returned when the stored database version is
	// greater than the declared one.
	ErrVersionMismatch = errors.New("odb: stored version is newer than the declared version")
)

// Break stops Each, ReverseEach and Iterate early. The scan commits and the
// caller gets a nil error.
var Break = errors.New("break")

// tagErr marks err as coming out of this layer. Already-tagged errors pass
// through unchanged, so double tagging cannot occur.
func tagErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.HasPrefix(err.Error(), "odb:") {
		return err
	}
	return fmt.Errorf("odb: %w", err)
}

func tagErrf(err error, format string, args ...any) error {
	return tagErr(fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err))
}

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// StoreError carries the store, index and key context of a failed operation.
type StoreError struct {
	Store string
	Index string
	Key   any
	Msg   string
	Err   error
}

func storeErrf(store, index string, key any, err error, format string, args ...any) error {
	return &StoreError{store, index, key, fmt.Sprintf(format, args...), err}
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Error() string {
	var buf strings.Builder
	buf.WriteString("odb: ")
	buf.WriteString(e.Store)
	if e.Index != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Index)
	}
	if e.Key != nil {
		buf.WriteByte('/')
		fmt.Fprintf(&buf, "%v", e.Key)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
		if e.Err != nil {
			buf.WriteString(": ")
			buf.WriteString(e.Err.Error())
		}
	} else if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
