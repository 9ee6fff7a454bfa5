//go:build cgo

package main

import (
	"runtime/cgo"

	"smcu/go-signer/pkg/smcu"
)

func newHandle(m *smcu.Module) uintptr {
	return uintptr(cgo.NewHandle(m))
}

// lookupHandle resolves h without panicking on stale or forged values,
// since a panic must never unwind into the host.
func lookupHandle(h uintptr) (m *smcu.Module, ok bool) {
	if h == 0 {
		return nil, false
	}
	defer func() {
		if recover() != nil {
			m, ok = nil, false
		}
	}()
	m, ok = cgo.Handle(h).Value().(*smcu.Module)
	return m, ok
}

// releaseHandle wipes the module and frees h. Unknown handles are ignored.
func releaseHandle(h uintptr) {
	m, ok := lookupHandle(h)
	if !ok {
		return
	}
	m.Release()
	defer func() { _ = recover() }()
	cgo.Handle(h).Delete()
}
