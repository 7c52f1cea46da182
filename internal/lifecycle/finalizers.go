package lifecycle

import "sync"

// Registrar accepts cleanup functions that must run when the caller's scope
// ends. *testing.T satisfies it.
type Registrar interface {
	Cleanup(func())
}

// Finalizers is a Registrar for callers outside of tests. Run executes the
// registered functions in reverse order, once.
type Finalizers struct {
	mu    sync.Mutex
	funcs []func()
}

var _ Registrar = (*Finalizers)(nil)

// Cleanup implements Registrar.
func (f *Finalizers) Cleanup(fn func()) {
	if fn == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.funcs = append(f.funcs, fn)
}

// Run executes and forgets every registered function, last registered first.
func (f *Finalizers) Run() {
	f.mu.Lock()
	funcs := f.funcs
	f.funcs = nil
	f.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		funcs[i]()
	}
}
