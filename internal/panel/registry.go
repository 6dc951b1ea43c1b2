// Package panel hosts a shell session inside a bubbletea program. The panel
// refers to its session by id only; the Registry owns the session and is the
// only thing that ends it.
package panel

import (
	"sync"

	"github.com/ZeroiJ/hub/internal/keys"
	"github.com/ZeroiJ/hub/internal/screen"
	"github.com/ZeroiJ/hub/internal/session"
)

// Terminal is the part of a session the panel drives.
type Terminal interface {
	Snapshot() screen.Snapshot
	Updates() <-chan struct{}
	Done() <-chan struct{}
	State() session.State
	ExitCode() int
	HandleKey(ev keys.Event) error
	OnResize(cols, rows int) error
	Shutdown()
}

var _ Terminal = (*session.Session)(nil)

// Registry owns running terminals by id.
type Registry struct {
	mu    sync.Mutex
	terms map[string]Terminal
}

func NewRegistry() *Registry {
	return &Registry{terms: make(map[string]Terminal)}
}

// Add registers t under id, replacing nothing: adding an id twice keeps the
// first terminal and reports false.
func (r *Registry) Add(id string, t Terminal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.terms[id]; ok {
		return false
	}
	r.terms[id] = t
	return true
}

// Get returns the terminal registered under id, or nil.
func (r *Registry) Get(id string) Terminal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terms[id]
}

// Len returns the number of registered terminals.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.terms)
}

// Close shuts down the terminal registered under id and forgets it.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	t := r.terms[id]
	delete(r.terms, id)
	r.mu.Unlock()
	if t != nil {
		t.Shutdown()
	}
}

// CloseAll shuts every terminal down concurrently and waits for all of them.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	terms := r.terms
	r.terms = make(map[string]Terminal)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range terms {
		wg.Add(1)
		go func(t Terminal) {
			defer wg.Done()
			t.Shutdown()
		}(t)
	}
	wg.Wait()
}
