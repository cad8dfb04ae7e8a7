package devserver

import (
	"net/http"
	"sync"

	"github.com/aussiebroadwan/jwtclient/pkg/httpx"
	"github.com/aussiebroadwan/jwtclient/pkg/slogx"
)

// Faults counts requests per path and can make the next few requests to a
// path fail with a chosen status. Tests use it to drive retry and refresh
// failure paths.
type Faults struct {
	mu      sync.Mutex
	hits    map[string]int
	pending map[string][]int
}

func NewFaults() *Faults {
	return &Faults{
		hits:    make(map[string]int),
		pending: make(map[string][]int),
	}
}

// FailNext makes the next n requests to path answer status.
func (f *Faults) FailNext(path string, status, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for range n {
		f.pending[path] = append(f.pending[path], status)
	}
}

// Hits returns how many requests reached path, injected failures included.
func (f *Faults) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// Reset clears counters and pending failures.
func (f *Faults) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.hits)
	clear(f.pending)
}

func (f *Faults) next(path string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hits[path]++
	queue := f.pending[path]
	if len(queue) == 0 {
		return 0, false
	}
	f.pending[path] = queue[1:]
	return queue[0], true
}

// Middleware applies pending failures before the request reaches a handler.
func (f *Faults) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, fail := f.next(r.URL.Path)
		if !fail {
			next.ServeHTTP(w, r)
			return
		}

		slogx.FromContext(r.Context()).Info("injecting fault", "status", status)
		httpx.WriteError(w, status, "injected_fault", http.StatusText(status))
	})
}
