package testsupport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Archive is a fake spectrum archive. Each path serves a scripted sequence of
// payloads: request n receives payload n, and the last payload repeats.
// Unknown paths answer 404.
type Archive struct {
	Server *httptest.Server

	mu       sync.Mutex
	files    map[string][][]byte
	statuses map[string]int
	requests map[string]int
}

// NewArchive starts a fake archive and registers cleanup.
func NewArchive(t testing.TB) *Archive {
	t.Helper()

	a := &Archive{
		files:    make(map[string][][]byte),
		statuses: make(map[string]int),
		requests: make(map[string]int),
	}
	a.Server = httptest.NewServer(http.HandlerFunc(a.handle))
	t.Cleanup(a.Server.Close)
	return a
}

// URL is the archive base URL.
func (a *Archive) URL() string { return a.Server.URL }

// Serve scripts the payloads returned for remotePath.
func (a *Archive) Serve(remotePath string, payloads ...[]byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files[normalize(remotePath)] = payloads
}

// Fail makes remotePath answer with status.
func (a *Archive) Fail(remotePath string, status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statuses[normalize(remotePath)] = status
}

// Requests reports how many GETs remotePath received.
func (a *Archive) Requests(remotePath string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[normalize(remotePath)]
}

// TotalRequests reports every GET the archive received.
func (a *Archive) TotalRequests() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, n := range a.requests {
		total += n
	}
	return total
}

func (a *Archive) handle(w http.ResponseWriter, r *http.Request) {
	path := normalize(r.URL.Path)

	a.mu.Lock()
	if r.Method == http.MethodGet {
		a.requests[path]++
	}
	n := a.requests[path]
	status, failing := a.statuses[path]
	payloads := a.files[path]
	a.mu.Unlock()

	if r.Method == http.MethodHead && path == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if failing {
		w.WriteHeader(status)
		return
	}
	if len(payloads) == 0 {
		http.NotFound(w, r)
		return
	}
	idx := n - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(payloads) {
		idx = len(payloads) - 1
	}
	w.Header().Set("Content-Type", "application/fits")
	_, _ = w.Write(payloads[idx])
}

func normalize(p string) string {
	return strings.Trim(p, "/")
}
