package client

import "sync"

// CompletionGuard records which wave has already been completed so the local
// fallback timer and the server's timer-complete push run their effects once.
type CompletionGuard struct {
	mu        sync.Mutex
	completed string
}

// TryComplete marks sessionID completed. It reports false if it already was.
func (g *CompletionGuard) TryComplete(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.completed == sessionID {
		return false
	}
	g.completed = sessionID
	return true
}

// Completed reports whether sessionID has been completed.
func (g *CompletionGuard) Completed(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.completed == sessionID
}

// Reset forgets the completed wave.
func (g *CompletionGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed = ""
}
