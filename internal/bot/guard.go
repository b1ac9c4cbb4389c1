package bot

import "sync"

// commandGuard enforces one in-flight command per user: acquire on dispatch,
// release on completion, reject new starts while held.
type commandGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newCommandGuard() *commandGuard {
	return &commandGuard{inFlight: make(map[string]struct{})}
}

func (g *commandGuard) acquire(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.inFlight[userID]; held {
		return false
	}
	g.inFlight[userID] = struct{}{}
	return true
}

func (g *commandGuard) release(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, userID)
}
