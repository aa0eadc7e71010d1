package service

import "sync"

// Navigator receives navigation side effects from the session store.
type Navigator interface {
	Navigate(path string)
}

// RecordingNavigator keeps the last navigation target so the HTTP layer can
// turn it into a redirect once the handler finishes.
type RecordingNavigator struct {
	mu     sync.Mutex
	target string
}

// NewRecordingNavigator creates an empty RecordingNavigator
func NewRecordingNavigator() *RecordingNavigator {
	return &RecordingNavigator{}
}

// Navigate records path as the pending navigation target.
func (n *RecordingNavigator) Navigate(path string) {
	n.mu.Lock()
	n.target = path
	n.mu.Unlock()
}

// Target returns the last recorded navigation target.
func (n *RecordingNavigator) Target() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target, n.target != ""
}
