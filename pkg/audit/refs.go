package audit

import "sync"

// Refs is scratch state that correlates streamed fragments with the log
// entry being built. Writes do not go through Dispatch and do not notify
// subscribers.
type Refs struct {
	mu                sync.Mutex
	currentThinkingID string
	currentAgentName  string
}

func (r *Refs) CurrentThinkingID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentThinkingID
}

func (r *Refs) SetCurrentThinkingID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentThinkingID = id
}

func (r *Refs) CurrentAgentName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentAgentName
}

func (r *Refs) SetCurrentAgentName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentAgentName = name
}

func (r *Refs) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentThinkingID = ""
	r.currentAgentName = ""
}
