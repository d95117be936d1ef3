package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type StoreOptions struct {
	// NewID generates log ids. Defaults to random UUIDs.
	NewID func() string
	Now   func() time.Time
	// MaxActionLog bounds the recorded action log; 0 keeps every action and
	// a negative value disables recording.
	MaxActionLog int
}

// Store owns the single writable State. Dispatch is the only way to change
// it; readers take snapshots or derived views.
type Store struct {
	opts StoreOptions

	mu      sync.Mutex
	state   State
	actions []Action
	subs    map[int]func(State)
	nextSub int

	notifyMu sync.Mutex
	notified uint64

	memoMu      sync.Mutex
	treeKey     uint64
	tree        []*TreeNode
	treeValid   bool
	filterKey   filterKey
	filtered    []LogItem
	filterValid bool

	refs Refs
}

type filterKey struct {
	logsRev uint64
	treeRev uint64
	scope   LogScope
}

func NewStore(opts StoreOptions) *Store {
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		opts:  opts,
		state: InitialState(),
		subs:  map[int]func(State){},
	}
}

func (s *Store) NewID() string { return s.opts.NewID() }

func (s *Store) Refs() *Refs { return &s.refs }

// Dispatch applies a and notifies subscribers if the state changed.
func (s *Store) Dispatch(a Action) {
	if a == nil {
		return
	}
	a = s.stamp(a)

	s.mu.Lock()
	prev := s.state.rev
	s.state = Reduce(s.state, a)
	s.record(a)
	st := s.state
	var subs []func(State)
	if st.rev != prev {
		subs = make([]func(State), 0, len(s.subs))
		for _, fn := range s.subs {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	if _, ok := a.(Reset); ok {
		s.refs.clear()
	}
	log.Trace().Str("action", a.ActionName()).Uint64("rev", st.rev).Msg("audit dispatch")

	if len(subs) == 0 {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if st.rev <= s.notified {
		return
	}
	s.notified = st.rev
	for _, fn := range subs {
		fn(st)
	}
}

// stamp fills ids and times so Reduce stays deterministic on replay.
func (s *Store) stamp(a Action) Action {
	switch v := a.(type) {
	case AddLog:
		if v.Item.ID == "" {
			v.Item.ID = s.opts.NewID()
		}
		if v.Item.Time.IsZero() {
			v.Item.Time = s.opts.Now()
		}
		return v
	case CompleteToolLog:
		if v.ID == "" {
			v.ID = s.opts.NewID()
		}
		if v.Time.IsZero() {
			v.Time = s.opts.Now()
		}
		return v
	case UpdateOrAddProgressLog:
		if v.ID == "" {
			v.ID = s.opts.NewID()
		}
		if v.Time.IsZero() {
			v.Time = s.opts.Now()
		}
		return v
	case MarkTaskStatus:
		if v.At.IsZero() {
			v.At = s.opts.Now()
		}
		return v
	}
	return a
}

func (s *Store) record(a Action) {
	if s.opts.MaxActionLog < 0 {
		return
	}
	s.actions = append(s.actions, a)
	if n := s.opts.MaxActionLog; n > 0 && len(s.actions) > n {
		s.actions = append(s.actions[:0:0], s.actions[len(s.actions)-n:]...)
	}
}

// Subscribe registers fn to receive every new state after a change. Calls
// are serialized and arrive in revision order. The returned func
// unsubscribes.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Actions returns the recorded action log, oldest first.
func (s *Store) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Action(nil), s.actions...)
}

// Replay folds actions over a fresh state.
func Replay(actions []Action) State {
	st := InitialState()
	for _, a := range actions {
		st = Reduce(st, a)
	}
	return st
}

// Log returns the log entry with the given id.
func (s *Store) Log(id string) (LogItem, bool) {
	st := s.Snapshot()
	if i := logIndex(st.Logs, id); i >= 0 {
		return st.Logs[i], true
	}
	return LogItem{}, false
}

func (s *Store) HasFinding(id string) bool {
	return hasFinding(s.Snapshot().Findings, id)
}

// TreeNodes returns the agent hierarchy, rebuilt only when the tree changed.
func (s *Store) TreeNodes() []*TreeNode {
	return s.treeNodes(s.Snapshot())
}

func (s *Store) treeNodes(st State) []*TreeNode {
	s.memoMu.Lock()
	defer s.memoMu.Unlock()
	if s.treeValid && s.treeKey == st.treeRev {
		return s.tree
	}
	s.tree = BuildTree(st.AgentTree)
	s.treeKey = st.treeRev
	s.treeValid = true
	return s.tree
}

// FilteredLogs returns the logs visible under the current scope, recomputed
// only when the logs, the tree or the scope changed.
func (s *Store) FilteredLogs() []LogItem {
	st := s.Snapshot()
	nodes := s.treeNodes(st)

	key := filterKey{logsRev: st.logsRev, treeRev: st.treeRev, scope: st.Scope}
	s.memoMu.Lock()
	defer s.memoMu.Unlock()
	if s.filterValid && s.filterKey == key {
		return s.filtered
	}
	s.filtered = FilterLogs(st.Logs, nodes, st.Scope)
	s.filterKey = key
	s.filterValid = true
	return s.filtered
}

func (s *Store) IsRunning() bool  { return s.Snapshot().IsRunning() }
func (s *Store) IsComplete() bool { return s.Snapshot().IsComplete() }
func (s *Store) Stats() Stats     { return ComputeStats(s.Snapshot()) }
