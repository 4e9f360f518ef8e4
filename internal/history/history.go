package history

import (
	"sync"

	"gptbot/internal/llm"
)

// Store holds volatile per-user dialogue history. Contexts only grow in
// user/assistant pairs and are lost when the process exits.
type Store interface {
	Get(userID int64) []llm.Turn
	AppendExchange(userID int64, userText, assistantText string)
	Clear(userID int64)
}

const defaultShards = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[int64][]llm.Turn
}

// Manager is a sharded in-memory Store. Different users never contend on
// the same lock unless they hash to the same shard; nothing serializes
// writers for one user beyond the shard lock itself.
type Manager struct {
	shards []*shard
}

func NewManager() *Manager {
	return NewShardedManager(defaultShards)
}

func NewShardedManager(n int) *Manager {
	if n <= 0 {
		n = 1
	}
	m := &Manager{shards: make([]*shard, n)}
	for i := range m.shards {
		m.shards[i] = &shard{sessions: make(map[int64][]llm.Turn)}
	}
	return m
}

func (m *Manager) shardFor(userID int64) *shard {
	idx := uint64(userID) % uint64(len(m.shards))
	return m.shards[idx]
}

// Get returns a copy of the user's turns; unknown users get an empty slice.
func (m *Manager) Get(userID int64) []llm.Turn {
	s := m.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts := s.sessions[userID]
	out := make([]llm.Turn, len(ts))
	copy(out, ts)
	return out
}

func (m *Manager) AppendExchange(userID int64, userText, assistantText string) {
	s := m.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = append(s.sessions[userID],
		llm.Turn{Role: llm.RoleUser, Content: userText},
		llm.Turn{Role: llm.RoleAssistant, Content: assistantText},
	)
}

func (m *Manager) Clear(userID int64) {
	s := m.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = nil
}

// Len reports the number of stored turns for userID.
func (m *Manager) Len(userID int64) int {
	s := m.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[userID])
}

var _ Store = (*Manager)(nil)
