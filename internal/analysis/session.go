package analysis

import "sync"

// Session owns the per-scenario caches: the transition matrix store for the
// movement model and the chunk cache for the depth model. Both live for the
// scenario session and are dropped wholesale on a switch.
type Session struct {
	scenarioID string
	generation uint64
	matrices   *MatrixStore
	chunks     *ChunkCache
}

// ScenarioID returns the scenario this session serves.
func (s *Session) ScenarioID() string { return s.scenarioID }

// Generation returns the session's generation stamp. Fetches record it when
// issued so their results can be rejected after a scenario switch.
func (s *Session) Generation() uint64 { return s.generation }

// Matrices returns the session's transition matrix store.
func (s *Session) Matrices() *MatrixStore { return s.matrices }

// Chunks returns the session's occupancy chunk cache.
func (s *Session) Chunks() *ChunkCache { return s.chunks }

// SessionManager hands out sessions and guards their caches against stale
// fetch results: data fetched under a previous generation is discarded
// rather than merged.
type SessionManager struct {
	mu         sync.Mutex
	generation uint64
	sessions   map[string]*Session
	current    *Session
}

// NewSessionManager returns an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Switch makes scenarioID the active scenario, invalidating every other
// session's pending fetches. Reusing the same scenario keeps its caches;
// switching to a new one starts from empty stores.
func (m *SessionManager) Switch(scenarioID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	s, ok := m.sessions[scenarioID]
	if !ok {
		s = &Session{
			scenarioID: scenarioID,
			matrices:   NewMatrixStore(),
			chunks:     NewChunkCache(),
		}
		m.sessions[scenarioID] = s
	}
	s.generation = m.generation
	m.current = s
	return s
}

// Session returns the held session for a scenario, creating it as current
// when absent.
func (m *SessionManager) Session(scenarioID string) *Session {
	m.mu.Lock()
	s, ok := m.sessions[scenarioID]
	m.mu.Unlock()
	if ok {
		return s
	}
	return m.Switch(scenarioID)
}

// Current returns the active session, nil before the first switch.
func (m *SessionManager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// MergeChunks merges fetched chunks into the scenario's cache only when the
// generation still matches the active session; stale results are dropped.
// Returns how many chunks were added (0 for a stale or inactive merge).
func (m *SessionManager) MergeChunks(scenarioID string, generation uint64, chunks []*Chunk) int {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s == nil || s.scenarioID != scenarioID || s.generation != generation {
		return 0
	}
	return s.chunks.Merge(chunks)
}

// MergeMatrices merges fetched matrices under the same staleness rule as
// MergeChunks.
func (m *SessionManager) MergeMatrices(scenarioID string, generation uint64, batch map[string]Matrix) int {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s == nil || s.scenarioID != scenarioID || s.generation != generation {
		return 0
	}
	return s.matrices.InsertAll(batch)
}

// Drop removes a scenario's session entirely, clearing its caches.
func (m *SessionManager) Drop(scenarioID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[scenarioID]; ok {
		s.matrices.Clear()
		s.chunks.Clear()
		delete(m.sessions, scenarioID)
		if m.current == s {
			m.current = nil
		}
	}
}
