package live

// Store is the registry abstraction for stream state. The Service only
// touches it from the event loop, so implementations need no locking.
type Store interface {
	GetStream(key StreamKey) (*StreamState, bool)
	SetStream(st *StreamState)
	DeleteStream(key StreamKey)
	ListStreamKeys() []StreamKey
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	streams map[StreamKey]*StreamState
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		streams: make(map[StreamKey]*StreamState),
	}
}

// GetStream implements Store.GetStream.
func (s *InMemoryStore) GetStream(key StreamKey) (*StreamState, bool) {
	st, ok := s.streams[key]
	return st, ok
}

// SetStream implements Store.SetStream.
func (s *InMemoryStore) SetStream(st *StreamState) {
	s.streams[st.Key] = st
}

// DeleteStream implements Store.DeleteStream.
func (s *InMemoryStore) DeleteStream(key StreamKey) {
	delete(s.streams, key)
}

// ListStreamKeys implements Store.ListStreamKeys.
func (s *InMemoryStore) ListStreamKeys() []StreamKey {
	keys := make([]StreamKey, 0, len(s.streams))
	for k := range s.streams {
		keys = append(keys, k)
	}
	return keys
}
