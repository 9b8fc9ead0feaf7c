package artifacts

import "sync"

// MemoryRepository is an in-memory Repository, used in tests and when no
// artifact directory is configured but persistence is still wanted for the
// lifetime of the run.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryRepository {
	return &MemoryRepository{entries: make(map[string][]byte)}
}

func (r *MemoryRepository) Put(key Key, data []byte) error {
	copied := make([]byte, len(data))
	copy(copied, data)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key.String()] = copied
	return nil
}

func (r *MemoryRepository) Get(key Key) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.entries[key.String()]
	if !ok {
		return nil, false, nil
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, true, nil
}

// Len reports the number of stored entries.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
