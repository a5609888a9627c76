package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lmoraga/lakeflow/internal/fault"
	"github.com/lmoraga/lakeflow/internal/tier"
)

// MemoryBackend is an in-memory Backend used by tests and dry runs.
// It honors the same semantics as the real backends: atomic replace,
// checksum metadata, fault.ErrNotFound for absent objects.
type MemoryBackend struct {
	mu      sync.RWMutex
	tiers   map[tier.Tier]map[string]memObject
	ensured map[tier.Tier]bool

	// WriteHook, when set, runs before every write and may fail it.
	// Tests use it to inject phase failures.
	WriteHook func(t tier.Tier, name string) error
}

type memObject struct {
	data     []byte
	checksum string
	modTime  time.Time
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		tiers:   make(map[tier.Tier]map[string]memObject),
		ensured: make(map[tier.Tier]bool),
	}
}

// Name identifies the backend in logs and errors.
func (m *MemoryBackend) Name() string { return "memory" }

// Ensure creates the tier namespace if absent.
func (m *MemoryBackend) Ensure(_ context.Context, t tier.Tier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tiers[t] == nil {
		m.tiers[t] = make(map[string]memObject)
	}
	m.ensured[t] = true
	return nil
}

// Write stores an object, replacing any previous version atomically.
func (m *MemoryBackend) Write(_ context.Context, t tier.Tier, name string, data []byte, checksum string) error {
	if m.WriteHook != nil {
		if err := m.WriteHook(t, name); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tiers[t] == nil {
		m.tiers[t] = make(map[string]memObject)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.tiers[t][name] = memObject{
		data:     stored,
		checksum: checksum,
		modTime:  time.Now().UTC(),
	}
	return nil
}

// Read returns an object's bytes.
func (m *MemoryBackend) Read(_ context.Context, t tier.Tier, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.tiers[t][name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", fault.ErrNotFound, t, name)
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

// Stat returns an object's metadata.
func (m *MemoryBackend) Stat(_ context.Context, t tier.Tier, name string) (ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.tiers[t][name]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("%w: %s/%s", fault.ErrNotFound, t, name)
	}
	return ObjectInfo{
		Name:     name,
		Size:     int64(len(obj.data)),
		Checksum: obj.checksum,
		ModTime:  obj.modTime,
	}, nil
}

// List returns metadata for every object in a tier, sorted by name.
func (m *MemoryBackend) List(_ context.Context, t tier.Tier) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var infos []ObjectInfo
	for name, obj := range m.tiers[t] {
		infos = append(infos, ObjectInfo{
			Name:     name,
			Size:     int64(len(obj.data)),
			Checksum: obj.checksum,
			ModTime:  obj.modTime,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Corrupt replaces a stored object's bytes and checksum out of band,
// as if another writer had clobbered the object after the run recorded
// its artifact. Tests use it to exercise the verifier.
func (m *MemoryBackend) Corrupt(t tier.Tier, name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.tiers[t][name]
	if !ok {
		return
	}
	obj.data = data
	obj.checksum = Checksum(data)
	m.tiers[t][name] = obj
}
