package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

var (
	// ErrInvalid marks a rejected service definition.
	ErrInvalid = errors.New("invalid service definition")
	// ErrDuplicate is returned by Add when the name is already registered.
	ErrDuplicate = errors.New("service already exists")
	// ErrNotFound is returned when a named service is not registered.
	ErrNotFound = errors.New("service not found")
)

// Store is the durable name → (definition, status) mapping. The in-memory
// map is authoritative inside a running daemon; every mutation is written
// back to disk atomically before it is acknowledged.
type Store struct {
	path string

	mu      sync.RWMutex
	entries map[string]*Entry
}

// registryFile is the on-disk document. Unknown fields from future versions
// are ignored on decode.
type registryFile struct {
	Services []Entry `json:"services"`
}

// Open loads the registry at path, creating an empty one on first run.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		entries: make(map[string]*Entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading registry: %w", err)
		}
		// First run: persist the empty registry so later reads succeed.
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	}

	var f registryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing registry %q: %w", path, err)
	}
	for i := range f.Services {
		e := f.Services[i]
		if e.Status.Result == "" {
			e.Status.Result = Unknown
		}
		s.entries[e.Name] = &e
	}
	return s, nil
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// Add registers a new service with status Unknown and persists. The
// in-memory state is untouched when validation or persistence fails.
func (s *Store) Add(svc Service) error {
	if err := svc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[svc.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, svc.Name)
	}
	s.entries[svc.Name] = &Entry{
		Service: svc,
		Status:  Status{Result: Unknown},
	}
	if err := s.save(); err != nil {
		delete(s.entries, svc.Name)
		return err
	}
	return nil
}

// Remove deletes a service and persists.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(s.entries, name)
	if err := s.save(); err != nil {
		s.entries[name] = e
		return err
	}
	return nil
}

// Get returns a snapshot of one entry.
func (s *Store) Get(name string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// List returns a snapshot of all entries sorted by name.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered services.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ApplyResult records the outcome of one probe. It returns the previous
// result and whether this constitutes an Up↔Down transition (first results
// out of Unknown do not count). ErrNotFound is returned when the service
// was removed while its check was in flight; the result is dropped.
func (s *Store) ApplyResult(name string, res Result, latency time.Duration, probeErr string, at time.Time) (prev Result, transition bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return Unknown, false, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	prev = e.Status.Result
	e.Status.Result = res
	e.Status.LastCheck = at
	if res == Up {
		e.Status.LatencyMs = latency.Milliseconds()
		e.Status.Error = ""
		e.Status.ConsecutiveFailures = 0
	} else {
		e.Status.LatencyMs = 0
		e.Status.Error = probeErr
		e.Status.ConsecutiveFailures++
	}

	transition = (prev == Up || prev == Down) && prev != res
	if err := s.save(); err != nil {
		// Status stays applied in memory; the caller logs and carries on.
		return prev, transition, err
	}
	return prev, transition, nil
}

// ResetStatuses sets every status back to Unknown. The daemon calls this on
// startup so stale results from a previous run are never reported as live.
func (s *Store) ResetStatuses() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.Status = Status{Result: Unknown}
	}
	return s.save()
}

// save writes the registry atomically: full marshal to a temp file in the
// same directory, then rename over the previous version. Callers hold mu.
func (s *Store) save() error {
	f := registryFile{Services: make([]Entry, 0, len(s.entries))}
	for _, e := range s.entries {
		f.Services = append(f.Services, *e)
	}
	sort.Slice(f.Services, func(i, j int) bool { return f.Services[i].Name < f.Services[j].Name })

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp registry: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp registry: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing registry: %w", err)
	}
	return nil
}
