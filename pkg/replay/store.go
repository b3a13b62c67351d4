package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Store persists named sequences in one JSON file.
type Store struct {
	path string
}

// NewStore uses path as the backing file. The file is created on
// first save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the named sequence, or ErrNoSequence if it does not
// exist.
func (s *Store) Load(name string) (Sequence, error) {
	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	seq, ok := all[name]
	if !ok || len(seq) == 0 {
		return nil, fmt.Errorf("sequence %q: %w", name, ErrNoSequence)
	}
	return seq, nil
}

// Save writes the named sequence, replacing any previous one.
func (s *Store) Save(name string, seq Sequence) error {
	all, err := s.readAll()
	if err != nil {
		return err
	}
	all[name] = seq

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sequences: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// Names lists stored sequences in sorted order.
func (s *Store) Names() ([]string, error) {
	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for n := range all {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) readAll() (map[string]Sequence, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]Sequence{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	all := map[string]Sequence{}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return all, nil
}
