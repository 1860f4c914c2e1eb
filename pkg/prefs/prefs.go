// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package prefs persists the few values a call learns and the next call
// starts from.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// State is what survives between calls.
type State struct {
	// DesiredDepth is the jitter buffer target, in frames.
	DesiredDepth float64 `yaml:"desired_depth"`
	// PlayoutLevel is the playback device target, in samples.
	PlayoutLevel int `yaml:"playout_level"`
}

// Store loads and saves State.
type Store interface {
	Load() (State, error)
	Save(State) error
}

// FileStore keeps State in a YAML file. A missing file loads as the zero
// State.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements Store.
func (f *FileStore) Load() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var st State
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	} else if err != nil {
		return st, fmt.Errorf("prefs: read %s: %w", f.path, err)
	}

	if err = yaml.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("prefs: parse %s: %w", f.path, err)
	}

	return st, nil
}

// Save implements Store. The file is replaced atomically.
func (f *FileStore) Save(st State) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("prefs: encode: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("prefs: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("prefs: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err = tmp.Write(raw); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("prefs: write: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("prefs: write: %w", err)
	}
	if err = os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("prefs: %w", err)
	}

	return nil
}

// MemoryStore keeps State in memory.
type MemoryStore struct {
	mu    sync.Mutex
	state State
	saves int
}

// NewMemoryStore returns a MemoryStore holding st.
func NewMemoryStore(st State) *MemoryStore {
	return &MemoryStore{state: st}
}

// Load implements Store.
func (m *MemoryStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state, nil
}

// Save implements Store.
func (m *MemoryStore) Save(st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = st
	m.saves++

	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saves
}
