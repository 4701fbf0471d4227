package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/iwvelando/project-feasibility/pkg/constants"
	"github.com/iwvelando/project-feasibility/pkg/engine"
)

// Memory is an in-process least-recently-used store.
type Memory struct {
	results *lru.Cache[string, *engine.Result]
}

// NewMemory returns a store holding up to size results. A size of zero or
// less uses the default.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = constants.DefaultCacheSize
	}
	results, err := lru.New[string, *engine.Result](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}
	return &Memory{results: results}, nil
}

func (m *Memory) Get(_ context.Context, fingerprint string) (*engine.Result, bool, error) {
	result, ok := m.results.Get(fingerprint)
	return result, ok, nil
}

func (m *Memory) Set(_ context.Context, fingerprint string, result *engine.Result) error {
	m.results.Add(fingerprint, result)
	return nil
}

// Len returns the number of stored results.
func (m *Memory) Len() int {
	return m.results.Len()
}
