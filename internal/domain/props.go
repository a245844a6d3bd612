package domain

import (
	"strconv"
	"sync"
	"time"

	"dario.cat/mergo"
)

// Props is a string key/value configuration map with optional parent
// chaining: lookups fall through to the parent when a key is absent locally.
type Props struct {
	mu     sync.RWMutex
	parent *Props
	values map[string]string
}

func NewProps() *Props {
	return &Props{values: make(map[string]string)}
}

func NewPropsWithParent(parent *Props) *Props {
	return &Props{
		parent: parent,
		values: make(map[string]string),
	}
}

func PropsFromMap(values map[string]string) *Props {
	p := NewProps()
	for k, v := range values {
		p.values[k] = v
	}
	return p
}

func (p *Props) Put(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
}

func (p *Props) Get(key string) (string, bool) {
	p.mu.RLock()
	value, ok := p.values[key]
	parent := p.parent
	p.mu.RUnlock()

	if ok {
		return value, true
	}
	if parent != nil {
		return parent.Get(key)
	}
	return "", false
}

func (p *Props) GetString(key, fallback string) string {
	if value, ok := p.Get(key); ok {
		return value
	}
	return fallback
}

func (p *Props) GetInt(key string, fallback int) int {
	value, ok := p.Get(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (p *Props) GetBool(key string, fallback bool) bool {
	value, ok := p.Get(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (p *Props) GetDuration(key string, fallback time.Duration) time.Duration {
	value, ok := p.Get(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// MergeFrom copies entries of other into p, other winning on conflicts.
func (p *Props) MergeFrom(other *Props) error {
	if other == nil {
		return nil
	}

	theirs := other.Flatten()

	p.mu.Lock()
	defer p.mu.Unlock()
	return mergo.Merge(&p.values, theirs, mergo.WithOverride)
}

// Flatten resolves the parent chain into a plain map, local values winning.
func (p *Props) Flatten() map[string]string {
	var flat map[string]string

	p.mu.RLock()
	parent := p.parent
	p.mu.RUnlock()

	if parent != nil {
		flat = parent.Flatten()
	} else {
		flat = make(map[string]string)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for k, v := range p.values {
		flat[k] = v
	}
	return flat
}

func (p *Props) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}

func (p *Props) Clone() *Props {
	return PropsFromMap(p.Flatten())
}
