package services

import (
	"context"
	"strings"
	"sync"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/aggregates/milestone"
)

// ProjectCache stores resolved project keys. Only hits are ever stored.
type ProjectCache interface {
	Get(ctx context.Context, key string) (milestone.ProjectRef, bool, error)
	Set(ctx context.Context, key string, ref milestone.ProjectRef) error
}

// ProjectCacheKey is the normalized form under which a project key is cached.
func ProjectCacheKey(key string) string {
	return strings.ToLower(ParseText(key))
}

type MemoryProjectCache struct {
	mu   sync.RWMutex
	refs map[string]milestone.ProjectRef
}

func NewMemoryProjectCache() *MemoryProjectCache {
	return &MemoryProjectCache{refs: make(map[string]milestone.ProjectRef)}
}

func (c *MemoryProjectCache) Get(_ context.Context, key string) (milestone.ProjectRef, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.refs[ProjectCacheKey(key)]
	return ref, ok, nil
}

func (c *MemoryProjectCache) Set(_ context.Context, key string, ref milestone.ProjectRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs[ProjectCacheKey(key)] = ref
	return nil
}

func (c *MemoryProjectCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.refs)
}
