package avatar

import (
	"io/fs"
	"strings"
	"sync"
)

// Pool resolves each loop to a playable asset exactly once. The WebM
// variant is preferred; a loop whose WebM is missing falls back to the
// MP4, and the answer is cached so the filesystem is never probed twice.
type Pool struct {
	catalog *Catalog
	assets  fs.FS

	mu       sync.Mutex
	resolved map[State]string
}

// NewPool creates a pool resolving clips against the given asset tree.
func NewPool(catalog *Catalog, assets fs.FS) *Pool {
	return &Pool{
		catalog:  catalog,
		assets:   assets,
		resolved: make(map[State]string),
	}
}

// Get returns the playable asset path for a loop, or "" when neither
// variant exists.
func (p *Pool) Get(s State) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if path, ok := p.resolved[s]; ok {
		return path
	}
	clip := p.catalog.Clip(s)
	path := ""
	if p.exists(clip.WebM) {
		path = clip.WebM
	} else if p.exists(clip.MP4) {
		path = clip.MP4
	}
	p.resolved[s] = path
	return path
}

// Preload resolves every loop up front and reports the states with no
// playable asset.
func (p *Pool) Preload() []State {
	var missing []State
	for _, s := range States() {
		if p.Get(s) == "" {
			missing = append(missing, s)
		}
	}
	return missing
}

func (p *Pool) exists(path string) bool {
	if p.assets == nil {
		// No local asset tree: trust the catalog path as-is.
		return true
	}
	name := strings.TrimPrefix(path, p.catalog.basePath)
	_, err := fs.Stat(p.assets, name)
	return err == nil
}
