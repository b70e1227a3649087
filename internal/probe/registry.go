package probe

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"

	lev "github.com/agnivade/levenshtein"
)

// suggestMaxDistance bounds how far a typo may be from a registered id
// before Suggest gives up.
const suggestMaxDistance = 3

// Registry is the probe lookup keyed by stable identifier. Adding a
// provider means adding one registry entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	ids     []string // kept sorted
}

type entry struct {
	probe Probe
	info  Info // links sanitized at registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a probe under its Info id. Duplicate and empty ids are
// rejected; links that are not http(s) are dropped.
func (r *Registry) Register(p Probe) error {
	info := p.Info()
	info.ID = strings.TrimSpace(info.ID)
	if info.ID == "" {
		return fmt.Errorf("probe id is required")
	}
	info.Links = sanitizeLinks(info.ID, info.Links)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[info.ID]; exists {
		return fmt.Errorf("probe %q already registered", info.ID)
	}
	r.entries[info.ID] = entry{probe: p, info: info}
	r.ids = append(r.ids, info.ID)
	sort.Strings(r.ids)
	return nil
}

// Get returns the probe registered under id.
func (r *Registry) Get(id string) (Probe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.probe, true
}

// IDs returns all registered ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Infos returns display metadata for all registered probes, sorted by id.
func (r *Registry) Infos() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.entries[id].info)
	}
	return out
}

// Info returns the display metadata registered under id.
func (r *Registry) Info(id string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e.info, ok
}

// Suggest returns the registered id closest to the given unknown id,
// or "" when nothing is plausibly close.
func (r *Registry) Suggest(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best := ""
	bestDist := suggestMaxDistance + 1
	for _, candidate := range r.ids {
		d := lev.ComputeDistance(strings.ToLower(id), strings.ToLower(candidate))
		if d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	return best
}

// sanitizeLinks keeps only http(s) links so nothing else ever reaches
// a browser open call.
func sanitizeLinks(id string, links []Link) []Link {
	out := make([]Link, 0, len(links))
	for _, link := range links {
		u, err := url.Parse(strings.TrimSpace(link.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			slog.Warn("dropping non-http link", "probe", id, "label", link.Label, "url", link.URL)
			continue
		}
		if link.Label == "" {
			link.Label = u.Host
		}
		out = append(out, link)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
