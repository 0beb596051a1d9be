// Package resort holds the injected hotel -> spreadsheet configuration. The
// matching engine never consults any ambient mapping; every lookup receives
// its resort entry from here at call time.
package resort

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/guestpulse/matrice-engine/pkg/table"
)

// Resort is one hotel's sheet wiring. RespondentGID defaults to "0"
// (Feuille 1); headers are optional per-hotel overrides for sheets whose
// maintainers renamed the standard questions.
type Resort struct {
	ID             string `yaml:"-" json:"id"`
	Name           string `yaml:"name" json:"name"`
	SheetID        string `yaml:"sheet_id" json:"-"`
	RespondentGID  string `yaml:"respondent_gid" json:"-"`
	MatriceGID     string `yaml:"matrice_gid" json:"-"`
	FeedbackHeader string `yaml:"feedback_header" json:"-"`
	AgencyHeader   string `yaml:"agency_header" json:"-"`
}

// RespondentSource returns the Feuille 1 fetch reference.
func (r *Resort) RespondentSource() table.Source {
	return table.Source{SheetID: r.SheetID, GID: r.RespondentGID}
}

// MatriceSource returns the matrice view fetch reference.
func (r *Resort) MatriceSource() table.Source {
	return table.Source{SheetID: r.SheetID, GID: r.MatriceGID}
}

type registryFile struct {
	Resorts map[string]*Resort `yaml:"resorts"`
}

// Registry is the loaded resort configuration. Reloadable at runtime
// (SIGHUP); reads are lock-protected so requests in flight see a consistent
// snapshot.
type Registry struct {
	mu      sync.RWMutex
	resorts map[string]*Resort
	path    string
}

// NewRegistry creates an empty registry backed by the given YAML file.
func NewRegistry(path string) *Registry {
	return &Registry{
		resorts: make(map[string]*Resort),
		path:    path,
	}
}

// Load reads and validates the resorts file, replacing the current mapping
// atomically on success.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read resorts file %s: %w", r.path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse resorts file %s: %w", r.path, err)
	}
	if len(file.Resorts) == 0 {
		return fmt.Errorf("resorts file %s: no resorts defined", r.path)
	}

	for id, res := range file.Resorts {
		if res == nil || res.SheetID == "" {
			return fmt.Errorf("resort %q: missing sheet_id", id)
		}
		res.ID = id
		if res.Name == "" {
			res.Name = id
		}
		if res.RespondentGID == "" {
			res.RespondentGID = "0"
		}
	}

	r.mu.Lock()
	r.resorts = file.Resorts
	r.mu.Unlock()
	return nil
}

// Reload re-reads the resorts file (hot reload).
func (r *Registry) Reload() error {
	return r.Load()
}

// Get returns the resort entry for id.
func (r *Registry) Get(id string) (*Resort, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resorts[id]
	return res, ok
}

// List returns all resorts sorted by ID.
func (r *Registry) List() []*Resort {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Resort, 0, len(r.resorts))
	for _, res := range r.resorts {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of configured resorts.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resorts)
}
