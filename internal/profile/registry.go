package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "github.com/ricesearch/rice-chunk/internal/pkg/errors"
)

// Registry resolves language names, aliases and file extensions to
// compiled profiles.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Profile
	aliases map[string]string
	exts    map[string]string
}

// NewRegistry returns a registry holding the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{
		byName:  make(map[string]*Profile),
		aliases: make(map[string]string),
		exts:    make(map[string]string),
	}
	for _, def := range Builtins() {
		r.Register(MustCompile(def))
	}
	return r
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Register adds p, replacing any profile of the same name.
func (r *Registry) Register(p *Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	r.byName[name] = p
	for _, a := range p.Aliases() {
		r.aliases[normalize(a)] = name
	}
	for _, ext := range p.Extensions() {
		ext = normalize(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.exts[ext] = name
	}
}

// Lookup returns the profile for a language name or alias, ignoring case.
func (r *Registry) Lookup(language string) (*Profile, error) {
	key := normalize(language)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.byName[key]; ok {
		return p, nil
	}
	if name, ok := r.aliases[key]; ok {
		if p, ok := r.byName[name]; ok {
			return p, nil
		}
	}
	return nil, apperrors.UnsupportedLanguageError(language, r.languagesLocked())
}

// ForExtension returns the language registered for a file extension.
func (r *Registry) ForExtension(ext string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.exts[normalize(ext)]
	return name, ok
}

// Languages returns the registered language names, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.languagesLocked()
}

func (r *Registry) languagesLocked() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse decodes a YAML definition and compiles it.
func Parse(data []byte) (*Profile, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "failed to parse profile", err)
	}
	return Compile(def)
}

// LoadFile parses a YAML profile and registers it.
func (r *Registry) LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	r.Register(p)
	return p, nil
}

// LoadDir registers every *.yaml and *.yml profile in dir, in name order,
// and returns the names loaded.
func (r *Registry) LoadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles dir %s: %w", dir, err)
	}

	var loaded []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		p, err := r.LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return loaded, err
		}
		loaded = append(loaded, p.Name())
	}
	return loaded, nil
}
