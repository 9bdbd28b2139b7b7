package profiles

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/damacus/iron-studio/internal/errs"
)

const (
	exportVersion      = 1
	defaultImportName  = "Imported Profile"
	importedNameFormat = "%s (Imported %d)"
)

// ExportedProfile is one profile in an export document.
type ExportedProfile struct {
	Name      string    `json:"name" yaml:"name"`
	Config    Config    `json:"config" yaml:"config"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Export is the portable profile document.
type Export struct {
	Version        int               `json:"version" yaml:"version"`
	ExportedAt     time.Time         `json:"exportedAt" yaml:"exportedAt"`
	IncludeSecrets bool              `json:"includeSecrets" yaml:"includeSecrets"`
	Profiles       []ExportedProfile `json:"profiles" yaml:"profiles"`
}

// Strategy decides what happens when an imported profile has the same name
// as an existing one (case-insensitive).
type Strategy string

const (
	StrategyRename    Strategy = "rename"
	StrategyOverwrite Strategy = "overwrite"
	StrategySkip      Strategy = "skip"
)

// ParseStrategy maps form input to a Strategy, defaulting to rename.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyRename:
		return StrategyRename, nil
	case StrategyOverwrite:
		return StrategyOverwrite, nil
	case StrategySkip:
		return StrategySkip, nil
	}
	return "", errs.New(errs.KindInvalidInput, "unknown import strategy "+s)
}

// ImportResult counts what an import did. Overwritten profiles also count
// as imported.
type ImportResult struct {
	Imported    int `json:"imported"`
	Overwritten int `json:"overwritten"`
	Skipped     int `json:"skipped"`
	Renamed     int `json:"renamed"`
}

// Export returns every profile in order. Without secrets the secret key and
// session token are blanked.
func (s *Store) Export(includeSecrets bool) Export {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Export{
		Version:        exportVersion,
		ExportedAt:     s.now().UTC(),
		IncludeSecrets: includeSecrets,
		Profiles:       make([]ExportedProfile, 0, len(s.order)),
	}
	for _, id := range s.order {
		p := s.profiles[id]
		cfg := p.Config
		if !includeSecrets {
			cfg = cfg.Redacted()
		}
		out.Profiles = append(out.Profiles, ExportedProfile{
			Name:      p.Name,
			Config:    cfg,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}
	return out
}

type importItem struct {
	Name   string  `yaml:"name"`
	Config *Config `yaml:"config"`
}

// ParseImport reads an export document, or a bare list of profiles, in
// JSON or YAML. Every profile config is normalised; one bad item rejects
// the whole document.
func ParseImport(data []byte) ([]ExportedProfile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "invalid import file", err)
	}

	var list *yaml.Node
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root := doc.Content[0]
		switch root.Kind {
		case yaml.SequenceNode:
			list = root
		case yaml.MappingNode:
			for i := 0; i+1 < len(root.Content); i += 2 {
				if root.Content[i].Value == "profiles" && root.Content[i+1].Kind == yaml.SequenceNode {
					list = root.Content[i+1]
				}
			}
		}
	}
	if list == nil {
		return nil, errs.New(errs.KindInvalidInput, "invalid import file: missing profiles array")
	}

	parsed := make([]ExportedProfile, 0, len(list.Content))
	for i, node := range list.Content {
		if node.Kind != yaml.MappingNode {
			return nil, errs.New(errs.KindInvalidInput, fmt.Sprintf("invalid profile item %d in import file", i))
		}
		var item importItem
		if err := node.Decode(&item); err != nil {
			return nil, errs.Wrap(errs.KindInvalidInput, fmt.Sprintf("invalid profile item %d in import file", i), err)
		}
		if item.Config == nil {
			return nil, errs.New(errs.KindInvalidInput, fmt.Sprintf("profile item %d has no config", i))
		}
		cfg, err := Normalize(*item.Config)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = defaultImportName
		}
		parsed = append(parsed, ExportedProfile{Name: name, Config: cfg})
	}
	if len(parsed) == 0 {
		return nil, errs.New(errs.KindInvalidInput, "import file has no profiles")
	}
	return parsed, nil
}

// Import merges the profiles in data into the store using strategy. When no
// profile was active, the first one becomes active.
func (s *Store) Import(data []byte, strategy Strategy) (ImportResult, error) {
	incoming, err := ParseImport(data)
	if err != nil {
		return ImportResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res ImportResult
	now := s.now().UTC()
	names := make(map[string]struct{}, len(s.order))
	for _, id := range s.order {
		names[strings.ToLower(s.profiles[id].Name)] = struct{}{}
	}

	for _, in := range incoming {
		matched := s.findByNameLocked(in.Name)
		if matched != "" {
			switch strategy {
			case StrategySkip:
				res.Skipped++
				continue
			case StrategyOverwrite:
				p := s.profiles[matched]
				p.Name = in.Name
				p.Config = in.Config
				p.UpdatedAt = now
				s.profiles[matched] = p
				delete(s.tests, matched)
				res.Imported++
				res.Overwritten++
				continue
			}
		}

		name := in.Name
		if matched != "" {
			name = uniqueName(names, in.Name)
			res.Renamed++
		} else {
			names[strings.ToLower(name)] = struct{}{}
		}
		p := Profile{ID: uuid.NewString(), Name: name, Config: in.Config, CreatedAt: now, UpdatedAt: now}
		s.profiles[p.ID] = p
		s.order = append(s.order, p.ID)
		res.Imported++
	}

	if _, ok := s.profiles[s.activeID]; !ok && len(s.order) > 0 {
		s.activeID = s.order[0]
	}
	if err := s.save(); err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

func (s *Store) findByNameLocked(name string) string {
	lower := strings.ToLower(name)
	for _, id := range s.order {
		if strings.ToLower(s.profiles[id].Name) == lower {
			return id
		}
	}
	return ""
}

// uniqueName returns base, or "base (Imported N)" for the smallest N not in
// names, and records the result.
func uniqueName(names map[string]struct{}, base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = defaultImportName
	}
	candidate := base
	for n := 1; ; n++ {
		if _, taken := names[strings.ToLower(candidate)]; !taken {
			names[strings.ToLower(candidate)] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf(importedNameFormat, base, n)
	}
}
