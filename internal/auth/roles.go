package auth

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Op — операция над сущностью, на которую выдаётся право.
type Op string

const (
	OpCreate Op = "create"
	OpRead   Op = "read"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Permissions — права роли над {create, read, update, delete}.
type Permissions struct {
	Create bool `yaml:"create"`
	Read   bool `yaml:"read"`
	Update bool `yaml:"update"`
	Delete bool `yaml:"delete"`
}

func (p Permissions) allows(op Op) bool {
	switch op {
	case OpCreate:
		return p.Create
	case OpRead:
		return p.Read
	case OpUpdate:
		return p.Update
	case OpDelete:
		return p.Delete
	}
	return false
}

// Role — именованный набор прав для области действия.
// Пустой Collections (или "*") означает все коллекции.
type Role struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Permissions Permissions `yaml:"permissions"`
	Collections []string    `yaml:"collections,omitempty"`
}

func (r Role) covers(collection string) bool {
	if len(r.Collections) == 0 {
		return true
	}
	for _, c := range r.Collections {
		if c == "*" || c == collection {
			return true
		}
	}
	return false
}

// RoleRegistry — статический реестр ролей, грузится из YAML-каталога.
type RoleRegistry struct {
	mu    sync.RWMutex
	roles map[string]Role
	log   zerolog.Logger
}

type roleFile struct {
	Roles []Role `yaml:"roles"`
}

func NewRoleRegistry(roles []Role, log zerolog.Logger) *RoleRegistry {
	m := make(map[string]Role, len(roles))
	for _, r := range roles {
		m[r.ID] = r
	}
	return &RoleRegistry{roles: m, log: log}
}

// LoadRoles читает реестр ролей из одного YAML-файла.
func LoadRoles(path string, log zerolog.Logger) (*RoleRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f roleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return NewRoleRegistry(f.Roles, log), nil
}

// Replace атомарно подменяет набор ролей (hot reload).
func (rr *RoleRegistry) Replace(roles []Role) {
	m := make(map[string]Role, len(roles))
	for _, r := range roles {
		m[r.ID] = r
	}
	rr.mu.Lock()
	rr.roles = m
	rr.mu.Unlock()
}

// Resolve возвращает эффективные роли по списку id.
// Неизвестные id молча отбрасываются (мягкая политика реестра);
// в лог пишется warning, чтобы опечатка в конфиге не пропала бесследно.
func (rr *RoleRegistry) Resolve(ids []string) []Role {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	out := make([]Role, 0, len(ids))
	for _, id := range ids {
		r, ok := rr.roles[id]
		if !ok {
			rr.log.Warn().Str("role", id).Msg("unknown role id dropped")
			continue
		}
		out = append(out, r)
	}
	return out
}
