package schema

import (
	"fmt"
	"strings"
	"sync"

	"pult/internal/reference"
)

// Registry — реестр схем и справочников. YAML даёт статическую часть,
// билдеры и хуки довешиваются из Go-кода через RegisterBuilder/RegisterHooks
// (функциям в YAML места нет).
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*EntitySchema
	enums   map[string]reference.EnumSet
}

func NewRegistry(schemas map[string]*EntitySchema, enums map[string]reference.EnumSet) *Registry {
	if schemas == nil {
		schemas = map[string]*EntitySchema{}
	}
	if enums == nil {
		enums = map[string]reference.EnumSet{}
	}
	return &Registry{schemas: schemas, enums: enums}
}

func (r *Registry) Get(fqn string) (*EntitySchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[fqn]
	return s, ok
}

// All возвращает копию карты схем (сами схемы не копируются — они read-only).
func (r *Registry) All() map[string]*EntitySchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*EntitySchema, len(r.schemas))
	for k, v := range r.schemas {
		out[k] = v
	}
	return out
}

func (r *Registry) EnumSet(name string) (reference.EnumSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.enums[name]
	return s, ok
}

func (r *Registry) Enums() map[string]reference.EnumSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]reference.EnumSet, len(r.enums))
	for k, v := range r.enums {
		out[k] = v
	}
	return out
}

// RegisterBuilder вешает динамический билдер свойств на схему.
// Статическая карта (если была) остаётся fallback'ом для линта/меты.
func (r *Registry) RegisterBuilder(fqn string, b Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schemas[fqn]
	if !ok {
		return fmt.Errorf("unknown schema %q", fqn)
	}
	s.PropertiesBuilder = b
	return nil
}

// RegisterHooks вешает хуки жизненного цикла на схему.
func (r *Registry) RegisterHooks(fqn string, h Hooks) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schemas[fqn]
	if !ok {
		return fmt.Errorf("unknown schema %q", fqn)
	}
	s.Hooks = h
	return nil
}

// Normalize возвращает FQN по паре {module, name}.
// Если module пустой — ищем единственную сущность с таким именем среди всех
// модулей; неуникальное короткое имя не резолвится.
func (r *Registry) Normalize(module, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	ml := strings.ToLower(strings.TrimSpace(module))
	nl := strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	defer r.mu.RUnlock()

	if ml != "" {
		if _, ok := r.schemas[module+"."+name]; ok {
			return module + "." + name, true
		}
		// регистронезависимо
		for fqn := range r.schemas {
			dot := strings.IndexByte(fqn, '.')
			if dot <= 0 {
				continue
			}
			if strings.ToLower(fqn[:dot]) == ml && strings.ToLower(fqn[dot+1:]) == nl {
				return fqn, true
			}
		}
		return "", false
	}

	var found string
	for fqn := range r.schemas {
		dot := strings.IndexByte(fqn, '.')
		if dot <= 0 {
			continue
		}
		if strings.ToLower(fqn[dot+1:]) == nl {
			if found != "" { // неуникально
				return "", false
			}
			found = fqn
		}
	}
	return found, found != ""
}

// Replace атомарно подменяет схемы и справочники (hot reload).
// Билдеры и хуки с прежних схем переносятся по совпадению FQN, чтобы
// перезагрузка каталога их не теряла.
func (r *Registry) Replace(schemas map[string]*EntitySchema, enums map[string]reference.EnumSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for fqn, old := range r.schemas {
		neu, ok := schemas[fqn]
		if !ok {
			continue
		}
		if neu.PropertiesBuilder == nil {
			neu.PropertiesBuilder = old.PropertiesBuilder
		}
		if neu.Hooks.empty() {
			neu.Hooks = old.Hooks
		}
	}
	r.schemas = schemas
	if enums != nil {
		r.enums = enums
	}
}
