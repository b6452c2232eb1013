package schema

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DataType — тип значения свойства.
type DataType string

const (
	TypeString    DataType = "string"
	TypeNumber    DataType = "number"
	TypeBoolean   DataType = "boolean"
	TypeDate      DataType = "date"
	TypeReference DataType = "reference"
	TypeArray     DataType = "array"
	TypeMap       DataType = "map"
	TypeEnum      DataType = "enum"
)

// Status — статус экземпляра сущности относительно хранилища.
type Status string

const (
	StatusNew      Status = "new"      // ещё не сохранялась, id нет
	StatusExisting Status = "existing" // прочитана из хранилища
	StatusCopy     Status = "copy"     // значения скопированы с другой записи, id нет
)

// Validation — правила валидации/отображения свойства.
type Validation struct {
	Required bool     `yaml:"required,omitempty"`
	Unique   bool     `yaml:"unique,omitempty"`
	Readonly bool     `yaml:"readonly,omitempty"`
	Min      *float64 `yaml:"min,omitempty"`
	Max      *float64 `yaml:"max,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty"`
}

// Property описывает одно поле сущности: тип значения плюс метаданные.
type Property struct {
	Type        DataType   `yaml:"type"`
	Title       string     `yaml:"title,omitempty"`       // человекочитаемое имя для фронта
	Description string     `yaml:"description,omitempty"`
	Enum        []string   `yaml:"enum,omitempty"`     // значения для type=enum
	EnumRef     string     `yaml:"enum_ref,omitempty"` // имя справочника из каталога (альтернатива Enum)
	RefTarget   string     `yaml:"ref,omitempty"`      // FQN целевой сущности для type=reference
	Of          *Property  `yaml:"of,omitempty"`       // элемент массива / значение map
	Validation  Validation `yaml:"validation,omitempty"`
	Default     any        `yaml:"default,omitempty"`
}

// PropertyMap — упорядоченная карта key -> Property.
// Порядок вставки сохраняется: от него зависит порядок полей при проекции.
type PropertyMap struct {
	keys  []string
	props map[string]Property
}

func NewPropertyMap() *PropertyMap {
	return &PropertyMap{props: map[string]Property{}}
}

// Put добавляет (или заменяет) свойство. Возвращает m для чейнинга.
func (m *PropertyMap) Put(key string, p Property) *PropertyMap {
	if m.props == nil {
		m.props = map[string]Property{}
	}
	if _, ok := m.props[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.props[key] = p
	return m
}

func (m *PropertyMap) Get(key string) (Property, bool) {
	if m == nil || m.props == nil {
		return Property{}, false
	}
	p, ok := m.props[key]
	return p, ok
}

// Keys возвращает ключи в порядке объявления.
func (m *PropertyMap) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *PropertyMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

func (m *PropertyMap) Clone() *PropertyMap {
	if m == nil {
		return nil
	}
	out := NewPropertyMap()
	for _, k := range m.keys {
		out.Put(k, m.props[k])
	}
	return out
}

// UnmarshalYAML читает map-узел с сохранением порядка ключей
// (обычный map[string]Property порядок бы потерял).
func (m *PropertyMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("properties: expected mapping, got %v", node.Kind)
	}
	m.keys = nil
	m.props = map[string]Property{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key string
		if err := node.Content[i].Decode(&key); err != nil {
			return err
		}
		var p Property
		if err := node.Content[i+1].Decode(&p); err != nil {
			return fmt.Errorf("property %q: %w", key, err)
		}
		m.Put(key, p)
	}
	return nil
}

// CustomID — политика назначения id: либо флаг, либо список допустимых значений.
type CustomID struct {
	Enabled bool
	Allowed []string // непусто => id выбирается из этого списка
}

// UnmarshalYAML принимает и `custom_id: true`, и `custom_id: [a, b]`.
func (c *CustomID) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		c.Enabled = b
		c.Allowed = nil
		return nil
	case yaml.SequenceNode:
		var vals []string
		if err := node.Decode(&vals); err != nil {
			return err
		}
		c.Enabled = true
		c.Allowed = vals
		return nil
	default:
		return fmt.Errorf("custom_id: expected bool or list")
	}
}

// AccessSnapshot — срез авторизационного состояния, который видят хуки.
// Заполняется пайплайном из контроллера авторизации на момент операции.
type AccessSnapshot struct {
	UserID string
	Email  string
	Roles  []string
	Extra  map[string]any
}

// HookEvent — контекст вызова хука жизненного цикла.
type HookEvent struct {
	Schema     *EntitySchema
	Collection string // FQN коллекции ("module.Entity")
	ID         string // пустой для new/copy до сохранения
	Values     map[string]any
	Status     Status
	Access     *AccessSnapshot
	Err        error // только для OnSaveFailure
}

// Hooks — пользовательские хуки жизненного цикла save/delete.
// Pre-хуки могут прервать операцию; post-хуки best-effort.
type Hooks struct {
	// OnPreSave возвращает (возможно преобразованные) значения для записи.
	// Ошибка прерывает сохранение до обращения к хранилищу.
	OnPreSave func(ctx context.Context, ev *HookEvent) (map[string]any, error)
	// OnSaveSuccess вызывается строго после успешной записи.
	OnSaveSuccess func(ctx context.Context, ev *HookEvent) error
	// OnSaveFailure вызывается при ошибке записи; ev.Err содержит её.
	OnSaveFailure func(ctx context.Context, ev *HookEvent) error
	// OnPreDelete — валидационный гейт перед удалением; ошибка прерывает его.
	OnPreDelete func(ctx context.Context, ev *HookEvent) error
	// OnDelete вызывается строго после успешного удаления.
	OnDelete func(ctx context.Context, ev *HookEvent) error
}

func (h Hooks) empty() bool {
	return h.OnPreSave == nil && h.OnSaveSuccess == nil && h.OnSaveFailure == nil &&
		h.OnPreDelete == nil && h.OnDelete == nil
}

// CustomView — дополнительное представление сущности для фронта.
// Ядро его не интерпретирует, только отдаёт в метаданных.
type CustomView struct {
	Path        string `yaml:"path"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// BuilderContext — контекст для динамического билдера свойств.
type BuilderContext struct {
	Values   map[string]any // текущие (возможно частичные) значения
	EntityID string
	Path     string
}

// Builder строит карту свойств по текущим значениям сущности.
// Должен быть чистой функцией: без побочных эффектов, детерминирован,
// не мутирует ctx.Values.
type Builder func(ctx BuilderContext) (*PropertyMap, error)

// EntitySchema — декларативное описание сущности.
// После конструирования не меняется; ядро читает её, не пишет.
type EntitySchema struct {
	Module        string         `yaml:"-"`
	Name          string         `yaml:"name"`
	Description   string         `yaml:"description,omitempty"`
	CustomID      CustomID       `yaml:"custom_id,omitempty"`
	Properties    *PropertyMap   `yaml:"properties,omitempty"`
	DefaultValues map[string]any `yaml:"default_values,omitempty"`
	Views         []CustomView   `yaml:"views,omitempty"`

	// PropertiesBuilder и Hooks регистрируются из Go-кода (см. Registry),
	// в YAML им места нет.
	PropertiesBuilder Builder `yaml:"-"`
	Hooks             Hooks   `yaml:"-"`
}

// FQN возвращает "module.Name".
func (s *EntitySchema) FQN() string {
	return s.Module + "." + s.Name
}
