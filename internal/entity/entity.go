package entity

import "pult/internal/schema"

// Ref — непрозрачная ссылка на место хранения записи.
// Идентичность сущности = (Collection, ID).
type Ref struct {
	Collection string // FQN коллекции ("module.Entity")
	ID         string
}

// Entity — одна адресуемая запись плюс её типизированные значения.
// Значения меняются только через пайплайн сохранения, не на месте.
type Entity struct {
	ID     string
	Ref    Ref
	Status schema.Status
	Values *Values
}

// Values — упорядоченное отображение ключ свойства -> значение.
// Порядок ключей задаётся резолвленной картой свойств, не хранилищем.
type Values struct {
	keys []string
	m    map[string]any
}

func NewValues() *Values {
	return &Values{m: map[string]any{}}
}

func (v *Values) Put(key string, val any) *Values {
	if v.m == nil {
		v.m = map[string]any{}
	}
	if _, ok := v.m[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.m[key] = val
	return v
}

// Get возвращает значение и признак наличия ключа.
// Явно отсутствующее значение хранится как nil при ok=true.
func (v *Values) Get(key string) (any, bool) {
	if v == nil || v.m == nil {
		return nil, false
	}
	val, ok := v.m[key]
	return val, ok
}

func (v *Values) Keys() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

func (v *Values) Len() int {
	if v == nil {
		return 0
	}
	return len(v.keys)
}

// Map возвращает плоскую копию значений (для записи в хранилище и хуков).
// Ключи с nil-значением опускаются: хранилище не знает про "явно пусто".
func (v *Values) Map() map[string]any {
	out := make(map[string]any, len(v.keys))
	if v == nil {
		return out
	}
	for _, k := range v.keys {
		if v.m[k] == nil {
			continue
		}
		out[k] = v.m[k]
	}
	return out
}
