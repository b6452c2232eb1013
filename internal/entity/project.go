package entity

import "pult/internal/schema"

// Issue — несмертельная проблема одного поля при проекции.
// Отдаётся вызывающему для показа, проекцию не прерывает.
type Issue struct {
	Code    string `json:"code"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

// Коды ошибок полей
const (
	IssueTypeMismatch = "type_mismatch"
	IssueEnumInvalid  = "enum_invalid"
	IssueRequired     = "required"
	IssuePattern      = "pattern_mismatch"
	IssueRange        = "out_of_range"
	IssueUnique       = "unique_violation"
	IssueReadonly     = "readonly_field"
	IssueRefNotFound  = "ref_not_found"
)

// Project строит типизированные значения сущности из сырой записи.
//
// Для new/copy базой служат default-значения схемы, поверх — явно
// переданные значения (для copy это значения источника). Для existing
// базой служит сырая запись; отсутствующие в ней ключи заполняются
// явным nil — дефолты применяются только к совершенно новым сущностям.
//
// Значение, не прошедшее коэрсинг под тип свойства, остаётся сырым,
// а проблема попадает в issues: редактору нужно что показывать.
// Порядок ключей результата — порядок резолвленной карты свойств.
func Project(raw map[string]any, props *schema.PropertyMap, defaults map[string]any, status schema.Status, overlay map[string]any) (*Values, []Issue) {
	out := NewValues()
	var issues []Issue

	for _, key := range props.Keys() {
		p, _ := props.Get(key)

		var val any
		var present bool
		switch status {
		case schema.StatusNew, schema.StatusCopy:
			if defaults != nil {
				val, present = defaults[key]
			}
			if p.Default != nil && !present {
				val, present = p.Default, true
			}
			if overlay != nil {
				if ov, ok := overlay[key]; ok {
					val, present = ov, true
				}
			}
		default: // existing
			if raw != nil {
				val, present = raw[key]
			}
		}

		if !present || val == nil {
			// явно пусто, не дефолтится
			out.Put(key, nil)
			continue
		}

		norm, err := Coerce(p, val)
		if err != nil {
			issues = append(issues, Issue{Code: err.Code, Key: key, Message: "property '" + key + "' " + err.Message})
			out.Put(key, val) // оставляем сырое значение
			continue
		}
		out.Put(key, norm)
	}

	return out, issues
}
