package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"pult/internal/schema"
)

// CoerceError — несоответствие формы значения типу свойства.
type CoerceError struct {
	Code    string
	Message string
}

func (e *CoerceError) Error() string { return e.Message }

func cerr(code, msg string) *CoerceError { return &CoerceError{Code: code, Message: msg} }

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`) // YYYY-MM-DD
)

// Coerce строго приводит сырое значение к типу свойства.
// Уже корректно типизированное значение возвращается как есть,
// чтобы проекция existing-записи была идемпотентной.
func Coerce(p schema.Property, v any) (any, *CoerceError) {
	switch p.Type {
	case schema.TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, cerr(IssueTypeMismatch, "must be string")
		}
		if p.Validation.Pattern != "" {
			re, err := regexp.Compile(p.Validation.Pattern)
			if err == nil && !re.MatchString(s) {
				return nil, cerr(IssuePattern, fmt.Sprintf("must match %s", p.Validation.Pattern))
			}
		}
		return s, nil

	case schema.TypeNumber:
		n, err := toNumber(v)
		if err != nil {
			return nil, err
		}
		if p.Validation.Min != nil && toFloat(n) < *p.Validation.Min {
			return nil, cerr(IssueRange, fmt.Sprintf("must be >= %v", *p.Validation.Min))
		}
		if p.Validation.Max != nil && toFloat(n) > *p.Validation.Max {
			return nil, cerr(IssueRange, fmt.Sprintf("must be <= %v", *p.Validation.Max))
		}
		return n, nil

	case schema.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, cerr(IssueTypeMismatch, "must be boolean")
		}
		return b, nil

	case schema.TypeDate:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			if dateRe.MatchString(t) {
				if _, err := time.Parse("2006-01-02", t); err != nil {
					return nil, cerr(IssueTypeMismatch, "invalid date")
				}
				return t, nil
			}
			if _, err := time.Parse(time.RFC3339, t); err != nil {
				return nil, cerr(IssueTypeMismatch, "must be YYYY-MM-DD or RFC3339 datetime")
			}
			return t, nil
		default:
			return nil, cerr(IssueTypeMismatch, "must be date string")
		}

	case schema.TypeEnum:
		s, ok := v.(string)
		if !ok {
			return nil, cerr(IssueTypeMismatch, "must be string")
		}
		if len(p.Enum) > 0 {
			for _, ev := range p.Enum {
				if s == ev {
					return s, nil
				}
			}
			return nil, cerr(IssueEnumInvalid, fmt.Sprintf("value %q is not allowed", s))
		}
		// значения подтянутся из справочника на линте/резолве; без них не гейтим
		return s, nil

	case schema.TypeReference:
		// ожидаем строковый id; существование цели проверяет не проекция
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, cerr(IssueTypeMismatch, "must be a non-empty id string")
		}
		return s, nil

	case schema.TypeArray:
		arr, ok := v.([]any)
		if !ok {
			if sarr, isS := v.([]string); isS {
				arr = make([]any, 0, len(sarr))
				for _, s := range sarr {
					arr = append(arr, s)
				}
			} else {
				return nil, cerr(IssueTypeMismatch, "must be array")
			}
		}
		if p.Of == nil {
			return arr, nil
		}
		out := make([]any, 0, len(arr))
		for i, ev := range arr {
			norm, err := Coerce(*p.Of, ev)
			if err != nil {
				return nil, cerr(err.Code, fmt.Sprintf("element %d: %s", i, err.Message))
			}
			out = append(out, norm)
		}
		return out, nil

	case schema.TypeMap:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, cerr(IssueTypeMismatch, "must be object")
		}
		if p.Of == nil {
			return m, nil
		}
		out := make(map[string]any, len(m))
		for k, mv := range m {
			norm, err := Coerce(*p.Of, mv)
			if err != nil {
				return nil, cerr(err.Code, fmt.Sprintf("key %q: %s", k, err.Message))
			}
			out[k] = norm
		}
		return out, nil

	default:
		// неизвестный тип — оставим как есть
		return v, nil
	}
}

func toNumber(v any) (any, *CoerceError) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return t, nil
	case int64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, cerr(IssueTypeMismatch, "must be number")
		}
		return f, nil
	default:
		return nil, cerr(IssueTypeMismatch, "must be number")
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}

// CheckRequired сверяет значения с required-правилами резолвленных свойств.
// Используется перед сохранением; при проекции required не проверяется.
func CheckRequired(props *schema.PropertyMap, values map[string]any) []Issue {
	var issues []Issue
	for _, key := range props.Keys() {
		p, _ := props.Get(key)
		if !p.Validation.Required {
			continue
		}
		if v, ok := values[key]; !ok || v == nil {
			issues = append(issues, Issue{Code: IssueRequired, Key: key, Message: "property '" + key + "' is required"})
		}
	}
	return issues
}
