package schema

import (
	"fmt"
	"strings"

	"pult/internal/reference"
)

type Issue struct {
	Entity  string `json:"entity"` // FQN: module.Entity
	Key     string `json:"key"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Lint проверяет базовые противоречия в каталоге схем до того,
// как реестр его примет. Динамические билдеры линт не трогает —
// их результат проверяется на резолве.
func Lint(schemas map[string]*EntitySchema, enums map[string]reference.EnumSet) []Issue {
	var issues []Issue

	push := func(fqn, key, code, msg string) {
		issues = append(issues, Issue{Entity: fqn, Key: key, Code: code, Message: msg})
	}

	for fqn, e := range schemas {
		if e.Properties == nil && e.PropertiesBuilder == nil {
			push(fqn, "", "no_properties", "schema declares neither properties nor a builder")
			continue
		}
		if e.CustomID.Enabled && len(e.CustomID.Allowed) == 0 && e.CustomID.Allowed != nil {
			push(fqn, "", "custom_id_empty", "custom_id enum is empty")
		}

		if e.Properties != nil {
			for _, key := range e.Properties.Keys() {
				p, _ := e.Properties.Get(key)
				lintProperty(fqn, key, p, schemas, enums, push)
			}
			// дефолты должны попадать в объявленные ключи
			for dk := range e.DefaultValues {
				if _, ok := e.Properties.Get(dk); !ok {
					push(fqn, dk, "default_unknown_key", fmt.Sprintf("default value for undeclared property %q", dk))
				}
			}
		}
	}
	return issues
}

func lintProperty(fqn, key string, p Property, schemas map[string]*EntitySchema, enums map[string]reference.EnumSet, push func(fqn, key, code, msg string)) {
	switch p.Type {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeMap:
	case TypeEnum:
		if len(p.Enum) == 0 && p.EnumRef == "" {
			push(fqn, key, "enum_empty", "enum property has neither values nor enum_ref")
		}
		if p.EnumRef != "" {
			if _, ok := enums[p.EnumRef]; !ok {
				push(fqn, key, "enum_ref_unknown", fmt.Sprintf("enum_ref %q not found in catalog", p.EnumRef))
			}
		}
	case TypeReference:
		tgt := strings.TrimSpace(p.RefTarget)
		if tgt == "" {
			push(fqn, key, "ref_target_empty", "reference property has empty ref target")
			return
		}
		if strings.Contains(tgt, ".") {
			if _, ok := schemas[tgt]; !ok {
				push(fqn, key, "ref_target_unknown", fmt.Sprintf("reference target %q not found", tgt))
			}
		}
	case TypeArray:
		if p.Of == nil {
			push(fqn, key, "array_no_elem", "array property has no element type (of)")
			return
		}
		lintProperty(fqn, key, *p.Of, schemas, enums, push)
	default:
		push(fqn, key, "type_unknown", fmt.Sprintf("unknown property type %q", p.Type))
	}

	if p.Validation.Required && p.Validation.Readonly {
		push(fqn, key, "required_conflicts_readonly", "required property cannot be readonly")
	}
	if p.Validation.Min != nil && p.Validation.Max != nil && *p.Validation.Min > *p.Validation.Max {
		push(fqn, key, "min_gt_max", "min is greater than max")
	}
}
