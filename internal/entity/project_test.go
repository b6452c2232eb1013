package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pult/internal/schema"
)

func clientProps() *schema.PropertyMap {
	return schema.NewPropertyMap().
		Put("title", schema.Property{Type: schema.TypeString, Validation: schema.Validation{Required: true}}).
		Put("status", schema.Property{Type: schema.TypeEnum, Enum: []string{"draft", "active"}}).
		Put("score", schema.Property{Type: schema.TypeNumber}).
		Put("vip", schema.Property{Type: schema.TypeBoolean, Default: false})
}

func TestProjectNewDefaults(t *testing.T) {
	defaults := map[string]any{"title": "Untitled", "status": "draft"}

	// новая сущность без оверлея: чистые дефолты, остальное — явный nil
	vals, issues := Project(nil, clientProps(), defaults, schema.StatusNew, nil)
	require.Empty(t, issues)
	assert.Equal(t, []string{"title", "status", "score", "vip"}, vals.Keys())

	got, ok := vals.Get("title")
	require.True(t, ok)
	assert.Equal(t, "Untitled", got)
	got, _ = vals.Get("status")
	assert.Equal(t, "draft", got)

	score, ok := vals.Get("score")
	require.True(t, ok)
	assert.Nil(t, score)

	// дефолт уровня свойства срабатывает, когда схемный молчит
	vip, _ := vals.Get("vip")
	assert.Equal(t, false, vip)
}

func TestProjectNewOverlayWins(t *testing.T) {
	defaults := map[string]any{"title": "Untitled", "status": "draft"}
	overlay := map[string]any{"title": "ACME"}

	vals, issues := Project(nil, clientProps(), defaults, schema.StatusNew, overlay)
	require.Empty(t, issues)

	got, _ := vals.Get("title")
	assert.Equal(t, "ACME", got)
	got, _ = vals.Get("status")
	assert.Equal(t, "draft", got)
}

func TestProjectExistingIgnoresDefaults(t *testing.T) {
	raw := map[string]any{"title": "ACME", "score": float64(42)}
	defaults := map[string]any{"title": "Untitled", "status": "draft"}

	vals, issues := Project(raw, clientProps(), defaults, schema.StatusExisting, nil)
	require.Empty(t, issues)

	// отсутствующий в записи ключ — явный nil, а не дефолт
	status, ok := vals.Get("status")
	require.True(t, ok)
	assert.Nil(t, status)

	got, _ := vals.Get("score")
	assert.Equal(t, float64(42), got)
}

func TestProjectExistingIdempotent(t *testing.T) {
	raw := map[string]any{"title": "ACME", "status": "active", "score": float64(7), "vip": true}
	props := clientProps()

	vals, issues := Project(raw, props, nil, schema.StatusExisting, nil)
	require.Empty(t, issues)

	// повторная проекция поверх Map() даёт те же значения
	again, issues := Project(vals.Map(), props, nil, schema.StatusExisting, nil)
	require.Empty(t, issues)
	assert.Equal(t, vals.Map(), again.Map())
}

func TestProjectCoercionIssueKeepsRaw(t *testing.T) {
	raw := map[string]any{"title": "ACME", "score": "not-a-number", "status": "bogus"}

	vals, issues := Project(raw, clientProps(), nil, schema.StatusExisting, nil)
	require.Len(t, issues, 2)

	byKey := map[string]Issue{}
	for _, is := range issues {
		byKey[is.Key] = is
	}
	assert.Equal(t, IssueTypeMismatch, byKey["score"].Code)
	assert.Equal(t, IssueEnumInvalid, byKey["status"].Code)

	// сырое значение не теряется
	got, _ := vals.Get("score")
	assert.Equal(t, "not-a-number", got)
	got, _ = vals.Get("status")
	assert.Equal(t, "bogus", got)
}

func TestProjectCopyUsesOverlay(t *testing.T) {
	source := map[string]any{"title": "ACME", "status": "active"}
	defaults := map[string]any{"status": "draft"}

	vals, issues := Project(nil, clientProps(), defaults, schema.StatusCopy, source)
	require.Empty(t, issues)

	got, _ := vals.Get("title")
	assert.Equal(t, "ACME", got)
	got, _ = vals.Get("status")
	assert.Equal(t, "active", got)
}

func TestCoerce(t *testing.T) {
	num := schema.Property{Type: schema.TypeNumber}
	v, err := Coerce(num, "3.5")
	require.Nil(t, err)
	assert.Equal(t, 3.5, v)

	min := 10.0
	bounded := schema.Property{Type: schema.TypeNumber, Validation: schema.Validation{Min: &min}}
	_, err = Coerce(bounded, float64(5))
	require.NotNil(t, err)
	assert.Equal(t, IssueRange, err.Code)

	pat := schema.Property{Type: schema.TypeString, Validation: schema.Validation{Pattern: `^\d{4}$`}}
	_, err = Coerce(pat, "12a4")
	require.NotNil(t, err)
	assert.Equal(t, IssuePattern, err.Code)

	date := schema.Property{Type: schema.TypeDate}
	v, err = Coerce(date, "2026-08-30")
	require.Nil(t, err)
	assert.Equal(t, "2026-08-30", v)
	_, err = Coerce(date, "30.08.2026")
	assert.NotNil(t, err)

	str := schema.Property{Type: schema.TypeString}
	arr := schema.Property{Type: schema.TypeArray, Of: &str}
	v, err = Coerce(arr, []any{"a", "b"})
	require.Nil(t, err)
	assert.Equal(t, []any{"a", "b"}, v)
	_, err = Coerce(arr, []any{"a", 5})
	assert.NotNil(t, err)

	ref := schema.Property{Type: schema.TypeReference, RefTarget: "crm.Client"}
	_, err = Coerce(ref, "  ")
	assert.NotNil(t, err)
}

func TestCheckRequired(t *testing.T) {
	props := clientProps()

	issues := CheckRequired(props, map[string]any{"status": "draft"})
	require.Len(t, issues, 1)
	assert.Equal(t, "title", issues[0].Key)
	assert.Equal(t, IssueRequired, issues[0].Code)

	assert.Empty(t, CheckRequired(props, map[string]any{"title": "X"}))
}

func TestValuesMapSkipsNil(t *testing.T) {
	v := NewValues().Put("a", 1).Put("b", nil)
	assert.Equal(t, []string{"a", "b"}, v.Keys())
	assert.Equal(t, map[string]any{"a": 1}, v.Map())
}
