package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pult/internal/datasource"
	"pult/internal/reference"
	"pult/internal/schema"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer(t *testing.T) (*Server, *gin.Engine, *datasource.Memory) {
	t.Helper()

	schemas := map[string]*schema.EntitySchema{
		"crm.Client": {
			Module: "crm", Name: "Client",
			Properties: schema.NewPropertyMap().
				Put("title", schema.Property{Type: schema.TypeString, Validation: schema.Validation{Required: true}}).
				Put("status", schema.Property{Type: schema.TypeEnum, Enum: []string{"draft", "active"}}).
				Put("country", schema.Property{Type: schema.TypeEnum, EnumRef: "countries"}).
				Put("score", schema.Property{Type: schema.TypeNumber}),
			DefaultValues: map[string]any{"status": "draft"},
		},
		"crm.Slug": {
			Module: "crm", Name: "Slug",
			CustomID: schema.CustomID{Enabled: true},
			Properties: schema.NewPropertyMap().
				Put("title", schema.Property{Type: schema.TypeString}),
		},
	}
	enums := map[string]reference.EnumSet{
		"countries": {Name: "countries", Items: []reference.EnumItem{{Code: "ru"}, {Code: "kz"}}},
	}

	src := datasource.NewMemory()
	srv := NewServer(schema.NewRegistry(schemas, enums), src, nil, nil, nil, zerolog.Nop())
	return srv, srv.Router(), src
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateAppliesDefaults(t *testing.T) {
	_, r, src := testServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/crm/Client", map[string]any{"title": "ACME"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	out := decode(t, w)
	id, _ := out["id"].(string)
	require.NotEmpty(t, id)

	rec, err := src.Get(context.Background(), "crm.Client", id)
	require.NoError(t, err)
	assert.Equal(t, "ACME", rec["title"])
	assert.Equal(t, "draft", rec["status"]) // дефолт схемы
}

func TestCreateRejectsBadEnum(t *testing.T) {
	_, r, _ := testServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/crm/Client", map[string]any{"title": "X", "status": "bogus"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "enum_invalid")
}

func TestCreateCustomIDRequired(t *testing.T) {
	_, r, _ := testServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/crm/Slug", map[string]any{"title": "X"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/crm/Slug", map[string]any{"id": "about", "title": "X"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "about", decode(t, w)["id"])
}

func TestGetOneProjectsExisting(t *testing.T) {
	_, r, src := testServer(t)

	id, err := src.Set(context.Background(), "crm.Client", "", datasource.Record{"title": "ACME", "score": float64(7)})
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodGet, "/api/crm/Client/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	out := decode(t, w)
	vals, _ := out["values"].([]any)
	require.Len(t, vals, 4)

	// порядок полей — из схемы, отсутствующие ключи отдаются явным null
	keys := make([]string, 0, len(vals))
	byKey := map[string]any{}
	for _, item := range vals {
		kv := item.(map[string]any)
		k := kv["key"].(string)
		keys = append(keys, k)
		byKey[k] = kv["value"]
	}
	assert.Equal(t, []string{"title", "status", "country", "score"}, keys)
	assert.Equal(t, "ACME", byKey["title"])
	assert.Nil(t, byKey["status"]) // дефолт на existing не применяется
	assert.Equal(t, float64(7), byKey["score"])

	assert.Equal(t, `"1"`, w.Header().Get("ETag"))
}

func TestGetOneNotFound(t *testing.T) {
	_, r, _ := testServer(t)
	w := doJSON(t, r, http.MethodGet, "/api/crm/Client/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdate(t *testing.T) {
	_, r, src := testServer(t)

	id, err := src.Set(context.Background(), "crm.Client", "", datasource.Record{"title": "ACME", "status": "draft"})
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPut, "/api/crm/Client/"+id, map[string]any{"title": "ACME 2", "status": "active"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, err := src.Get(context.Background(), "crm.Client", id)
	require.NoError(t, err)
	assert.Equal(t, "ACME 2", rec["title"])
	assert.Equal(t, "active", rec["status"])

	w = doJSON(t, r, http.MethodPut, "/api/crm/Client/nope", map[string]any{"title": "X"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateRejectsBadValues(t *testing.T) {
	_, r, src := testServer(t)

	id, err := src.Set(context.Background(), "crm.Client", "", datasource.Record{"title": "ACME", "status": "draft"})
	require.NoError(t, err)

	// update гейтится тем же коэрсингом, что и create
	w := doJSON(t, r, http.MethodPut, "/api/crm/Client/"+id, map[string]any{"title": "ACME", "status": "bogus"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "enum_invalid")

	w = doJSON(t, r, http.MethodPut, "/api/crm/Client/"+id, map[string]any{"title": "ACME", "score": "NaN-ish"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "type_mismatch")

	// запись не изменилась
	rec, err := src.Get(context.Background(), "crm.Client", id)
	require.NoError(t, err)
	assert.Equal(t, "draft", rec["status"])
	assert.NotContains(t, rec, "score")
}

func TestDelete(t *testing.T) {
	_, r, src := testServer(t)

	id, err := src.Set(context.Background(), "crm.Client", "", datasource.Record{"title": "ACME"})
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodDelete, "/api/crm/Client/"+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	_, err = src.Get(context.Background(), "crm.Client", id)
	assert.ErrorIs(t, err, datasource.ErrNotFound)
}

func TestDeleteBlockedByPreDeleteHook(t *testing.T) {
	srv, r, src := testServer(t)

	id, err := src.Set(context.Background(), "crm.Client", "", datasource.Record{"title": "ACME"})
	require.NoError(t, err)

	require.NoError(t, srv.Registry.RegisterHooks("crm.Client", schema.Hooks{
		OnPreDelete: func(ctx context.Context, ev *schema.HookEvent) error {
			return errors.New("client has open deals")
		},
	}))

	w := doJSON(t, r, http.MethodDelete, "/api/crm/Client/"+id, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// запись жива
	_, err = src.Get(context.Background(), "crm.Client", id)
	assert.NoError(t, err)
}

func TestListSortAndPaging(t *testing.T) {
	_, r, src := testServer(t)
	ctx := context.Background()

	for _, rec := range []datasource.Record{
		{"title": "bravo", "score": float64(2)},
		{"title": "alpha", "score": float64(1)},
		{"title": "delta"},
		{"title": "charlie", "score": float64(3)},
	} {
		_, err := src.Set(ctx, "crm.Client", "", rec)
		require.NoError(t, err)
	}

	w := doJSON(t, r, http.MethodGet, "/api/crm/Client?_sort=title&_limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "4", w.Header().Get("X-Total-Count"))

	var page []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page, 2)
	assert.Equal(t, "alpha", page[0]["title"])
	assert.Equal(t, "bravo", page[1]["title"])

	// запись без score уходит в конец при nulls=last
	w = doJSON(t, r, http.MethodGet, "/api/crm/Client?_sort=score", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page, 4)
	assert.Equal(t, "delta", page[3]["title"])

	w = doJSON(t, r, http.MethodGet, "/api/crm/Client?_sort=score&nulls=first", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, "delta", page[0]["title"])

	w = doJSON(t, r, http.MethodGet, "/api/crm/Client?_sort=title&_offset=3", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page, 1)
	assert.Equal(t, "delta", page[0]["title"])
}

func TestUnknownEntity(t *testing.T) {
	_, r, _ := testServer(t)
	w := doJSON(t, r, http.MethodGet, "/api/crm/Ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShortNameLookup(t *testing.T) {
	_, r, _ := testServer(t)
	// регистронезависимый резолв module/entity
	w := doJSON(t, r, http.MethodPost, "/api/CRM/client", map[string]any{"title": "ACME"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestMetaEntity(t *testing.T) {
	_, r, _ := testServer(t)

	w := doJSON(t, r, http.MethodGet, "/api/meta/crm/Client", nil)
	require.Equal(t, http.StatusOK, w.Code)

	out := decode(t, w)
	props, _ := out["properties"].([]any)
	require.Len(t, props, 4)

	var country map[string]any
	for _, p := range props {
		pm := p.(map[string]any)
		if pm["key"] == "country" {
			country = pm
		}
	}
	require.NotNil(t, country)
	// enum_ref разворачивается в коды справочника
	assert.Equal(t, []any{"ru", "kz"}, country["enum"])
}

func TestMetaList(t *testing.T) {
	_, r, _ := testServer(t)

	w := doJSON(t, r, http.MethodGet, "/api/meta", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	assert.Len(t, rows, 2)
}

func TestFlattenClash(t *testing.T) {
	st := &datasource.Stored{ID: "x", Version: 3, Data: datasource.Record{"id": "user-id", "title": "A"}}
	out := flatten(st)
	assert.Equal(t, "x", out["id"])
	assert.Equal(t, "user-id", out["data.id"])
	assert.Equal(t, "A", out["title"])
}
