package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pult/internal/entity"
	"pult/internal/pipeline"
	"pult/internal/schema"
)

// POST /api/:module/:entity
func (s *Server) create(c *gin.Context) {
	fqn, sch, ok := s.lookup(c)
	if !ok {
		return
	}

	var obj map[string]any
	if err := c.ShouldBindJSON(&obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	// явный id для схем с custom_id приходит в теле
	id, _ := obj["id"].(string)
	delete(obj, "id")

	props, err := schema.Resolve(sch, obj, id, fqn)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	// проекция new: дефолты схемы + присланные значения поверх
	vals, issues := entity.Project(nil, props, sch.DefaultValues, schema.StatusNew, obj)
	if hard := hardIssues(issues); len(hard) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": hard})
		return
	}

	res, err := s.Saver.Save(c.Request.Context(), pipeline.SaveRequest{
		Schema:     sch,
		Collection: fqn,
		ID:         id,
		Values:     vals.Map(),
		Status:     schema.StatusNew,
		Access:     s.Access,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": res.ID, "values": res.Values, "issues": res.Issues})
}

// GET /api/:module/:entity
func (s *Server) list(c *gin.Context) {
	fqn, _, ok := s.lookup(c)
	if !ok {
		return
	}
	b, ok := s.browser()
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "source does not support listing"})
		return
	}

	all, err := b.List(c.Request.Context(), fqn)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	lp := parseListParams(c.Request.URL.Query())
	if len(lp.Sort) > 0 {
		sortStoredMulti(all, lp.Sort, lp.Nulls)
	}

	start := lp.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + lp.Limit
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]

	out := make([]map[string]any, 0, len(page))
	for _, st := range page {
		out = append(out, flatten(st))
	}
	c.Header("X-Total-Count", strconv.Itoa(len(all)))
	c.JSON(http.StatusOK, out)
}

// GET /api/:module/:entity/:id
func (s *Server) getOne(c *gin.Context) {
	fqn, sch, ok := s.lookup(c)
	if !ok {
		return
	}
	id := c.Param("id")

	raw, err := s.Source.Get(c.Request.Context(), fqn, id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": "Record not found"})
		return
	}

	props, rerr := schema.Resolve(sch, raw, id, fqn)
	if rerr != nil {
		c.JSON(statusForError(rerr), gin.H{"error": rerr.Error()})
		return
	}

	// проекция existing: порядок полей — из схемы, дефолты не применяются
	vals, issues := entity.Project(raw, props, sch.DefaultValues, schema.StatusExisting, nil)

	resp := gin.H{"id": id, "values": orderedOut(vals)}
	if len(issues) > 0 {
		resp["issues"] = issues
	}
	if b, ok := s.browser(); ok {
		if st, err := b.GetStored(c.Request.Context(), fqn, id); err == nil {
			c.Header("ETag", `"`+strconv.FormatInt(st.Version, 10)+`"`)
			resp["version"] = st.Version
		}
	}
	c.JSON(http.StatusOK, resp)
}

// PUT /api/:module/:entity/:id
func (s *Server) update(c *gin.Context) {
	fqn, sch, ok := s.lookup(c)
	if !ok {
		return
	}
	id := c.Param("id")

	if _, err := s.Source.Get(c.Request.Context(), fqn, id); err != nil {
		c.JSON(statusForError(err), gin.H{"error": "Record not found"})
		return
	}

	var obj map[string]any
	if err := c.ShouldBindJSON(&obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	delete(obj, "id")

	// тот же гейт коэрсинга, что и на create: битые значения не пишем
	props, rerr := schema.Resolve(sch, obj, id, fqn)
	if rerr != nil {
		c.JSON(statusForError(rerr), gin.H{"error": rerr.Error()})
		return
	}
	vals, issues := entity.Project(obj, props, sch.DefaultValues, schema.StatusExisting, nil)
	if hard := hardIssues(issues); len(hard) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": hard})
		return
	}

	res, err := s.Saver.Save(c.Request.Context(), pipeline.SaveRequest{
		Schema:     sch,
		Collection: fqn,
		ID:         id,
		Values:     vals.Map(),
		Status:     schema.StatusExisting,
		Access:     s.Access,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": res.ID, "values": res.Values, "issues": res.Issues})
}

// DELETE /api/:module/:entity/:id
func (s *Server) remove(c *gin.Context) {
	fqn, sch, ok := s.lookup(c)
	if !ok {
		return
	}
	id := c.Param("id")

	raw, err := s.Source.Get(c.Request.Context(), fqn, id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": "Record not found"})
		return
	}

	props, rerr := schema.Resolve(sch, raw, id, fqn)
	if rerr != nil {
		c.JSON(statusForError(rerr), gin.H{"error": rerr.Error()})
		return
	}
	vals, _ := entity.Project(raw, props, sch.DefaultValues, schema.StatusExisting, nil)

	ent := &entity.Entity{
		ID:     id,
		Ref:    entity.Ref{Collection: fqn, ID: id},
		Status: schema.StatusExisting,
		Values: vals,
	}
	if _, err := s.Deleter.Delete(c.Request.Context(), pipeline.DeleteRequest{
		Schema:     sch,
		Collection: fqn,
		Entity:     ent,
		Access:     s.Access,
	}); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// lookup резолвит {module, entity} в FQN и схему; пишет 404 сам.
func (s *Server) lookup(c *gin.Context) (string, *schema.EntitySchema, bool) {
	fqn, ok := s.Registry.Normalize(c.Param("module"), c.Param("entity"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return "", nil, false
	}
	sch, _ := s.Registry.Get(fqn)
	return fqn, sch, true
}

// hardIssues отфильтровывает проблемы, с которыми запись не принимаем
// (несовпадение типов и недопустимые enum-значения).
func hardIssues(issues []entity.Issue) []entity.Issue {
	var out []entity.Issue
	for _, it := range issues {
		if it.Code == entity.IssueTypeMismatch || it.Code == entity.IssueEnumInvalid {
			out = append(out, it)
		}
	}
	return out
}

// orderedOut сериализует значения в порядке свойств (map в JSON порядок
// не держит; фронту нужен и порядок, и явные null).
func orderedOut(vals *entity.Values) []map[string]any {
	out := make([]map[string]any, 0, vals.Len())
	for _, k := range vals.Keys() {
		v, _ := vals.Get(k)
		out = append(out, map[string]any{"key": k, "value": v})
	}
	return out
}
