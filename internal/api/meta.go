package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pult/internal/schema"
)

// GET /api/meta
func (s *Server) metaList(c *gin.Context) {
	type Row struct {
		Module     string `json:"module"`
		Name       string `json:"name"`
		Properties int    `json:"properties"`
		Dynamic    bool   `json:"dynamic"` // свойства строит билдер
	}
	rows := make([]Row, 0)
	for _, e := range s.Registry.All() {
		rows = append(rows, Row{
			Module:     e.Module,
			Name:       e.Name,
			Properties: e.Properties.Len(),
			Dynamic:    e.PropertiesBuilder != nil,
		})
	}
	c.JSON(http.StatusOK, rows)
}

// GET /api/meta/:module/:entity
func (s *Server) metaEntity(c *gin.Context) {
	fqn, sch, ok := s.lookup(c)
	if !ok {
		return
	}

	// для динамических схем мета считается от пустых значений;
	// перерезолв под конкретную запись делает фронт по мере редактирования
	props, err := schema.Resolve(sch, map[string]any{}, "", fqn)
	if err != nil {
		if sch.Properties == nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		props = sch.Properties
	}

	type PropOut struct {
		Key      string          `json:"key"`
		Type     schema.DataType `json:"type"`
		Title    string          `json:"title,omitempty"`
		Enum     []string        `json:"enum,omitempty"`
		Ref      string          `json:"ref,omitempty"`
		Required bool            `json:"required,omitempty"`
		Unique   bool            `json:"unique,omitempty"`
		Readonly bool            `json:"readonly,omitempty"`
		Default  any             `json:"default,omitempty"`
	}
	resp := struct {
		Module      string              `json:"module"`
		Name        string              `json:"name"`
		Description string              `json:"description,omitempty"`
		CustomID    bool                `json:"customId"`
		IDChoices   []string            `json:"idChoices,omitempty"`
		Properties  []PropOut           `json:"properties"`
		Views       []schema.CustomView `json:"views,omitempty"`
	}{
		Module:      sch.Module,
		Name:        sch.Name,
		Description: sch.Description,
		CustomID:    sch.CustomID.Enabled,
		IDChoices:   sch.CustomID.Allowed,
		Views:       sch.Views,
	}

	for _, key := range props.Keys() {
		p, _ := props.Get(key)
		po := PropOut{
			Key:      key,
			Type:     p.Type,
			Title:    p.Title,
			Enum:     p.Enum,
			Ref:      p.RefTarget,
			Required: p.Validation.Required,
			Unique:   p.Validation.Unique,
			Readonly: p.Validation.Readonly,
			Default:  p.Default,
		}
		// enum из справочника подтягиваем по enum_ref
		if p.Type == schema.TypeEnum && len(po.Enum) == 0 && p.EnumRef != "" {
			if set, ok := s.Registry.EnumSet(p.EnumRef); ok {
				po.Enum = set.Codes()
			}
		}
		resp.Properties = append(resp.Properties, po)
	}

	c.JSON(http.StatusOK, resp)
}
