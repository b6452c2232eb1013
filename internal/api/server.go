// Package api — тонкая HTTP-обвязка над ядром: распарсить запрос,
// позвать пайплайн, закодировать ответ. Рендеринг, навигация и прочее
// представление живут снаружи и ядром не реализуются.
package api

import (
	"github.com/rs/zerolog"

	"pult/internal/auth"
	"pult/internal/blob"
	"pult/internal/datasource"
	"pult/internal/pipeline"
	"pult/internal/schema"
)

type Server struct {
	Registry *schema.Registry
	Source   datasource.Source
	Saver    *pipeline.Saver
	Deleter  *pipeline.Deleter
	Access   *auth.Controller
	Roles    *auth.RoleRegistry
	Blob     blob.Store
	Log      zerolog.Logger
}

func NewServer(reg *schema.Registry, src datasource.Source, access *auth.Controller, roles *auth.RoleRegistry, blobs blob.Store, log zerolog.Logger) *Server {
	return &Server{
		Registry: reg,
		Source:   src,
		Saver:    &pipeline.Saver{Source: src, Log: log},
		Deleter:  &pipeline.Deleter{Source: src, Log: log},
		Access:   access,
		Roles:    roles,
		Blob:     blobs,
		Log:      log,
	}
}

// browser возвращает расширение источника для листингов, если оно есть.
func (s *Server) browser() (datasource.Browser, bool) {
	b, ok := s.Source.(datasource.Browser)
	return b, ok
}
