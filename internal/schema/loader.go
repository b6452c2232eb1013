package schema

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// catalogFile — один YAML-файл каталога схем: модуль плюс его сущности.
type catalogFile struct {
	Module   string          `yaml:"module"`
	Entities []*EntitySchema `yaml:"entities"`
}

// LoadCatalog обходит каталог и читает все *.yaml/*.yml со схемами.
// Возвращает map FQN ("module.Name") -> схема.
func LoadCatalog(root string) (map[string]*EntitySchema, error) {
	result := make(map[string]*EntitySchema)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if d.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if file.Module == "" {
			return fmt.Errorf("catalog %s has no module — add `module: <name>` at the top", path)
		}

		for _, e := range file.Entities {
			if e == nil || e.Name == "" {
				return fmt.Errorf("empty entity name in %s", path)
			}
			e.Module = file.Module
			fqn := e.FQN()
			if _, exists := result[fqn]; exists {
				return fmt.Errorf("duplicate entity %q in module %q (file: %s)", e.Name, file.Module, path)
			}
			result[fqn] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
