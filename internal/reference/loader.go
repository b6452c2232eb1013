package reference

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadCatalog читает все enum-справочники (*.yaml / *.yml) из каталога.
// Имя справочника — из поля name или из имени файла.
func LoadCatalog(dir string) (map[string]EnumSet, error) {
	result := make(map[string]EnumSet)
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(file.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, err
		}
		var set EnumSet
		if err := yaml.Unmarshal(data, &set); err != nil {
			return nil, err
		}
		name := set.Name
		if name == "" {
			name = strings.TrimSuffix(file.Name(), ext)
		}
		result[name] = set
	}
	return result, nil
}
