package reference

// EnumSet описывает один разделяемый справочник значений enum.
// На него ссылаются свойства схем через enum_ref.
type EnumSet struct {
	Name  string     `yaml:"name"`
	Items []EnumItem `yaml:"items"`
}

type EnumItem struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
	// Служебные поля: порядок показа, период действия значения
	Order     int    `yaml:"order,omitempty"`
	ValidFrom string `yaml:"valid_from,omitempty"`
	ValidTo   string `yaml:"valid_to,omitempty"`
}

// Codes возвращает допустимые коды в объявленном порядке.
func (s EnumSet) Codes() []string {
	out := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, it.Code)
	}
	return out
}
