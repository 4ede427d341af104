package pipeline

import "github.com/diwise/integration-nodos/domain"

type Visual struct {
	Icon  string `yaml:"icon" json:"icon"`
	Color string `yaml:"color" json:"color"`
}

// Visuals maps a data type display name to its icon and color.
type Visuals map[string]Visual

const UnknownTypeName string = "Desconocido"

var defaultVisual = Visual{Icon: "fa-database", Color: "text-gray-500"}

func DefaultVisuals() Visuals {
	return Visuals{
		"Temperatura":        {Icon: "fa-thermometer", Color: "text-rose-500"},
		"Nivel Hidrométrico": {Icon: "fa-tint", Color: "text-sky-500"},
		"Tensión":            {Icon: "fa-bolt", Color: "text-yellow-500"},
		"Precipitación":      {Icon: "fa-umbrella", Color: "text-blue-400"},
		"Viento":             {Icon: "fa-flag", Color: "text-gray-300"},
	}
}

// For returns the visual of t and the name to show for it. Icon and color set on
// the data type itself win over the table.
func (v Visuals) For(t *domain.DataType) (Visual, string) {
	if t == nil {
		return defaultVisual, UnknownTypeName
	}

	visual, ok := v[t.DisplayName]
	if !ok {
		visual = defaultVisual
	}

	if t.Icon != "" {
		visual.Icon = t.Icon
	}
	if t.Color != "" {
		visual.Color = t.Color
	}

	return visual, t.DisplayName
}
