package pipeline

import (
	"sort"

	"github.com/diwise/integration-nodos/domain"
)

const DefaultDisplayLimit int = 3

// SelectForDisplay picks the types shown on a compact node card. The mandatory
// type, matched by logical code, always comes first. At most limit-1 other types
// follow, in ascending id order, and the result never exceeds limit entries.
func SelectForDisplay(types []domain.DataType, mandatoryCode, limit int) []domain.DataType {
	if limit <= 0 {
		limit = DefaultDisplayLimit
	}

	var mandatory *domain.DataType
	others := make([]domain.DataType, 0, len(types))

	for i := range types {
		if types[i].LogicalCode == mandatoryCode {
			if mandatory == nil {
				mandatory = &types[i]
			}
			continue
		}
		others = append(others, types[i])
	}

	sort.SliceStable(others, func(i, j int) bool { return others[i].ID < others[j].ID })

	if len(others) > limit-1 {
		others = others[:limit-1]
	}

	selected := make([]domain.DataType, 0, limit)
	if mandatory != nil {
		selected = append(selected, *mandatory)
	}
	selected = append(selected, others...)

	if len(selected) > limit {
		selected = selected[:limit]
	}

	return selected
}

// DetailTypes returns types without the mandatory one, order preserved.
func DetailTypes(types []domain.DataType, mandatoryCode int) []domain.DataType {
	detail := make([]domain.DataType, 0, len(types))
	for _, t := range types {
		if t.LogicalCode != mandatoryCode {
			detail = append(detail, t)
		}
	}
	return detail
}
