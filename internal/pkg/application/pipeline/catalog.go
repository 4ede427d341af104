package pipeline

import (
	"sort"

	"github.com/diwise/integration-nodos/domain"
)

// Catalog indexes the configured data types by storage id and by logical code.
type Catalog struct {
	types  []domain.DataType
	byID   map[int]domain.DataType
	byCode map[int]domain.DataType
}

func NewCatalog(types []domain.DataType) *Catalog {
	c := &Catalog{
		types:  make([]domain.DataType, 0, len(types)),
		byID:   make(map[int]domain.DataType, len(types)),
		byCode: make(map[int]domain.DataType, len(types)),
	}

	for _, t := range types {
		if _, ok := c.byID[t.ID]; ok {
			continue
		}
		c.types = append(c.types, t)
		c.byID[t.ID] = t
		if _, ok := c.byCode[t.LogicalCode]; !ok {
			c.byCode[t.LogicalCode] = t
		}
	}

	sort.SliceStable(c.types, func(i, j int) bool { return c.types[i].ID < c.types[j].ID })

	return c
}

func (c *Catalog) All() []domain.DataType {
	if c == nil {
		return []domain.DataType{}
	}
	return append([]domain.DataType{}, c.types...)
}

func (c *Catalog) ByID(id int) (domain.DataType, bool) {
	if c == nil {
		return domain.DataType{}, false
	}
	t, ok := c.byID[id]
	return t, ok
}

func (c *Catalog) ByCode(code int) (domain.DataType, bool) {
	if c == nil {
		return domain.DataType{}, false
	}
	t, ok := c.byCode[code]
	return t, ok
}

// KeyFor maps a reading type tag to its group key. Tags matching a data type id
// resolve to that type's logical code, anything else is used verbatim.
func (c *Catalog) KeyFor(typeID int) int {
	if t, ok := c.ByID(typeID); ok {
		return t.LogicalCode
	}
	return typeID
}

// Resolve turns the type references of a node into data types, keeping the order
// of refs. Unknown ids are dropped.
func (c *Catalog) Resolve(refs domain.TypeRefs) []domain.DataType {
	resolved := make([]domain.DataType, 0, len(refs))
	seen := map[int]bool{}

	for _, id := range refs {
		if seen[id] {
			continue
		}
		if t, ok := c.ByID(id); ok {
			resolved = append(resolved, t)
			seen[id] = true
		}
	}

	return resolved
}
