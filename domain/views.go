package domain

import "time"

// TypeValue is a data type together with its latest value, ready to be shown.
type TypeValue struct {
	TypeID  int      `json:"id"`
	Code    int      `json:"data_type"`
	Name    string   `json:"nombre"`
	Symbol  string   `json:"data_symbol"`
	Icon    string   `json:"icon"`
	Color   string   `json:"color"`
	Value   *float64 `json:"valor,omitempty"`
	Display string   `json:"display"`
	Since   string   `json:"since,omitempty"`
	Time    string   `json:"time,omitempty"`

	// ObservedAt is the epoch millisecond timestamp of Value, zero when unknown.
	ObservedAt int64 `json:"observedAt,omitempty"`
}

// NodeCard is the compact summary of a node shown on the node list.
type NodeCard struct {
	Node      Node        `json:"nodo"`
	Values    []TypeValue `json:"tipos"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type SeriesPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"data"`
}

type Series struct {
	Type   TypeValue     `json:"tipo"`
	Points []SeriesPoint `json:"points"`
}

// NodeView holds everything the node detail page renders.
type NodeView struct {
	Node   Node        `json:"nodo"`
	Recent []TypeValue `json:"recent"`
	Series []Series    `json:"series"`
	Table  []Reading   `json:"table"`
	Total  int         `json:"total_items"`
}
