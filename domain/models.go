package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// InvalidEpoch marks a timestamp that could not be parsed into epoch milliseconds.
const InvalidEpoch int64 = math.MinInt64

type Reading struct {
	ID        int       `json:"id,omitempty"`
	NodeID    int       `json:"nodo_id"`
	TypeID    int       `json:"type_id"`
	Value     float64   `json:"data"`
	Timestamp Timestamp `json:"timestamp"`
}

type DataType struct {
	ID          int    `json:"id"`
	LogicalCode int    `json:"data_type"`
	Symbol      string `json:"data_symbol"`
	DisplayName string `json:"nombre"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color,omitempty"`
}

type Node struct {
	ID             int      `json:"id"`
	Identifier     string   `json:"identificador"`
	Description    string   `json:"descripcion"`
	Latitude       float64  `json:"latitud"`
	Longitude      float64  `json:"longitud"`
	BatteryPercent int      `json:"porcentajeBateria"`
	Types          TypeRefs `json:"tipos"`
}

type PaginationInfo struct {
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
	Limit       int `json:"limit"`
	Offset      int `json:"offset"`
}

type ReadingsPage struct {
	Info  PaginationInfo `json:"info"`
	Items []Reading      `json:"items"`
}

// TypeRefs holds the DataType ids associated with a node. The backend sends either
// a list of ids or a list of DataType objects; both decode to ids.
type TypeRefs []int

func (refs *TypeRefs) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*refs = nil
		return nil
	}

	raw := []json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tipos is not a list: %s", err.Error())
	}

	ids := make(TypeRefs, 0, len(raw))
	for _, r := range raw {
		var id int
		if err := json.Unmarshal(r, &id); err == nil {
			ids = append(ids, id)
			continue
		}

		obj := struct {
			ID *int `json:"id"`
		}{}
		if err := json.Unmarshal(r, &obj); err != nil || obj.ID == nil {
			return fmt.Errorf("unsupported tipo reference %s", string(r))
		}
		ids = append(ids, *obj.ID)
	}

	*refs = ids
	return nil
}

// Timestamp is either epoch milliseconds or a textual date that has not been
// parsed yet. The zero value means no timestamp was received.
type Timestamp struct {
	millis  int64
	text    string
	isEpoch bool
}

func EpochMillis(ms int64) Timestamp {
	return Timestamp{millis: ms, isEpoch: true}
}

func TimestampText(s string) Timestamp {
	return Timestamp{text: s}
}

func (t Timestamp) IsEpoch() bool {
	return t.isEpoch
}

// IsZero reports whether the timestamp is absent.
func (t Timestamp) IsZero() bool {
	return !t.isEpoch && t.text == ""
}

// Millis returns the epoch milliseconds and whether they are usable.
func (t Timestamp) Millis() (int64, bool) {
	if !t.isEpoch || t.millis == InvalidEpoch {
		return 0, false
	}
	return t.millis, true
}

func (t Timestamp) Text() string {
	return t.text
}

func (t Timestamp) String() string {
	if t.isEpoch {
		if t.millis == InvalidEpoch {
			return "NaN"
		}
		return strconv.FormatInt(t.millis, 10)
	}
	return t.text
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	switch {
	case t.isEpoch && t.millis == InvalidEpoch:
		return []byte("null"), nil
	case t.isEpoch:
		return []byte(strconv.FormatInt(t.millis, 10)), nil
	case t.text == "":
		return []byte("null"), nil
	default:
		return json.Marshal(t.text)
	}
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TimestampText(s)
		return nil
	}

	if ms, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*t = EpochMillis(ms)
		return nil
	}

	// a fractional number is not an integer epoch yet, keep it for the normalizer
	if _, err := strconv.ParseFloat(string(data), 64); err == nil {
		*t = TimestampText(string(data))
		return nil
	}

	return fmt.Errorf("unsupported timestamp %s", string(data))
}
