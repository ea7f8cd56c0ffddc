package sheets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// jsonRow is one object of an UpdateJSON payload. Keys keep document order.
type jsonRow struct {
	keys   []string
	values map[string]json.RawMessage
}

func (r *jsonRow) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row is %s, not an object", strings.TrimSpace(string(b)))
	}
	r.values = make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if _, seen := r.values[key]; !seen {
			r.keys = append(r.keys, key)
		}
		r.values[key] = raw
	}
	_, err = dec.Token()
	return err
}

// decodeRows parses a JSON array of objects. The header is the key order of
// the first object.
func decodeRows(data []byte) (header []string, values [][]any, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, nil, fmt.Errorf("%w: expected a JSON array", ErrInvalidData)
	}
	var rows []jsonRow
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	header = rows[0].keys
	values = make([][]any, 0, len(rows))
	for _, r := range rows {
		line := make([]any, len(header))
		for i, h := range header {
			v, err := rawCell(r.values[h])
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
			}
			line[i] = v
		}
		values = append(values, line)
	}
	return header, values, nil
}

// rawCell converts one JSON value: objects and arrays stay JSON text,
// null and absent become "".
func rawCell(raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '{' || raw[0] == '[' {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		return buf.String(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// mapRows lays out rows under the sorted keys of the first row.
func mapRows(rows []map[string]any) (header []string, values [][]any) {
	for k := range rows[0] {
		header = append(header, k)
	}
	sort.Strings(header)

	values = make([][]any, 0, len(rows))
	for _, r := range rows {
		line := make([]any, len(header))
		for i, h := range header {
			line[i] = cellValue(r[h])
		}
		values = append(values, line)
	}
	return header, values
}

// cellValue makes v safe to send as a cell.
func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x
	case map[string]any, []any, []string, []map[string]any:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(x); err == nil {
			return strings.TrimSuffix(buf.String(), "\n")
		}
	}
	return fmt.Sprint(v)
}

// stringRows renders API values as text and pads every row to the widest.
func stringRows(values [][]any) [][]string {
	width := 0
	for _, r := range values {
		width = max(width, len(r))
	}
	out := make([][]string, len(values))
	for i, r := range values {
		row := make([]string, width)
		for j, v := range r {
			if v != nil {
				row[j] = fmt.Sprint(v)
			}
		}
		out[i] = row
	}
	return out
}
