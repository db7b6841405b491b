package detection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// LabelTable maps class ids (indexes) to human-readable names.
type LabelTable []string

// MaxClassIndex is the largest class index a label object may name.
const MaxClassIndex = 10000

// DefaultLabels is the class order of the muzzle detection model.
var DefaultLabels = LabelTable{"with_muzzle", "without_muzzle"}

// Resolve returns the label for classID. Ids outside the table resolve to
// "class_<id>", so resolution never fails.
func (t LabelTable) Resolve(classID int) string {
	if classID >= 0 && classID < len(t) {
		return t[classID]
	}
	return fmt.Sprintf("class_%d", classID)
}

// ParseLabels builds a table from a comma-separated list, e.g. "with_muzzle,without_muzzle".
func ParseLabels(s string) LabelTable {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	table := make(LabelTable, 0, len(parts))
	for _, p := range parts {
		table = append(table, strings.TrimSpace(p))
	}
	return table
}

// UnmarshalJSON accepts either a JSON array of names or an object keyed by
// the decimal class index ({"0": "with_muzzle", "1": "without_muzzle"}).
// Gaps in an object are filled with synthetic names.
func (t *LabelTable) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return err
		}
		*t = names
		return nil
	}

	var byIndex map[string]string
	if err := json.Unmarshal(data, &byIndex); err != nil {
		return fmt.Errorf("label table must be an array or an object: %w", err)
	}

	ids := make([]int, 0, len(byIndex))
	names := make(map[int]string, len(byIndex))
	for k, v := range byIndex {
		id, err := strconv.Atoi(k)
		if err != nil || id < 0 {
			return fmt.Errorf("invalid class index %q", k)
		}
		if id > MaxClassIndex {
			return fmt.Errorf("class index %d exceeds %d", id, MaxClassIndex)
		}
		ids = append(ids, id)
		names[id] = v
	}
	sort.Ints(ids)

	table := LabelTable{}
	if len(ids) > 0 {
		table = make(LabelTable, ids[len(ids)-1]+1)
		for i := range table {
			if name, ok := names[i]; ok {
				table[i] = name
			} else {
				table[i] = fmt.Sprintf("class_%d", i)
			}
		}
	}
	*t = table
	return nil
}
