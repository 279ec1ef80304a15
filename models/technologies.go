package models

import (
	"encoding/json"
	"strings"
)

// ParseTechnologies decodes the JSON-encoded technology list sent by clients.
// Anything that is not a JSON array yields an empty list instead of an error.
// String elements are kept, numbers and booleans keep their JSON text, everything else is dropped.
func ParseTechnologies(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return []string{}
	}

	technologies := make([]string, 0, len(items))
	for _, item := range items {
		var v any
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		switch tech := v.(type) {
		case string:
			technologies = append(technologies, tech)
		case float64, bool:
			technologies = append(technologies, strings.TrimSpace(string(item)))
		}
	}
	return technologies
}
