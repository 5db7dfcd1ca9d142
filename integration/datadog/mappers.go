package datadog

import (
	"fmt"

	"github.com/laikahq/sync-engine/mapper"
	"github.com/laikahq/sync-engine/objectspec"
)

const sourceSystem = "Datadog"

func monitorMapper() mapper.Mapper {
	return mapper.New(&objectspec.Monitor, []string{objectspec.AttrID}, func(raw map[string]any, alias string) (map[string]any, error) {
		id, ok := raw["id"].(float64)
		if !ok {
			return nil, fmt.Errorf("monitor without id")
		}

		return map[string]any{
			objectspec.AttrID:           fmt.Sprintf("%d", int64(id)),
			"Name":                      raw["name"],
			"Type":                      raw["type"],
			"Query":                     raw["query"],
			"Message":                   raw["message"],
			"Tags":                      raw["tags"],
			"Overall State":             raw["overall_state"],
			"Created At":                raw["created"],
			"Created By":                nestedString(raw, "creator", "email"),
			objectspec.AttrSourceSystem: sourceSystem,
			objectspec.AttrConnection:   alias,
		}, nil
	})
}

func eventMapper() mapper.Mapper {
	m := mapper.New(&objectspec.Event, []string{objectspec.AttrID}, func(raw map[string]any, alias string) (map[string]any, error) {
		id, ok := raw["id"].(float64)
		if !ok {
			return nil, fmt.Errorf("event without id")
		}

		epoch, _ := raw["date_happened"].(float64)

		return map[string]any{
			objectspec.AttrID:           fmt.Sprintf("%d", int64(id)),
			"Title":                     raw["title"],
			"Text":                      raw["text"],
			"Type":                      raw["alert_type"],
			"Host":                      raw["host"],
			"Source":                    raw["source"],
			"Epoch":                     int64(epoch),
			objectspec.AttrSourceSystem: sourceSystem,
			objectspec.AttrConnection:   alias,
		}, nil
	})

	// Event titles carry whatever bytes the monitored systems emitted.
	m.EscapeCharacters = true

	return m
}

func nestedString(raw map[string]any, keys ...string) any {
	var cur any = raw
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[k]
	}
	return cur
}
