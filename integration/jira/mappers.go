package jira

import (
	"github.com/laikahq/sync-engine/mapper"
	"github.com/laikahq/sync-engine/objectspec"
)

const sourceSystem = "Jira"

func changeRequestMapper() mapper.Mapper {
	return mapper.New(&objectspec.ChangeRequest, []string{"Key"}, func(raw map[string]any, alias string) (map[string]any, error) {
		fields, _ := raw["fields"].(map[string]any)

		return map[string]any{
			"Key":                       raw["key"],
			"Title":                     fields["summary"],
			"Description":               textOf(fields["description"]),
			"Issue Type":                nameOf(fields["issuetype"]),
			"Epic":                      nameOf(fields["epic"]),
			"Project":                   nameOf(fields["project"]),
			"Assignee":                  displayNameOf(fields["assignee"]),
			"Reporter":                  displayNameOf(fields["reporter"]),
			"Status":                    nameOf(fields["status"]),
			"Approver":                  "",
			"Started":                   fields["created"],
			"Transitions History":       transitions(raw),
			"Url":                       raw["self"],
			objectspec.AttrSourceSystem: sourceSystem,
			objectspec.AttrConnection:   alias,
		}, nil
	})
}

func nameOf(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m["name"]
}

func displayNameOf(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m["displayName"]
}

// textOf flattens an Atlassian document to its plain text nodes.
func textOf(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	var out string
	var walk func(node map[string]any)
	walk = func(node map[string]any) {
		if s, ok := node["text"].(string); ok {
			out += s
		}
		content, _ := node["content"].([]any)
		for _, child := range content {
			if cm, ok := child.(map[string]any); ok {
				walk(cm)
			}
		}
	}
	walk(m)

	return out
}

// transitions extracts status changes from the issue changelog.
func transitions(raw map[string]any) any {
	changelog, _ := raw["changelog"].(map[string]any)
	histories, _ := changelog["histories"].([]any)

	var out []map[string]any
	for _, h := range histories {
		hm, ok := h.(map[string]any)
		if !ok {
			continue
		}
		items, _ := hm["items"].([]any)
		for _, item := range items {
			im, ok := item.(map[string]any)
			if !ok || im["field"] != "status" {
				continue
			}
			out = append(out, map[string]any{
				"at":   hm["created"],
				"from": im["fromString"],
				"to":   im["toString"],
				"by":   displayNameOf(hm["author"]),
			})
		}
	}
	return out
}
