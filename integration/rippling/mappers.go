package rippling

import (
	"github.com/laikahq/sync-engine/mapper"
	"github.com/laikahq/sync-engine/objectspec"
)

const sourceSystem = "Rippling"

func userMapper() mapper.Mapper {
	return mapper.New(&objectspec.User, []string{objectspec.AttrID}, func(raw map[string]any, alias string) (map[string]any, error) {
		return map[string]any{
			objectspec.AttrID:           raw["id"],
			"First Name":                raw["firstName"],
			"Last Name":                 raw["lastName"],
			"Email":                     raw["workEmail"],
			"Is Admin":                  raw["isAdmin"] == true,
			"Title":                     raw["title"],
			"Organization Name":         raw["department"],
			"Roles":                     raw["roles"],
			"Groups":                    nil,
			"Mfa Enabled":               false,
			"Mfa Enforced":              false,
			objectspec.AttrSourceSystem: sourceSystem,
			objectspec.AttrConnection:   alias,
		}, nil
	})
}

func backgroundCheckMapper() mapper.Mapper {
	return mapper.New(&objectspec.BackgroundCheck, []string{objectspec.AttrID}, func(raw map[string]any, alias string) (map[string]any, error) {
		return map[string]any{
			objectspec.AttrID:           raw["id"],
			"First Name":                raw["firstName"],
			"Last Name":                 raw["lastName"],
			"Email":                     raw["email"],
			"Check Name":                raw["checkName"],
			"Status":                    raw["status"],
			"Initiation Date":           raw["initiatedAt"],
			"Package":                   raw["package"],
			"Estimated Completion Date": raw["estimatedCompletionDate"],
			"Link to People Table":      raw["email"],
			objectspec.AttrSourceSystem: sourceSystem,
			objectspec.AttrConnection:   alias,
		}, nil
	})
}
