package okta

import (
	"github.com/laikahq/sync-engine/mapper"
	"github.com/laikahq/sync-engine/objectspec"
)

const sourceSystem = "Okta"

func userMapper() mapper.Mapper {
	return mapper.New(&objectspec.User, []string{objectspec.AttrID}, func(raw map[string]any, alias string) (map[string]any, error) {
		profile, _ := raw["profile"].(map[string]any)

		return map[string]any{
			objectspec.AttrID:           raw["id"],
			"First Name":                profile["firstName"],
			"Last Name":                 profile["lastName"],
			"Email":                     profile["email"],
			"Is Admin":                  false,
			"Title":                     profile["title"],
			"Organization Name":         profile["organization"],
			"Roles":                     nil,
			"Groups":                    nil,
			"Mfa Enabled":               raw["status"] == "ACTIVE" && hasFactor(raw),
			"Mfa Enforced":              false,
			objectspec.AttrSourceSystem: sourceSystem,
			objectspec.AttrConnection:   alias,
		}, nil
	})
}

func serviceAccountMapper() mapper.Mapper {
	return mapper.New(&objectspec.ServiceAccount, []string{objectspec.AttrID}, func(raw map[string]any, alias string) (map[string]any, error) {
		return map[string]any{
			objectspec.AttrID:           raw["id"],
			"Display Name":              raw["label"],
			"Description":               raw["name"],
			"Owner Id":                  "",
			"Created Date":              raw["created"],
			"Email":                     "",
			"Roles":                     nil,
			"Is Active":                 raw["status"] == "ACTIVE",
			objectspec.AttrSourceSystem: sourceSystem,
			objectspec.AttrConnection:   alias,
		}, nil
	})
}

func hasFactor(raw map[string]any) bool {
	creds, _ := raw["credentials"].(map[string]any)
	provider, _ := creds["provider"].(map[string]any)
	return provider["type"] == "OKTA"
}
