package googleworkspace

import (
	"time"

	"github.com/laikahq/sync-engine/mapper"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/objectspec"
)

const sourceSystem = "Google Workspace"

func userMapper() mapper.Mapper {
	return mapper.New(&objectspec.User, []string{objectspec.AttrID}, func(raw map[string]any, alias string) (map[string]any, error) {
		name, _ := raw["name"].(map[string]any)
		isAdmin, _ := raw["isAdmin"].(bool)
		enrolled, _ := raw["isEnrolledIn2Sv"].(bool)
		enforced, _ := raw["isEnforcedIn2Sv"].(bool)

		return map[string]any{
			objectspec.AttrID:           raw["id"],
			"First Name":                name["givenName"],
			"Last Name":                 name["familyName"],
			"Email":                     raw["primaryEmail"],
			"Is Admin":                  isAdmin,
			"Title":                     "",
			"Organization Name":         raw["orgUnitPath"],
			"Roles":                     nil,
			"Groups":                    nil,
			"Mfa Enabled":               enrolled,
			"Mfa Enforced":              enforced,
			objectspec.AttrSourceSystem: sourceSystem,
			objectspec.AttrConnection:   alias,
		}, nil
	})
}

func expiry(account *models.ConnectionAccount) time.Time {
	switch v := account.Authentication["token_expiration"].(type) {
	case int64:
		return time.Unix(v, 0)
	case float64:
		return time.Unix(int64(v), 0)
	}
	return time.Time{}
}
