package github

import (
	"fmt"

	"github.com/laikahq/sync-engine/mapper"
	"github.com/laikahq/sync-engine/objectspec"
)

const sourceSystem = "GitHub"

func userMapper() mapper.Mapper {
	return mapper.New(&objectspec.User, []string{objectspec.AttrID}, func(raw map[string]any, alias string) (map[string]any, error) {
		login, _ := raw["login"].(string)

		email, _ := raw["email"].(string)
		if email == "" {
			// Org member listings do not expose emails.
			email = login + "@users.noreply.github.com"
		}

		isAdmin, _ := raw["site_admin"].(bool)

		return map[string]any{
			objectspec.AttrID:           login,
			"First Name":                raw["name"],
			"Last Name":                 "",
			"Email":                     email,
			"Is Admin":                  isAdmin,
			"Title":                     "",
			"Organization Name":         raw["__org"],
			"Roles":                     nil,
			"Groups":                    nil,
			"Mfa Enabled":               raw["two_factor_authentication"],
			"Mfa Enforced":              false,
			objectspec.AttrSourceSystem: sourceSystem,
			objectspec.AttrConnection:   alias,
		}, nil
	})
}

func repositoryMapper() mapper.Mapper {
	return mapper.New(&objectspec.Repository, []string{"Name", "Organization"}, func(raw map[string]any, alias string) (map[string]any, error) {
		private, _ := raw["private"].(bool)
		archived, _ := raw["archived"].(bool)

		return map[string]any{
			"Name":                      raw["name"],
			"Organization":              raw["__org"],
			"Public URL":                raw["html_url"],
			"Is Active":                 !archived,
			"Is Public":                 !private,
			"Updated On":                raw["updated_at"],
			"Created On":                raw["created_at"],
			objectspec.AttrSourceSystem: sourceSystem,
			objectspec.AttrConnection:   alias,
		}, nil
	})
}

func pullRequestMapper() mapper.Mapper {
	return mapper.New(&objectspec.PullRequest, []string{"Key", "Repository"}, func(raw map[string]any, alias string) (map[string]any, error) {
		number, ok := raw["number"].(float64)
		if !ok {
			return nil, fmt.Errorf("pull request without number")
		}

		reporter := nested(raw, "user", "login")
		target := nested(raw, "base", "ref")
		source := nested(raw, "head", "ref")

		merged := raw["merged_at"] != nil

		return map[string]any{
			"Key":                       fmt.Sprintf("%d", int64(number)),
			"Repository":                raw["__repo"],
			"Target":                    target,
			"Source":                    source,
			"State":                     raw["state"],
			"Title":                     raw["title"],
			"Is Verified":               merged,
			"Is Approved":               merged,
			"Url":                       raw["html_url"],
			"Approvers":                 "",
			"Reporter":                  reporter,
			"Created On":                raw["created_at"],
			"Updated On":                raw["updated_at"],
			objectspec.AttrSourceSystem: sourceSystem,
			objectspec.AttrConnection:   alias,
		}, nil
	})
}

func nested(raw map[string]any, keys ...string) any {
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
