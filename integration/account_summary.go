package integration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/laikahq/sync-engine/mapper"
	"github.com/laikahq/sync-engine/objectspec"
)

// WriteAccountSummary upserts the single Account object describing this
// connection: its settings snapshot and the per-type record counts the
// run collected. Adapters call it after their last type sync so the
// counts are complete.
func WriteAccountSummary(ctx context.Context, rc *RunContext) error {
	objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.Account)
	if err != nil {
		return err
	}

	settings := make(map[string]any, len(rc.Account.Configuration.Settings))
	for k, v := range rc.Account.Configuration.Settings {
		settings[k] = v
	}

	owner, _ := settings["owner"].(string)

	data := map[string]any{
		objectspec.AttrSourceSystem: rc.Account.Vendor,
		objectspec.AttrConnection:   rc.Account.Alias,
		"Owner":                     owner,
		"Created On":                rc.Account.CreatedAt.UTC().Format(time.RFC3339),
		"Updated On":                time.Now().UTC().Format(time.RFC3339),
		"Configurations":            settings,
		"Number of Records":         renderCounts(rc.Stats.RecordCounts()),
	}

	m := mapper.New(&objectspec.Account, []string{objectspec.AttrSourceSystem, objectspec.AttrConnection}, func(raw map[string]any, _ string) (map[string]any, error) {
		return raw, nil
	})

	_, err = rc.Run.Upsert(ctx, objectType, m, []map[string]any{data})
	return err
}

func renderCounts(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %d", name, counts[name]))
	}
	return strings.Join(parts, ", ")
}
