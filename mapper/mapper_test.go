package mapper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laikahq/sync-engine/objectspec"
)

var testSpec = objectspec.Spec{
	TypeName:    "monitor",
	DisplayName: "Monitor",
	Attributes: []objectspec.Attribute{
		{Name: "Id", Type: "text", Required: true},
		{Name: "Name", Type: "text", Required: true},
		{Name: "Source System", Type: "text", Required: true},
		{Name: "Connection Name", Type: "text", Required: true},
	},
}

func fullData(id string) map[string]any {
	return map[string]any{
		"Id":              id,
		"Name":            "cpu high",
		"Source System":   "Datadog",
		"Connection Name": "prod",
	}
}

func TestNew_PanicsOnUnknownKey(t *testing.T) {
	assert.Panics(t, func() {
		New(&testSpec, []string{"Nope"}, nil)
	})
}

func TestMapper_Apply(t *testing.T) {
	m := New(&testSpec, []string{"Id"}, func(raw map[string]any, alias string) (map[string]any, error) {
		return map[string]any{
			"Id":              raw["id"],
			"Name":            raw["name"],
			"Source System":   "Datadog",
			"Connection Name": alias,
		}, nil
	})

	data, err := m.Apply(map[string]any{"id": "7", "name": "cpu high"}, "prod")
	require.NoError(t, err)
	assert.Equal(t, "prod", data["Connection Name"])
	assert.Equal(t, "7", data["Id"])
}

func TestMapper_Validate(t *testing.T) {
	m := New(&testSpec, []string{"Id"}, nil)

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		wantErr bool
	}{
		{name: "complete", mutate: func(map[string]any) {}, wantErr: false},
		{name: "missing attribute", mutate: func(d map[string]any) { delete(d, "Name") }, wantErr: true},
		{name: "empty required", mutate: func(d map[string]any) { d["Id"] = "" }, wantErr: true},
		{name: "nil required", mutate: func(d map[string]any) { d["Id"] = nil }, wantErr: true},
		{name: "extra attribute", mutate: func(d map[string]any) { d["Bogus"] = 1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := fullData("1")
			tt.mutate(data)

			err := m.Validate(data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadMapping)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMapper_ApplyWrapsMapError(t *testing.T) {
	m := New(&testSpec, []string{"Id"}, func(map[string]any, string) (map[string]any, error) {
		return nil, errors.New("boom")
	})

	_, err := m.Apply(map[string]any{}, "prod")
	assert.ErrorIs(t, err, ErrBadMapping)
}

func TestMapper_KeyTuple(t *testing.T) {
	m := New(&testSpec, []string{"Id", "Name"}, nil)

	tuple := m.KeyTuple(map[string]any{"Id": "1", "Name": "x", "Extra": "z"})
	assert.Equal(t, []string{"1", "x"}, tuple)
}

func TestEscapeString(t *testing.T) {
	m := New(&testSpec, []string{"Id"}, func(raw map[string]any, alias string) (map[string]any, error) {
		d := fullData("1")
		d["Name"] = raw["name"]
		return d, nil
	})
	m.EscapeCharacters = true

	data, err := m.Apply(map[string]any{"name": "emoji \U0001F600 title"}, "prod")
	require.NoError(t, err)
	assert.Equal(t, "emoji � title", data["Name"])
}
