package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/soyeahso/apikit/internal/api"
	"github.com/soyeahso/apikit/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopManifest = `
apis:
  - name: SHOP
    version: 1.0.0
    options:
      resources:
        url: https://shop.example
        timeout: 5
    constants:
      currency: EUR
    resources:
      - name: items
        options:
          url: https://items.example
        constants:
          pageSize: 50
      - name: orders
  - name: SHOP
    version: 1.2.0
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(shopManifest))
	require.NoError(t, err)
	require.Len(t, m.APIs, 2)

	a := m.APIs[0]
	assert.Equal(t, "SHOP", a.Name)
	assert.Equal(t, "1.0.0", a.Version)
	assert.Equal(t, "EUR", a.Constants["currency"])
	require.Len(t, a.Resources, 2)
	assert.Equal(t, "items", a.Resources[0].Name)
	assert.Equal(t, 50, a.Resources[0].Constants["pageSize"])
}

func TestParse_Empty(t *testing.T) {
	m, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, m.APIs)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("apis:\n  - name: A\n    version: 1.0.0\n    plugins: [auth]\n"))
	require.ErrorIs(t, err, api.ErrConfiguration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "apis:\n  - version: 1.0.0\n", "apis[0].name"},
		{"bad version", "apis:\n  - name: A\n    version: one\n", "apis[0].version"},
		{"duplicate api", "apis:\n  - {name: A, version: 1.0.0}\n  - {name: A, version: 1.0.0}\n", "A@1.0.0 declared twice"},
		{"unnamed resource", "apis:\n  - name: A\n    version: 1.0.0\n    resources:\n      - options: {}\n", "resources[0].name"},
		{"duplicate resource", "apis:\n  - name: A\n    version: 1.0.0\n    resources:\n      - name: r\n      - name: r\n", `resource "r" declared twice`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.ErrorIs(t, err, api.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(shopManifest), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m.APIs, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuild(t *testing.T) {
	m, err := Parse([]byte(shopManifest))
	require.NoError(t, err)

	reg := api.NewRegistry(logging.Nop())
	built, err := Build(reg, m, logging.Nop())
	require.NoError(t, err)
	require.Len(t, built, 2)

	latest, ok := reg.Get("SHOP", "latest")
	require.True(t, ok)
	assert.Equal(t, "1.2.0", latest.Version())

	inst, ok := reg.Get("SHOP", "1.0.0")
	require.True(t, ok)
	assert.Equal(t, []string{"items", "orders"}, inst.Resources())

	items, err := inst.Resource("items")
	require.NoError(t, err)
	assert.Equal(t, 50, items.Resolve("pageSize").Value)
	assert.Equal(t, "EUR", items.Resolve("currency").Value)

	opts := items.View().Options[api.ResourcesNamespace].(api.Options)
	assert.Equal(t, "https://items.example", opts["url"])
	assert.Equal(t, 5, opts["timeout"])

	_, err = items.Call(context.Background(), "pageSize", nil)
	assert.ErrorIs(t, err, api.ErrMethod)
}

func TestBuild_StopsOnDuplicate(t *testing.T) {
	m, err := Parse([]byte("apis:\n  - {name: A, version: 1.0.0}\n"))
	require.NoError(t, err)

	reg := api.NewRegistry(logging.Nop())
	_, err = Build(reg, m, nil)
	require.NoError(t, err)

	built, err := Build(reg, m, nil)
	require.ErrorIs(t, err, api.ErrConfiguration)
	assert.Empty(t, built)
}
