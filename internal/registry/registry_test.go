package registry

import (
	"bytes"
	"testing"

	"github.com/soyeahso/apikit/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	name    string
	version string
	tag     string
}

func (a *api) Name() string    { return a.name }
func (a *api) Version() string { return a.version }

func testRegistry(opts ...Option) *Registry[*api] {
	return New[*api](logging.New(nil, "silent"), opts...)
}

func mustRegister(t *testing.T, r *Registry[*api], name string, versions ...string) {
	t.Helper()
	for _, v := range versions {
		require.NoError(t, r.Register(&api{name: name, version: v}))
	}
}

func TestRegistry_GetLatestExactRange(t *testing.T) {
	r := testRegistry()
	mustRegister(t, r, "N", "1.2.0", "2.0.0")

	got, ok := r.Get("N", "latest")
	require.True(t, ok)
	assert.Equal(t, "2.0.0", got.Version())

	got, ok = r.Get("N", "^1.0.0")
	require.True(t, ok)
	assert.Equal(t, "1.2.0", got.Version())

	_, ok = r.Get("N", "1.5.0")
	assert.False(t, ok, "unregistered plain version must not be treated as a minimum")
}

func TestRegistry_GetEmptyQueryIsLatest(t *testing.T) {
	r := testRegistry()
	mustRegister(t, r, "N", "0.9.0", "1.10.0", "1.9.0")

	got, ok := r.Get("N", "")
	require.True(t, ok)
	assert.Equal(t, "1.10.0", got.Version())
}

func TestRegistry_GetExactFastPath(t *testing.T) {
	r := testRegistry()
	mustRegister(t, r, "N", "1.0.0", "1.1.0")

	got, ok := r.Get("N", "1.0.0")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", got.Version())
}

func TestRegistry_GetRangeScansDescending(t *testing.T) {
	r := testRegistry()
	mustRegister(t, r, "N", "1.0.0", "1.4.0", "1.3.9", "2.1.0")

	got, ok := r.Get("N", ">=1.0.0 <2.0.0")
	require.True(t, ok)
	assert.Equal(t, "1.4.0", got.Version())

	got, ok = r.Get("N", "~1.3.0")
	require.True(t, ok)
	assert.Equal(t, "1.3.9", got.Version())

	_, ok = r.Get("N", "^3.0.0")
	assert.False(t, ok)
}

func TestRegistry_GetInvalidInputs(t *testing.T) {
	r := testRegistry()
	mustRegister(t, r, "N", "1.0.0")

	_, ok := r.Get("", "latest")
	assert.False(t, ok)
	_, ok = r.Get("missing", "latest")
	assert.False(t, ok)
	_, ok = r.Get("N", "not a range!")
	assert.False(t, ok)
}

func TestRegistry_Find(t *testing.T) {
	r := testRegistry()
	mustRegister(t, r, "N", "1.0.0")

	got, err := r.Find("N", "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", got.Version())

	_, err = r.Find("N", "^2.0.0")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "N@^2.0.0")

	_, err = r.Find("other", "")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "other@latest")
}

func TestRegistry_RegisterRejectsDuplicate(t *testing.T) {
	r := testRegistry()
	first := &api{name: "N", version: "1.0.0", tag: "first"}
	require.NoError(t, r.Register(first))

	err := r.Register(&api{name: "N", version: "1.0.0", tag: "second"})
	require.ErrorIs(t, err, ErrDuplicate)

	got, ok := r.Get("N", "1.0.0")
	require.True(t, ok)
	assert.Equal(t, "first", got.tag)
}

func TestRegistry_RegisterOverwriteWarns(t *testing.T) {
	var buf bytes.Buffer
	r := New[*api](logging.New(&buf, "warn"), WithPolicy(Overwrite))
	require.NoError(t, r.Register(&api{name: "N", version: "1.0.0", tag: "first"}))
	require.NoError(t, r.Register(&api{name: "N", version: "1.0.0", tag: "second"}))

	got, ok := r.Get("N", "1.0.0")
	require.True(t, ok)
	assert.Equal(t, "second", got.tag)
	assert.Contains(t, buf.String(), "overwriting registered instance")
	assert.Equal(t, Overwrite, r.Policy())
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	r := testRegistry()
	assert.ErrorIs(t, r.Register(&api{name: "", version: "1.0.0"}), ErrInvalid)
	assert.ErrorIs(t, r.Register(&api{name: "N", version: "one"}), ErrInvalid)
	assert.ErrorIs(t, r.Register(&api{name: "N", version: " 1.0.0"}), ErrInvalid)
	assert.ErrorIs(t, r.Register(&api{name: "N", version: "1.0.0 "}), ErrInvalid)
	assert.False(t, r.Has("N"))
}

func TestRegistry_VersionsMatchStoredKeys(t *testing.T) {
	r := testRegistry()
	mustRegister(t, r, "N", "1.0.0", "1.1.0-rc.1", "1.1.0")

	for _, v := range r.Versions("N") {
		assert.True(t, r.HasVersion("N", v), v)
	}
	for _, q := range []string{"latest", "^1.0.0", "~1.0.0", "1.1.0-rc.1"} {
		got, err := r.Find("N", q)
		require.NoError(t, err, q)
		require.NotNil(t, got, q)
	}
}

func TestRegistry_BuildMetadataTiesAreDeterministic(t *testing.T) {
	for i := 0; i < 20; i++ {
		r := testRegistry()
		mustRegister(t, r, "N", "1.0.0+a", "1.0.0+c", "1.0.0+b")

		got, ok := r.Get("N", "latest")
		require.True(t, ok)
		assert.Equal(t, "1.0.0+c", got.Version())

		got, ok = r.Get("N", "^1.0.0")
		require.True(t, ok)
		assert.Equal(t, "1.0.0+c", got.Version())

		assert.Equal(t, []string{"1.0.0+c", "1.0.0+b", "1.0.0+a"}, r.Versions("N"))
	}
}

func TestRegistry_HasAndVersions(t *testing.T) {
	r := testRegistry()
	mustRegister(t, r, "N", "1.2.0", "2.0.0", "1.10.0")

	assert.True(t, r.Has("N"))
	assert.False(t, r.Has(""))
	assert.False(t, r.Has("missing"))
	assert.True(t, r.HasVersion("N", "1.10.0"))
	assert.False(t, r.HasVersion("N", "1.3.0"))
	assert.False(t, r.HasVersion("missing", "1.0.0"))

	assert.Equal(t, []string{"2.0.0", "1.10.0", "1.2.0"}, r.Versions("N"))
	assert.Empty(t, r.Versions("missing"))
	assert.Empty(t, r.Versions(""))
}

func TestRegistry_ListAndNames(t *testing.T) {
	r := testRegistry()
	mustRegister(t, r, "b", "1.0.0")
	mustRegister(t, r, "a", "0.1.0", "0.2.0")

	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, map[string][]string{
		"a": {"0.2.0", "0.1.0"},
		"b": {"1.0.0"},
	}, r.List())
}

func TestRegistry_Reset(t *testing.T) {
	r := testRegistry()
	mustRegister(t, r, "N", "1.0.0")

	r.Reset()
	assert.False(t, r.Has("N"))
	assert.Empty(t, r.List())

	// Registering again after reset is allowed.
	mustRegister(t, r, "N", "1.0.0")
	assert.True(t, r.Has("N"))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Reject, p)

	p, err = ParsePolicy("Overwrite")
	require.NoError(t, err)
	assert.Equal(t, Overwrite, p)
	assert.Equal(t, "overwrite", p.String())

	_, err = ParsePolicy("merge")
	assert.Error(t, err)
}
