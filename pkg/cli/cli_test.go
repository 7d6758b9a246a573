package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icegate/internal/domain"
)

// run executes the root command with args and returns what it printed.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CATALOG_REGISTRY_DB_PATH", "")
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCatalogsLifecycle(t *testing.T) {
	registry := filepath.Join(t.TempDir(), "registry.sqlite")
	reg := "--registry=" + registry

	out, err := run(t, "", reg, "catalogs", "register", "sales",
		"-P", "type=rest", "-P", "uri=http://rest:8181", "-P", "credential.jwt.secret=hunter2",
		"--comment", "sales tenant")
	require.NoError(t, err)
	assert.Contains(t, out, "catalog sales")
	assert.Contains(t, out, "http://rest:8181")
	assert.NotContains(t, out, "hunter2")

	t.Run("get as json", func(t *testing.T) {
		out, err := run(t, "", reg, "-o", "json", "catalogs", "get", "sales")
		require.NoError(t, err)
		var cfg domain.CatalogConfig
		require.NoError(t, json.Unmarshal([]byte(out), &cfg))
		assert.Equal(t, "sales", cfg.Name)
		assert.Equal(t, "hunter2", cfg.Properties["credential.jwt.secret"])
		assert.Equal(t, "sales tenant", cfg.Comment)
	})

	t.Run("duplicate without replace", func(t *testing.T) {
		_, err := run(t, "", reg, "catalogs", "register", "sales", "-P", "type=sql")
		var conflict *domain.ConflictError
		assert.ErrorAs(t, err, &conflict)
	})

	t.Run("replace", func(t *testing.T) {
		_, err := run(t, "", reg, "catalogs", "register", "sales", "-P", "type=sql", "--replace")
		require.NoError(t, err)

		out, err := run(t, "", reg, "-o", "json", "catalogs", "get", "sales")
		require.NoError(t, err)
		var cfg domain.CatalogConfig
		require.NoError(t, json.Unmarshal([]byte(out), &cfg))
		assert.Equal(t, map[string]string{"type": "sql"}, cfg.Properties)
		assert.Equal(t, "sales tenant", cfg.Comment)
	})

	t.Run("list", func(t *testing.T) {
		_, err := run(t, "", reg, "catalogs", "register", "analytics")
		require.NoError(t, err)

		out, err := run(t, "", reg, "catalogs", "list")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "NAME"))
		assert.True(t, strings.HasPrefix(lines[1], "analytics"))
		assert.True(t, strings.HasPrefix(lines[2], "sales"))
	})

	t.Run("delete", func(t *testing.T) {
		out, err := run(t, "", reg, "catalogs", "delete", "analytics")
		require.NoError(t, err)
		assert.Contains(t, out, "deleted catalog analytics")

		_, err = run(t, "", reg, "catalogs", "get", "analytics")
		var nf *domain.NotFoundError
		assert.ErrorAs(t, err, &nf)
	})
}

func TestCatalogsRegister_InvalidNames(t *testing.T) {
	reg := "--registry=" + filepath.Join(t.TempDir(), "registry.sqlite")

	_, err := run(t, "", reg, "catalogs", "register", "default")
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	_, err = run(t, "", reg, "catalogs", "register", "a.b")
	var valErr *domain.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestRegistryFromEnv(t *testing.T) {
	registry := filepath.Join(t.TempDir(), "env.sqlite")
	root := NewRootCmd()
	t.Setenv("CATALOG_REGISTRY_DB_PATH", registry)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"-o", "json", "catalogs", "list"})
	require.NoError(t, root.Execute())
	assert.JSONEq(t, `[]`, out.String())
	assert.FileExists(t, registry)
}

func TestTypesConvert(t *testing.T) {
	t.Run("scalar argument", func(t *testing.T) {
		out, err := run(t, "", "types", "convert", `"decimal(10,2)"`)
		require.NoError(t, err)
		assert.JSONEq(t, `"decimal(10, 2)"`, out)
	})

	t.Run("struct from stdin", func(t *testing.T) {
		in := `{"type":"struct","fields":[{"name":"id","type":"long","nullable":false},{"name":"tags","type":{"type":"list","elementType":"string"},"nullable":true}]}`
		out, err := run(t, in, "types", "convert", "--schema-id", "3")
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"struct","schema-id":3,"fields":[
			{"id":1,"name":"id","required":true,"type":"long"},
			{"id":2,"name":"tags","required":false,"type":{"type":"list","element-id":3,"element":"string","element-required":false}}
		]}`, out)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := run(t, "", "types", "convert", `{"type":"map","keyType":"string","valueType":"short"}`)
		var unsupported *domain.UnsupportedTypeError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "map.value", unsupported.Path)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := run(t, "", "types", "convert", `{`)
		assert.Error(t, err)
	})
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "-o", "json", "version")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"dev","commit":"none"}`, out)
}

func TestCommands(t *testing.T) {
	out, err := run(t, "", "-o", "json", "commands", "--filter", "register")
	require.NoError(t, err)

	var entries []CommandEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "catalogs register", entries[0].Path)
	assert.Equal(t, "NAME", entries[0].Args)

	names := make([]string, 0, len(entries[0].Flags))
	for _, f := range entries[0].Flags {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"property", "comment", "replace"}, names)
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := run(t, "", "-o", "yaml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}
