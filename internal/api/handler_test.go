package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/apache/iceberg-go"
	"github.com/apache/iceberg-go/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icegate/internal/catalogcache"
	"icegate/internal/domain"
)

// === Mocks ===

type mockSession struct {
	name             string
	closes           atomic.Int32
	listNamespacesFn func(ctx context.Context, parent table.Identifier) ([]table.Identifier, error)
	listTablesFn     func(ctx context.Context, namespace table.Identifier) ([]table.Identifier, error)
	loadSchemaFn     func(ctx context.Context, ident table.Identifier) (*iceberg.Schema, error)
}

func (m *mockSession) Name() string { return m.name }

func (m *mockSession) RefreshCredentials(context.Context) error { return nil }

func (m *mockSession) Close() error {
	m.closes.Add(1)
	return nil
}

func (m *mockSession) ListNamespaces(ctx context.Context, parent table.Identifier) ([]table.Identifier, error) {
	if m.listNamespacesFn == nil {
		panic("mockSession.ListNamespaces called but not configured")
	}
	return m.listNamespacesFn(ctx, parent)
}

func (m *mockSession) ListTables(ctx context.Context, namespace table.Identifier) ([]table.Identifier, error) {
	if m.listTablesFn == nil {
		panic("mockSession.ListTables called but not configured")
	}
	return m.listTablesFn(ctx, namespace)
}

func (m *mockSession) LoadSchema(ctx context.Context, ident table.Identifier) (*iceberg.Schema, error) {
	if m.loadSchemaFn == nil {
		panic("mockSession.LoadSchema called but not configured")
	}
	return m.loadSchemaFn(ctx, ident)
}

// mockProvider builds sessions with configure applied.
type mockProvider struct {
	configure func(s *mockSession)
	buildErr  map[string]error
	built     []string
	sessions  []*mockSession
}

func (p *mockProvider) Initialize(context.Context, map[string]string) error { return nil }

func (p *mockProvider) BuildHandle(_ context.Context, name string) (domain.CatalogHandle, error) {
	if err := p.buildErr[name]; err != nil {
		return nil, err
	}
	p.built = append(p.built, name)
	s := &mockSession{name: name}
	if p.configure != nil {
		p.configure(s)
	}
	p.sessions = append(p.sessions, s)
	return s, nil
}

type testServer struct {
	provider *mockProvider
	cache    *catalogcache.Manager
	router   http.Handler
}

func newTestServer(t *testing.T, configure func(s *mockSession)) *testServer {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	p := &mockProvider{configure: configure, buildErr: map[string]error{}}
	cache := catalogcache.New(p, catalogcache.Options{Logger: logger})
	t.Cleanup(func() { _ = cache.Shutdown(context.Background()) })
	return &testServer{
		provider: p,
		cache:    cache,
		router:   NewRouter(NewHandler(cache, logger), RouterConfig{Logger: logger}),
	}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorModel {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func testSchema(t *testing.T) *iceberg.Schema {
	t.Helper()
	return iceberg.NewSchema(4,
		iceberg.NestedField{ID: 1, Name: "id", Type: iceberg.PrimitiveTypes.Int64, Required: true},
		iceberg.NestedField{ID: 2, Name: "tags", Type: &iceberg.ListType{
			ElementID: 3, Element: iceberg.PrimitiveTypes.String, ElementRequired: false,
		}},
	)
}

// === Tests ===

func TestGetConfig(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/v1/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"defaults":{},"overrides":{}}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestListNamespaces(t *testing.T) {
	var gotParent table.Identifier
	s := newTestServer(t, func(m *mockSession) {
		m.listNamespacesFn = func(_ context.Context, parent table.Identifier) ([]table.Identifier, error) {
			gotParent = parent
			return []table.Identifier{{m.name, "a"}, {m.name, "b"}}, nil
		}
	})

	t.Run("no prefix selects the default catalog", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/namespaces", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"namespaces":[["default","a"],["default","b"]]}`, rec.Body.String())
		assert.Nil(t, gotParent)
	})

	t.Run("prefix selects the catalog", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/sales/namespaces?parent=lvl1%1Flvl2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"namespaces":[["sales","a"],["sales","b"]]}`, rec.Body.String())
		assert.Equal(t, table.Identifier{"lvl1", "lvl2"}, gotParent)
	})

	t.Run("handles are cached per catalog", func(t *testing.T) {
		s.do(t, http.MethodGet, "/v1/sales/namespaces", "")
		assert.Equal(t, []string{"default", "sales"}, s.provider.built)
	})

	t.Run("reserved prefix", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/default/namespaces", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		e := decodeError(t, rec)
		assert.Equal(t, "BadRequestException", e.Type)
		assert.Contains(t, e.Message, "reserved catalog name")
	})
}

func TestListNamespaces_BuildFailures(t *testing.T) {
	s := newTestServer(t, nil)
	s.provider.buildErr["missing"] = domain.ErrNotFound("catalog %q is not configured", "missing")
	s.provider.buildErr["down"] = errors.New("dial tcp: connection refused")

	t.Run("unknown catalog", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/missing/namespaces", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unreachable backend", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/down/namespaces", "")
		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, "connection refused")
	})

	assert.Empty(t, s.cache.Keys())
}

func TestListTables(t *testing.T) {
	s := newTestServer(t, func(m *mockSession) {
		m.listTablesFn = func(_ context.Context, ns table.Identifier) ([]table.Identifier, error) {
			return []table.Identifier{append(append(table.Identifier{}, ns...), "orders")}, nil
		}
	})

	rec := s.do(t, http.MethodGet, "/v1/sales/namespaces/db%1Fraw/tables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"identifiers":[{"namespace":["db","raw"],"name":"orders"}]}`, rec.Body.String())
}

func TestGetTableSchema(t *testing.T) {
	var gotIdent table.Identifier
	s := newTestServer(t, func(m *mockSession) {
		m.loadSchemaFn = func(_ context.Context, ident table.Identifier) (*iceberg.Schema, error) {
			gotIdent = ident
			return testSchema(t), nil
		}
	})

	t.Run("logical and physical views", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/namespaces/db/tables/orders/schema", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, table.Identifier{"db", "orders"}, gotIdent)

		var body struct {
			Identifier tableIdentifier `json:"identifier"`
			Logical    json.RawMessage `json:"logical"`
			Physical   struct {
				SchemaID int `json:"schema-id"`
				Fields   []struct {
					ID       int    `json:"id"`
					Name     string `json:"name"`
					Required bool   `json:"required"`
				} `json:"fields"`
			} `json:"physical"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "orders", body.Identifier.Name)
		assert.JSONEq(t, `{"type":"struct","fields":[
			{"name":"id","type":"long","nullable":false},
			{"name":"tags","type":{"type":"list","elementType":"string","elementNullable":true},"nullable":true}
		]}`, string(body.Logical))
		assert.Equal(t, 4, body.Physical.SchemaID)
		require.Len(t, body.Physical.Fields, 2)
		assert.Equal(t, 1, body.Physical.Fields[0].ID)
		assert.True(t, body.Physical.Fields[0].Required)
	})

	t.Run("backend error", func(t *testing.T) {
		s := newTestServer(t, func(m *mockSession) {
			m.loadSchemaFn = func(context.Context, table.Identifier) (*iceberg.Schema, error) {
				return nil, errors.New("metadata file missing")
			}
		})
		rec := s.do(t, http.MethodGet, "/v1/namespaces/db/tables/orders/schema", "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", decodeError(t, rec).Message)
	})
}

func TestConvertType(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("struct becomes a schema with field ids", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/types/physical", `{
			"schema-id": 2,
			"type": {"type":"struct","fields":[
				{"name":"a","type":"integer","nullable":true},
				{"name":"b","type":{"type":"map","keyType":"string","valueType":"long","valueNullable":true},"nullable":false}
			]}
		}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"schema":{"type":"struct","schema-id":2,"fields":[
			{"id":1,"name":"a","required":false,"type":"int"},
			{"id":2,"name":"b","required":true,"type":{
				"type":"map","key-id":3,"key":"string","value-id":4,"value":"long","value-required":false}}
		]}}`, rec.Body.String())
	})

	t.Run("scalar", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/types/physical", `{"type":"date"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"type":"date"}`, rec.Body.String())
	})

	t.Run("unsupported type reports its path", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/types/physical", `{"type":{"type":"struct","fields":[
			{"name":"b","type":{"type":"list","elementType":"short"},"nullable":true}
		]}}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		e := decodeError(t, rec)
		assert.Equal(t, "UnsupportedTypeException", e.Type)
		assert.Contains(t, e.Message, "struct.b.list.element")
	})

	t.Run("invalid bodies", func(t *testing.T) {
		for _, body := range []string{`not json`, `{}`, `{"type":"nope"}`} {
			rec := s.do(t, http.MethodPost, "/v1/types/physical", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})
}

func TestAdminCatalogs(t *testing.T) {
	s := newTestServer(t, func(m *mockSession) {
		m.listNamespacesFn = func(context.Context, table.Identifier) ([]table.Identifier, error) {
			return nil, nil
		}
	})

	rec := s.do(t, http.MethodGet, "/v1/sales/namespaces", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"namespaces":[]}`, rec.Body.String())

	t.Run("list", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/admin/catalogs", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body cachedCatalogsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Len(t, body.Catalogs, 1)
		assert.Equal(t, "sales", body.Catalogs[0].Name)
		assert.True(t, body.Catalogs[0].ExpiresAt.After(body.Catalogs[0].WrittenAt))
	})

	t.Run("invalidate", func(t *testing.T) {
		rec := s.do(t, http.MethodDelete, "/admin/catalogs/sales", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, s.cache.Keys())
		assert.Equal(t, int32(1), s.provider.sessions[0].closes.Load())

		rec = s.do(t, http.MethodDelete, "/admin/catalogs/sales", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestManagerClosed(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, s.cache.Shutdown(context.Background()))

	rec := s.do(t, http.MethodGet, "/v1/namespaces", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTPStatusFromDomainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrNotFound("x"), http.StatusNotFound},
		{"validation", domain.ErrValidation("x"), http.StatusBadRequest},
		{"configuration", domain.ErrConfiguration("x"), http.StatusBadRequest},
		{"conflict", domain.ErrConflict("x"), http.StatusConflict},
		{"unsupported", &domain.UnsupportedTypeError{Path: "struct.a", Type: "short"}, http.StatusUnprocessableEntity},
		{"construction", &domain.ConstructionError{Catalog: "x", Err: errors.New("boom")}, http.StatusBadGateway},
		{"construction wrapping not found", &domain.ConstructionError{Catalog: "x", Err: domain.ErrNotFound("x")}, http.StatusNotFound},
		{"refresh", &domain.RefreshError{Catalog: "x", Err: errors.New("token endpoint down")}, http.StatusBadGateway},
		{"closed", domain.ErrManagerClosed, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := httpStatusFromDomainError(tc.err)
			assert.Equal(t, tc.want, got)
		})
	}
}
