package provider

import (
	"context"
	"fmt"
	"iter"

	"github.com/apache/iceberg-go"
	"github.com/apache/iceberg-go/catalog"
	_ "github.com/apache/iceberg-go/catalog/rest" // registers the "rest" catalog type
	_ "github.com/apache/iceberg-go/catalog/sql"  // registers the "sql" catalog type
	"github.com/apache/iceberg-go/table"
)

// Backend is the subset of an iceberg-go catalog the gateway uses.
// catalog.Catalog satisfies it.
type Backend interface {
	ListNamespaces(ctx context.Context, parent table.Identifier) ([]table.Identifier, error)
	ListTables(ctx context.Context, namespace table.Identifier) iter.Seq2[table.Identifier, error]
	LoadTable(ctx context.Context, identifier table.Identifier, props iceberg.Properties) (*table.Table, error)
}

// BackendLoader opens a backend catalog from its properties.
type BackendLoader func(ctx context.Context, name string, props iceberg.Properties) (Backend, error)

// LoadBackend opens an Iceberg catalog through the iceberg-go catalog
// registry. The "type" property selects the implementation (rest, sql, ...).
func LoadBackend(ctx context.Context, name string, props iceberg.Properties) (Backend, error) {
	cat, err := catalog.Load(ctx, name, props)
	if err != nil {
		return nil, fmt.Errorf("load iceberg catalog: %w", err)
	}
	return cat, nil
}
