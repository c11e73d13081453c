package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Schema versions:
// 1 - Initial version (runs and children)
const CurrentSchemaVersion = 1

// ErrNewerSchema is returned when the registry was written by a newer build.
var ErrNewerSchema = errors.New("registry schema is newer than supported")

const schemaKey = prefixMeta + "__schema__"

// Schema holds database schema information.
type Schema struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetSchema returns the current schema version, or nil if not set.
func (r *Registry) GetSchema() *Schema {
	var schema *Schema

	_ = r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(schemaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			schema = &Schema{}
			return json.Unmarshal(val, schema)
		})
	})

	return schema
}

// SetSchema stores the schema version.
func (r *Registry) SetSchema(schema *Schema) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(schemaKey), data)
	})
}

// ensureSchema stamps a fresh registry and rejects one from a newer build.
func (r *Registry) ensureSchema() error {
	schema := r.GetSchema()
	if schema == nil {
		return r.SetSchema(&Schema{Version: CurrentSchemaVersion, UpdatedAt: time.Now().UTC()})
	}
	if schema.Version > CurrentSchemaVersion {
		return fmt.Errorf("%w: %d > %d", ErrNewerSchema, schema.Version, CurrentSchemaVersion)
	}
	return nil
}
