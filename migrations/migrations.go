// Package migrations holds the versioned MongoDB schema changes of the
// payments database. Each migration registers itself from an init function.
package migrations

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"go.mongodb.org/mongo-driver/mongo"
)

// MigrationFunc applies or reverts a schema change.
type MigrationFunc func(ctx context.Context, database *mongo.Database) error

// Migration represents a single migration
type Migration struct {
	Version int
	Name    string
	Up      MigrationFunc
	Down    MigrationFunc
}

var registry = make(map[int]Migration)

// AddMigration registers a migration. Registering the same version twice
// panics.
func AddMigration(version int, name string, up, down MigrationFunc) {
	if m, ok := registry[version]; ok {
		panic(fmt.Sprintf("migration %d (%s) already registered as %s", version, name, m.Name))
	}
	registry[version] = Migration{
		Version: version,
		Name:    name,
		Up:      up,
		Down:    down,
	}
}

// DelMigration deregisters a migration.
func DelMigration(version int) { delete(registry, version) }

// SortedByVersionAsc returns all registered migrations, sorted by ascending version
func SortedByVersionAsc() []Migration {
	migs := make([]Migration, 0, len(registry))
	for _, mig := range registry {
		migs = append(migs, mig)
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].Version < migs[j].Version })
	return migs
}

// Latest returns the highest registered version.
func Latest() int {
	latest := 0
	for v := range registry {
		if v > latest {
			latest = v
		}
	}
	return latest
}

// AsMap returns a copy of the registry keyed by version.
func AsMap() map[int]Migration {
	return maps.Clone(registry)
}
