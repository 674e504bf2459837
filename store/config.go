package store

const (
	defaultEntityTable       = "timetable_entities"
	defaultRelationshipTable = "timetable_relationships"
	defaultUniqueTable       = "timetable_unique_constraints"
	maxShards                = 256
)

// Config holds configuration for the Store.
type Config struct {
	// EntityTable holds one item per timetable entity, keyed by tree and path.
	// Default: "timetable_entities"
	EntityTable string `mapstructure:"entity_table"`

	// RelationshipTable is the name of the relationship table.
	// Default: "timetable_relationships"
	RelationshipTable string `mapstructure:"relationship_table"`

	// UniqueTable is the name of the unique constraints table.
	// Default: "timetable_unique_constraints"
	UniqueTable string `mapstructure:"unique_table"`

	// NumShards is the number of shards for the relationship table.
	// Higher values increase write throughput but require more parallel queries.
	// Default: 1 (no sharding, single query)
	// Max: 256
	//
	// Per-shard limits:
	//   - Writes: 1,000/sec
	//   - Reads: 3,000/sec
	NumShards int `mapstructure:"num_shards"`

	// UniqueAttributes names attributes whose values must be unique among
	// siblings, e.g. "name" so a period cannot hold two courses called "Math 7".
	// Entities without the attribute are not constrained.
	UniqueAttributes []string `mapstructure:"unique_attributes"`
}

// DefaultConfig returns sensible defaults for small datasets.
func DefaultConfig() Config {
	return Config{
		EntityTable:       defaultEntityTable,
		RelationshipTable: defaultRelationshipTable,
		UniqueTable:       defaultUniqueTable,
		NumShards:         1,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.EntityTable == "" {
		c.EntityTable = defaultEntityTable
	}
	if c.RelationshipTable == "" {
		c.RelationshipTable = defaultRelationshipTable
	}
	if c.UniqueTable == "" {
		c.UniqueTable = defaultUniqueTable
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > maxShards {
		c.NumShards = maxShards
	}
}
