package store

// Config holds configuration shared by the storage backends.
type Config struct {
	// RecordsTable is the DynamoDB table holding records.
	// Default: "weft_records"
	RecordsTable string

	// CollectionsTable is the DynamoDB table holding collection entities.
	// Default: "weft_collections"
	CollectionsTable string

	// AccountsTable is the DynamoDB table holding account entities.
	// Default: "weft_accounts"
	AccountsTable string

	// Path is the database file location for the sqlite backend.
	// Default: "weft.db"
	Path string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RecordsTable:     "weft_records",
		CollectionsTable: "weft_collections",
		AccountsTable:    "weft_accounts",
		Path:             "weft.db",
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.RecordsTable == "" {
		c.RecordsTable = "weft_records"
	}
	if c.CollectionsTable == "" {
		c.CollectionsTable = "weft_collections"
	}
	if c.AccountsTable == "" {
		c.AccountsTable = "weft_accounts"
	}
	if c.Path == "" {
		c.Path = "weft.db"
	}
}
