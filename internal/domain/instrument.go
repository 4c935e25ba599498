package domain

// Instrument represents a tradable symbol in the registry.
// Corresponds to instruments table in PostgreSQL.
type Instrument struct {
	Symbol    string  // PRIMARY KEY, uppercase ticker
	Name      *string // display name (nullable)
	Currency  string  // quote currency, e.g. "USD"
	CreatedAt int64   // record creation timestamp (ms)
}
