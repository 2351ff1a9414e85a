package dataset

import _ "embed"

//go:embed data/seed.json
var seedJSON []byte

// Seed returns the small bundled corpus used when no dataset is configured.
func Seed() (*Dataset, error) {
	return Parse(seedJSON)
}
