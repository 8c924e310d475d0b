package postgres

import "csvpg/internal/storage"

func init() {
	// registers the backend factory
	storage.Register("postgres", New)
}
