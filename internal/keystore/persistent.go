package keystore

import (
	"iter"

	"github.com/rs/zerolog"

	"github.com/FluidXR/adbinfo/internal/store"
)

// Persistent is a Storage backed by the local SQLite store, so a device only
// has to approve the key once.
type Persistent struct {
	db  *store.DB
	log zerolog.Logger
}

// NewPersistent wraps db. Load errors are logged to log and end the sequence.
func NewPersistent(db *store.DB, log zerolog.Logger) *Persistent {
	return &Persistent{db: db, log: log}
}

// Load yields the keys stored in the database.
func (p *Persistent) Load() iter.Seq2[string, []byte] {
	return func(yield func(string, []byte) bool) {
		keys, err := p.db.Keys()
		if err != nil {
			p.log.Error().Err(err).Msg("load keys")
			return
		}
		for _, k := range keys {
			if !yield(k.Name, k.PrivateKey) {
				return
			}
		}
	}
}

// Save writes privateKey under name. An empty name is ignored.
func (p *Persistent) Save(privateKey []byte, name string) error {
	if name == "" {
		return nil
	}
	return p.db.PutKey(name, privateKey)
}
