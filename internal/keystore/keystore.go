// Package keystore holds the private keys used to authenticate with Android
// devices. Storage is pluggable: Memory keeps keys for the lifetime of the
// process, Persistent keeps them in the local SQLite store.
package keystore

import "iter"

// Storage is the persistence contract a credential manager relies on.
type Storage interface {
	// Load yields (name, private key) pairs from the current contents.
	// The sequence is finite and may be iterated more than once.
	Load() iter.Seq2[string, []byte]
	// Save associates name with privateKey, replacing any previous key of
	// the same name. An empty name is ignored.
	Save(privateKey []byte, name string) error
}
