package adb

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// VendorKeys is a set of key files installed for the adb server.
type VendorKeys struct {
	// Paths is the ADB_VENDOR_KEYS value.
	Paths string
	// Digest identifies the key material, so a key regenerated under the same
	// file name still counts as a different set.
	Digest string
}

func vendorKeyFile(dir, name string) string {
	return filepath.Join(dir, filepath.Base(name)+".adb_key")
}

// installVendorKeys writes keys into dir as <name>.adb_key files.
func installVendorKeys(dir string, keys []PrivateKey) (VendorKeys, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return VendorKeys{}, fmt.Errorf("create key dir: %w", err)
	}
	var paths []string
	h := sha256.New()
	for _, key := range keys {
		data, err := key.PEM()
		if err != nil {
			return VendorKeys{}, err
		}
		path := vendorKeyFile(dir, key.Name)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return VendorKeys{}, fmt.Errorf("install adb key %q: %w", key.Name, err)
		}
		paths = append(paths, path)
		h.Write([]byte(path))
		h.Write(data)
	}
	return VendorKeys{
		Paths:  strings.Join(paths, string(os.PathListSeparator)),
		Digest: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
