package keystore

import (
	"sort"
	"sync"
)

// IKeyStore resolves the private key of a signer address
type IKeyStore interface {
	// PrivateKey returns a copy of the key for address. The caller owns the
	// returned slice and should zero it when done.
	PrivateKey(address string) ([]byte, bool)
}

// KeyStore holds software keys in memory and provides thread-safe access
type KeyStore struct {
	mu sync.RWMutex

	keys map[string][]byte
}

var _ IKeyStore = (*KeyStore)(nil)

// NewKeyStore creates an empty key store
func NewKeyStore() *KeyStore {
	return &KeyStore{
		keys: make(map[string][]byte),
	}
}

// AddPrivateKey stores a copy of key under address, replacing any previous key
func (ks *KeyStore) AddPrivateKey(address string, key []byte) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if old, ok := ks.keys[address]; ok {
		zero(old)
	}
	ks.keys[address] = append([]byte{}, key...)
}

func (ks *KeyStore) PrivateKey(address string) ([]byte, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	key, ok := ks.keys[address]
	if !ok {
		return nil, false
	}
	return append([]byte{}, key...), true
}

// RemovePrivateKey wipes and forgets the key for address
func (ks *KeyStore) RemovePrivateKey(address string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if key, ok := ks.keys[address]; ok {
		zero(key)
		delete(ks.keys, address)
	}
}

// Addresses returns the addresses with a stored key, sorted
func (ks *KeyStore) Addresses() []string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	addresses := make([]string, 0, len(ks.keys))
	for address := range ks.keys {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	return addresses
}

// Zero overwrites key material in place
func Zero(key []byte) {
	zero(key)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
