package ports

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
)

// KeyStore seals delegator keys at rest.
type KeyStore interface {
	NewKey() (*ecdsa.PrivateKey, common.Address, error)
	Encrypt(key *ecdsa.PrivateKey) ([]byte, error)
	Decrypt(sealed []byte) (*ecdsa.PrivateKey, error)
}
