package keystore

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/acc-network/relay/internal/core/ports"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

type service struct {
	passphrase string
	scryptN    int
	scryptP    int
}

// NewService seals delegator keys as V3 keystore json encrypted with the
// relay passphrase.
func NewService(passphrase string, light bool) (ports.KeyStore, error) {
	if len(passphrase) <= 0 {
		return nil, fmt.Errorf("missing keystore passphrase")
	}
	scryptN, scryptP := keystore.StandardScryptN, keystore.StandardScryptP
	if light {
		scryptN, scryptP = keystore.LightScryptN, keystore.LightScryptP
	}
	return &service{passphrase, scryptN, scryptP}, nil
}

func (s *service) NewKey() (*ecdsa.PrivateKey, common.Address, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, common.Address{}, err
	}
	return key, ethcrypto.PubkeyToAddress(key.PublicKey), nil
}

func (s *service) Encrypt(key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("nil private key")
	}
	return keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    ethcrypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}, s.passphrase, s.scryptN, s.scryptP)
}

func (s *service) Decrypt(sealed []byte) (*ecdsa.PrivateKey, error) {
	key, err := keystore.DecryptKey(sealed, s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt delegator key: %w", err)
	}
	return key.PrivateKey, nil
}
