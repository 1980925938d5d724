package keystore_test

import (
	"encoding/hex"
	"testing"

	"github.com/acc-network/relay/internal/infrastructure/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestKeyStore(t *testing.T) {
	svc, err := keystore.NewService("relay-secret", true)
	require.NoError(t, err)

	key, addr, err := svc.NewKey()
	require.NoError(t, err)
	require.Equal(t, ethcrypto.PubkeyToAddress(key.PublicKey), addr)

	sealed, err := svc.Encrypt(key)
	require.NoError(t, err)
	require.NotContains(t, string(sealed), hex.EncodeToString(ethcrypto.FromECDSA(key)))

	opened, err := svc.Decrypt(sealed)
	require.NoError(t, err)
	require.Equal(t, key.D, opened.D)

	other, err := keystore.NewService("another-secret", true)
	require.NoError(t, err)
	_, err = other.Decrypt(sealed)
	require.Error(t, err)

	_, err = keystore.NewService("", true)
	require.Error(t, err)
}
