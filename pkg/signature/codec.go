// Package signature builds the chain id and nonce bound messages that
// accounts sign for every relayed action, and verifies their signers.
package signature

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const DefaultStaleWindow = 8

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrStaleNonce       = errors.New("signature bound to a stale nonce")
)

var (
	tString   = mustType("string")
	tAddress  = mustType("address")
	tUint256  = mustType("uint256")
	tBytes32  = mustType("bytes32")
	tBytes32s = mustType("bytes32[]")
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %s", t, err))
	}
	return typ
}

// Message returns the payload a signer commits to for the given nonce.
type Message func(nonce *big.Int) []byte

type Codec struct {
	chainID     *big.Int
	staleWindow int
}

func NewCodec(chainID *big.Int, staleWindow int) *Codec {
	if staleWindow < 0 {
		staleWindow = 0
	}
	return &Codec{chainID: new(big.Int).Set(chainID), staleWindow: staleWindow}
}

func (c *Codec) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Codec) encode(tag string, types []abi.Type, values ...any) []byte {
	args := abi.Arguments{{Type: tString}}
	for _, t := range types {
		args = append(args, abi.Argument{Type: t})
	}
	packed, err := args.Pack(append([]any{tag}, values...)...)
	if err != nil {
		// argument types are fixed per message, a failure here is a bug
		panic(fmt.Sprintf("pack %s message: %s", tag, err))
	}
	return packed
}

func (c *Codec) AccountMessage(account common.Address) Message {
	return func(nonce *big.Int) []byte {
		return c.encode("Account",
			[]abi.Type{tAddress, tUint256, tUint256},
			account, nonce, c.chainID,
		)
	}
}

func (c *Codec) NewPaymentMessage(
	account common.Address, paymentId common.Hash, purchaseId string,
	amount *big.Int, currency string, shopId common.Hash,
) Message {
	return func(nonce *big.Int) []byte {
		return c.encode("NewPayment",
			[]abi.Type{tBytes32, tString, tUint256, tString, tBytes32, tAddress, tUint256, tUint256},
			paymentId, purchaseId, amount, currency, shopId, account, nonce, c.chainID,
		)
	}
}

func (c *Codec) CancelPaymentMessage(
	account common.Address, paymentId common.Hash, purchaseId string,
) Message {
	return func(nonce *big.Int) []byte {
		return c.encode("CancelPayment",
			[]abi.Type{tBytes32, tString, tAddress, tUint256, tUint256},
			paymentId, purchaseId, account, nonce, c.chainID,
		)
	}
}

func (c *Codec) ShopAccountMessage(shopId common.Hash, account common.Address) Message {
	return func(nonce *big.Int) []byte {
		return c.encode("ShopAccount",
			[]abi.Type{tBytes32, tAddress, tUint256, tUint256},
			shopId, account, nonce, c.chainID,
		)
	}
}

func (c *Codec) ChangeDelegatorMessage(
	shopId common.Hash, account, delegator common.Address,
) Message {
	return func(nonce *big.Int) []byte {
		return c.encode("ChangeDelegator",
			[]abi.Type{tBytes32, tAddress, tAddress, tUint256, tUint256},
			shopId, account, delegator, nonce, c.chainID,
		)
	}
}

func (c *Codec) RegisterAgentMessage(account, agent common.Address) Message {
	return func(nonce *big.Int) []byte {
		return c.encode("RegisterAgent",
			[]abi.Type{tAddress, tAddress, tUint256, tUint256},
			account, agent, nonce, c.chainID,
		)
	}
}

func (c *Codec) SetSettlementManagerMessage(shopId, managerId common.Hash) Message {
	return func(nonce *big.Int) []byte {
		return c.encode("SetSettlementManager",
			[]abi.Type{tBytes32, tBytes32, tUint256, tUint256},
			shopId, managerId, nonce, c.chainID,
		)
	}
}

func (c *Codec) RemoveSettlementManagerMessage(shopId common.Hash) Message {
	return func(nonce *big.Int) []byte {
		return c.encode("RemoveSettlementManager",
			[]abi.Type{tBytes32, tUint256, tUint256},
			shopId, nonce, c.chainID,
		)
	}
}

func (c *Codec) ShopRefundMessage(shopId common.Hash, amount *big.Int) Message {
	return func(nonce *big.Int) []byte {
		return c.encode("ShopRefund",
			[]abi.Type{tBytes32, tUint256, tUint256, tUint256},
			shopId, amount, nonce, c.chainID,
		)
	}
}

func (c *Codec) CollectSettlementMessage(managerId common.Hash, clients []common.Hash) Message {
	ids := make([][32]byte, 0, len(clients))
	for _, id := range clients {
		ids = append(ids, id)
	}
	return func(nonce *big.Int) []byte {
		return c.encode("CollectSettlement",
			[]abi.Type{tBytes32, tBytes32s, tUint256, tUint256},
			managerId, ids, nonce, c.chainID,
		)
	}
}

// TransferMessage binds a token movement between two addresses, used by
// the bridge deposit and withdraw calls.
func (c *Codec) TransferMessage(
	token, from, to common.Address, amount *big.Int, expiry int64,
) Message {
	return func(nonce *big.Int) []byte {
		return c.encode("Transfer",
			[]abi.Type{tUint256, tAddress, tAddress, tAddress, tUint256, tUint256, tUint256},
			c.chainID, token, from, to, amount, nonce, big.NewInt(expiry),
		)
	}
}

// Digest is the EIP-191 hash of the keccak of payload, the value wallets
// sign with personal_sign.
func Digest(payload []byte) []byte {
	return accounts.TextHash(ethcrypto.Keccak256(payload))
}

// Sign signs the message for nonce, returning a 65 byte signature with a
// 27/28 recovery id.
func Sign(msg Message, nonce *big.Int, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := ethcrypto.Sign(Digest(msg(nonce)), key)
	if err != nil {
		return nil, err
	}
	sig[ethcrypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Recover returns the address that produced sig over payload.
func Recover(payload, sig []byte) (common.Address, error) {
	if len(sig) != ethcrypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[ethcrypto.RecoveryIDOffset] >= 27 {
		normalized[ethcrypto.RecoveryIDOffset] -= 27
	}
	pub, err := ethcrypto.SigToPub(Digest(payload), normalized)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// Verify checks that signer signed msg bound to nonce. A signature that
// matches one of the previous nonces within the stale window yields
// ErrStaleNonce, anything else ErrInvalidSignature.
func (c *Codec) Verify(msg Message, sig []byte, signer common.Address, nonce *big.Int) error {
	recovered, err := Recover(msg(nonce), sig)
	if err != nil {
		return err
	}
	if recovered == signer {
		return nil
	}

	one := big.NewInt(1)
	prev := new(big.Int).Set(nonce)
	for i := 0; i < c.staleWindow && prev.Sign() > 0; i++ {
		prev = new(big.Int).Sub(prev, one)
		if recovered, err := Recover(msg(prev), sig); err == nil && recovered == signer {
			return ErrStaleNonce
		}
	}
	return ErrInvalidSignature
}

// NewSecret returns a random secret and its keccak lock.
func NewSecret() (secret, lock common.Hash, err error) {
	if _, err = rand.Read(secret[:]); err != nil {
		return
	}
	lock = ethcrypto.Keccak256Hash(secret[:])
	return
}

// PaymentID derives the identifier of a payment opened by account at nonce.
// The salt keeps a re-open at an unchanged nonce distinct.
func PaymentID(account common.Address, nonce *big.Int, salt common.Hash) common.Hash {
	args := abi.Arguments{{Type: tString}, {Type: tAddress}, {Type: tUint256}, {Type: tBytes32}}
	packed, err := args.Pack("PaymentId", account, nonce, salt)
	if err != nil {
		panic(fmt.Sprintf("pack payment id: %s", err))
	}
	return ethcrypto.Keccak256Hash(packed)
}

// RandomHash returns 32 random bytes.
func RandomHash() (common.Hash, error) {
	var h common.Hash
	_, err := rand.Read(h[:])
	return h, err
}
