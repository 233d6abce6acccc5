package evm

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/xraph/settle/chain"
)

// Signer holds a secp256k1 key for signing outbound transfers.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex-encoded private key, with or without a 0x prefix.
func NewSigner(privateKeyHex string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("evm: parse private key: %w", err)
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

var _ chain.Signer = (*Signer)(nil)

// Address implements chain.Signer.
func (s *Signer) Address() string {
	return s.address.Hex()
}
