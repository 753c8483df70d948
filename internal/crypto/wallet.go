package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Wallet signs transactions for the seller account.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewWallet creates a Wallet from a hex-encoded secp256k1 private key.
func NewWallet(privateKeyHex string) (*Wallet, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/wallet: invalid private key: %w", err)
	}
	return &Wallet{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the account address derived from the key.
func (w *Wallet) Address() common.Address {
	return w.address
}

// SignTx signs tx for chainID using the latest signer the chain supports.
func (w *Wallet) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if chainID == nil {
		return nil, fmt.Errorf("crypto/wallet: chain id is required")
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/wallet: sign tx: %w", err)
	}
	return signed, nil
}

// String returns the address only; the key is never printed.
func (w *Wallet) String() string {
	return fmt.Sprintf("Wallet{address=%s}", w.address.Hex())
}
