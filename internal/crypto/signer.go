package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// TxSigner signs transactions for a single account.
type TxSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewTxSigner wraps key.
func NewTxSigner(key *ecdsa.PrivateKey) *TxSigner {
	return &TxSigner{key: key, address: ethcrypto.PubkeyToAddress(key.PublicKey)}
}

// Address is the account the signer controls.
func (s *TxSigner) Address() common.Address { return s.address }

// SignTx signs tx for chainID with the latest signer rules for that chain.
func (s *TxSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign tx: %w", err)
	}
	return signed, nil
}
