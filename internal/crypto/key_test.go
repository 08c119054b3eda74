package crypto_test

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lmsrmarket/internal/crypto"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestLoadKey_Raw(t *testing.T) {
	key, err := crypto.LoadKey(crypto.KeySource{RawPrivateKey: "0x" + testKeyHex})
	require.NoError(t, err)

	want, _ := ethcrypto.HexToECDSA(testKeyHex)
	assert.Equal(t, ethcrypto.PubkeyToAddress(want.PublicKey), ethcrypto.PubkeyToAddress(key.PublicKey))
}

func TestLoadKey_NoSource(t *testing.T) {
	_, err := crypto.LoadKey(crypto.KeySource{})
	require.Error(t, err)
	assert.False(t, crypto.KeySource{}.Configured())
}

func TestLoadKey_InvalidHex(t *testing.T) {
	_, err := crypto.LoadKey(crypto.KeySource{RawPrivateKey: "zz"})
	require.Error(t, err)
}

func TestSealOpenRoundTrip(t *testing.T) {
	sealed, err := crypto.SealKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := crypto.OpenKey(sealed, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)

	_, err = crypto.OpenKey(sealed, "wrong")
	require.Error(t, err)
}

func TestLoadKey_SealedFile(t *testing.T) {
	sealed, err := crypto.SealKey(testKeyHex, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, sealed, 0o600))

	key, err := crypto.LoadKey(crypto.KeySource{SealedKeyPath: path, Password: "pw"})
	require.NoError(t, err)
	assert.NotNil(t, key)
}

func TestTxSigner_SignTx(t *testing.T) {
	key, err := crypto.LoadKey(crypto.KeySource{RawPrivateKey: testKeyHex})
	require.NoError(t, err)
	signer := crypto.NewTxSigner(key)

	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tx := types.NewTx(&types.LegacyTx{Nonce: 1, To: &to, Value: big.NewInt(0), Gas: 21000, GasPrice: big.NewInt(1)})
	chainID := big.NewInt(1337)

	signed, err := signer.SignTx(tx, chainID)
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from)
}
