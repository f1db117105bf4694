// Package wallet manages key pairs and assembles signed spends from
// the owner's unspent outputs.
package wallet

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/powlabs/gochain/crypto"
	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/model"
)

// UTXOSource selects spendable outputs for an address. The chain
// coordinator implements it; tests stub it.
type UTXOSource interface {
	FindSpendableUTXOs(address model.Address, amount model.Amount) ([]model.UTXO, error)
}

// Wallet owns one key pair and spends the outputs destined to its
// address.
type Wallet struct {
	keys *crypto.KeyPair
}

// New generates a wallet with a fresh key pair.
func New() (*Wallet, error) {
	keys, err := crypto.NewKeyPair()
	if err != nil {
		return nil, err
	}
	return &Wallet{keys: keys}, nil
}

// FromKeyPair wraps an existing key pair.
func FromKeyPair(keys *crypto.KeyPair) *Wallet {
	return &Wallet{keys: keys}
}

// Load reads a hex-encoded private key written by Save.
func Load(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, err, "read wallet file %s", path)
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, err, "decode wallet file %s", path)
	}
	keys, err := crypto.KeyPairFromPrivateKey(raw)
	if err != nil {
		return nil, err
	}
	return &Wallet{keys: keys}, nil
}

// Save writes the hex-encoded private key, readable only by the owner.
func (w *Wallet) Save(path string) error {
	encoded := hex.EncodeToString(w.keys.PrivateKey.Serialize())
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return errors.Wrap(errors.KindStorage, err, "write wallet file %s", path)
	}
	logrus.WithField("path", path).Info("wallet key saved")
	return nil
}

// Address is the base58check address of this wallet's public key.
func (w *Wallet) Address() model.Address {
	return model.Address(w.keys.Address())
}

// PublicKey is the serialized compressed public key.
func (w *Wallet) PublicKey() []byte {
	return w.keys.PublicKey
}

// CreateTransaction selects enough of the wallet's mature outputs to
// cover amount plus fee, pays the recipient, returns the remainder to
// the wallet's own address, and signs the result.
func (w *Wallet) CreateTransaction(source UTXOSource, to model.Address, amount, fee model.Amount) (*model.Transaction, error) {
	if amount == 0 {
		return nil, errors.NewInvalidTransaction("cannot send zero value")
	}

	needed, err := model.SafeAdd(amount, fee)
	if err != nil {
		return nil, err
	}
	utxos, err := source.FindSpendableUTXOs(w.Address(), needed)
	if err != nil {
		return nil, err
	}

	inputs := make([]model.TxInput, 0, len(utxos))
	var totalIn model.Amount
	for _, u := range utxos {
		outpoint := u.OutPoint
		inputs = append(inputs, model.TxInput{
			PreviousOutput: &outpoint,
			ScriptSig:      w.keys.PublicKey,
		})
		totalIn, err = model.SafeAdd(totalIn, u.Output.Value)
		if err != nil {
			return nil, err
		}
	}

	outputs := []model.TxOutput{{Value: amount, Address: to}}
	if change := totalIn - needed; change > 0 {
		outputs = append(outputs, model.TxOutput{Value: change, Address: w.Address()})
	}

	tx := model.NewTransaction(inputs, outputs, 0)
	tx.Fee = fee
	w.Sign(tx)
	return tx, nil
}

// Sign attaches the detached signature over the transaction's signing
// payload. The signature is not part of the id, so signing never
// changes the id.
func (w *Wallet) Sign(tx *model.Transaction) {
	tx.Signature = w.keys.Sign(tx.SigningData())
}

// VerifyOwnership reports whether the transaction's signature was made
// by the holder of the given compressed public key.
func VerifyOwnership(tx *model.Transaction, pubKey []byte) bool {
	if len(tx.Signature) == 0 {
		return false
	}
	return crypto.VerifySignature(pubKey, tx.SigningData(), tx.Signature)
}
