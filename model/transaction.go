package model

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/powlabs/gochain/crypto"
	"github.com/powlabs/gochain/errors"
)

// OutPoint identifies a specific output of a previous transaction.
type OutPoint struct {
	TxID Hash   `json:"txid"`
	Vout uint32 `json:"vout"`
}

// TxInput spends a previous output. A coinbase input carries no
// previous outpoint.
type TxInput struct {
	PreviousOutput *OutPoint `json:"previous_output,omitempty"`
	ScriptSig      []byte    `json:"script_sig"`
	Sequence       uint32    `json:"sequence"`
}

// TxOutput assigns value to a destination address.
type TxOutput struct {
	Value        Amount  `json:"value"`
	ScriptPubKey []byte  `json:"script_pubkey"`
	Address      Address `json:"address"`
}

// Transaction is the value-transfer unit. The detachable signature is
// excluded from the id payload so signing does not change the id.
type Transaction struct {
	ID           Hash       `json:"id"`
	Inputs       []TxInput  `json:"inputs"`
	Outputs      []TxOutput `json:"outputs"`
	LockTime     uint64     `json:"lock_time"`
	Timestamp    int64      `json:"timestamp"`
	Fee          Amount     `json:"fee"`
	Signature    []byte     `json:"signature,omitempty"`
	ContractData []byte     `json:"contract_data,omitempty"`
}

// UTXO is a live spendable output together with the metadata needed
// for maturity checks.
type UTXO struct {
	OutPoint   OutPoint `json:"outpoint"`
	Output     TxOutput `json:"output"`
	Height     uint64   `json:"height"`
	IsCoinbase bool     `json:"is_coinbase"`
}

// UTXOView is the read-only surface transaction validation runs against.
type UTXOView interface {
	GetUTXO(outpoint OutPoint) (*UTXO, bool)
}

// NewTransaction assembles a transaction and derives its id.
func NewTransaction(inputs []TxInput, outputs []TxOutput, lockTime uint64) *Transaction {
	tx := &Transaction{
		Inputs:    inputs,
		Outputs:   outputs,
		LockTime:  lockTime,
		Timestamp: time.Now().Unix(),
	}
	tx.ID = tx.CalculateID()
	return tx
}

// NewCoinbase builds the reward-issuing transaction for a block at the
// given height. The height is embedded in the script sig so coinbase
// ids stay unique across heights.
func NewCoinbase(reward Amount, minerAddress Address, height uint64) *Transaction {
	heightBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBytes, height)

	tx := &Transaction{
		Inputs: []TxInput{{
			PreviousOutput: nil,
			ScriptSig:      heightBytes,
			Sequence:       CoinbaseSequence,
		}},
		Outputs: []TxOutput{{
			Value:   reward,
			Address: minerAddress,
		}},
		Timestamp: time.Now().Unix(),
	}
	tx.ID = tx.CalculateID()
	return tx
}

// CalculateID hashes the canonical payload: every input's referenced
// outpoint, script sig and sequence, every output's value, script and
// address, then the lock time and contract data. Signatures are not
// part of the payload.
func (tx *Transaction) CalculateID() Hash {
	var data []byte
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		if in.PreviousOutput != nil {
			data = append(data, []byte(in.PreviousOutput.TxID)...)
			data = binary.BigEndian.AppendUint32(data, in.PreviousOutput.Vout)
		}
		data = append(data, in.ScriptSig...)
		data = binary.BigEndian.AppendUint32(data, in.Sequence)
	}
	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		data = binary.BigEndian.AppendUint64(data, out.Value)
		data = append(data, out.ScriptPubKey...)
		data = append(data, []byte(out.Address)...)
	}
	data = binary.BigEndian.AppendUint64(data, tx.LockTime)
	data = append(data, tx.ContractData...)
	return crypto.HashToString(crypto.Sha256(data))
}

// SigningData is the payload a wallet signs: the id plus the lock time.
func (tx *Transaction) SigningData() []byte {
	data := []byte(tx.ID)
	return binary.BigEndian.AppendUint64(data, tx.LockTime)
}

// IsCoinbase reports whether tx is the reward-issuing transaction:
// exactly one input and that input references no previous output.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PreviousOutput == nil
}

// IsContractCall reports whether the contract-execution collaborator
// must be invoked for this transaction.
func (tx *Transaction) IsContractCall() bool {
	return len(tx.ContractData) > 0
}

// TotalOutputValue sums output values with overflow checking.
func (tx *Transaction) TotalOutputValue() (Amount, error) {
	return SumOutputValues(tx.Outputs)
}

// TotalInputValue resolves every input against the view and sums the
// referenced values. Coinbase transactions have no real inputs.
func (tx *Transaction) TotalInputValue(view UTXOView) (Amount, error) {
	if tx.IsCoinbase() {
		return 0, nil
	}
	var total Amount
	for i := range tx.Inputs {
		outpoint := tx.Inputs[i].PreviousOutput
		if outpoint == nil {
			return 0, errors.NewInvalidTransaction("non-coinbase input %d has no previous output", i)
		}
		utxo, ok := view.GetUTXO(*outpoint)
		if !ok {
			return 0, errors.NewInvalidTransaction("referenced output not found: %s:%d", outpoint.TxID, outpoint.Vout)
		}
		var err error
		total, err = SafeAdd(total, utxo.Output.Value)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Validate runs the structural and economic checks against a UTXO view
// at the given chain height. Coinbase value against the reward schedule
// is the chain coordinator's job, not done here.
func (tx *Transaction) Validate(view UTXOView, currentHeight uint64) error {
	if len(tx.Inputs) == 0 {
		return errors.NewInvalidTransaction("transaction has no inputs")
	}
	if len(tx.Outputs) == 0 {
		return errors.NewInvalidTransaction("transaction has no outputs")
	}
	if tx.ID != tx.CalculateID() {
		return errors.NewInvalidTransaction("transaction id does not match payload")
	}
	for i := range tx.Outputs {
		if tx.Outputs[i].Value == 0 {
			return errors.NewInvalidTransaction("output %d has zero value", i)
		}
	}

	if tx.IsCoinbase() {
		return nil
	}

	var totalInput Amount
	for i := range tx.Inputs {
		outpoint := tx.Inputs[i].PreviousOutput
		if outpoint == nil {
			return errors.NewInvalidTransaction("non-coinbase input %d has no previous output", i)
		}
		utxo, ok := view.GetUTXO(*outpoint)
		if !ok {
			return errors.NewInvalidTransaction("referenced output not found: %s:%d", outpoint.TxID, outpoint.Vout)
		}
		if utxo.IsCoinbase && currentHeight-utxo.Height < CoinbaseMaturity {
			return errors.NewInvalidTransaction("coinbase output %s:%d not mature until height %d",
				outpoint.TxID, outpoint.Vout, utxo.Height+CoinbaseMaturity)
		}
		var err error
		totalInput, err = SafeAdd(totalInput, utxo.Output.Value)
		if err != nil {
			return err
		}
	}

	totalOutput, err := tx.TotalOutputValue()
	if err != nil {
		return err
	}
	if totalInput < totalOutput {
		return errors.NewInvalidTransaction("total input %d less than total output %d", totalInput, totalOutput)
	}

	// Guard against catastrophic fee mistakes: the implied fee may not
	// exceed half of the total input value.
	fee := totalInput - totalOutput
	if fee > totalInput/2 {
		return errors.NewInvalidTransaction("fee %d exceeds half of input value %d", fee, totalInput)
	}

	return nil
}

// Serialize encodes the transaction for persistence and transport.
func (tx *Transaction) Serialize() ([]byte, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return nil, errors.Wrap(errors.KindInvalidTransaction, err, "serialize transaction")
	}
	return data, nil
}

// DeserializeTransaction decodes a transaction produced by Serialize.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, errors.Wrap(errors.KindInvalidTransaction, err, "deserialize transaction")
	}
	return &tx, nil
}

// Size is the serialized byte length, used for fee rates and block
// size accounting.
func (tx *Transaction) Size() int {
	data, err := tx.Serialize()
	if err != nil {
		return 0
	}
	return len(data)
}
