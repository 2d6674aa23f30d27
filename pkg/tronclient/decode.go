package tronclient

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"virtualcard_back/internal/wallet"
)

const (
	TriggerSmartContract = "TriggerSmartContract"
	ContractRetSuccess   = "SUCCESS"

	// transfer(address,uint256)
	transferSelector = "a9059cbb"
)

var (
	ErrNoContract        = errors.New("transaction carries no contract")
	ErrNotContractCall   = errors.New("transaction is not a smart contract call")
	ErrNotTransferCall   = errors.New("contract call is not a token transfer")
	ErrMalformedCallData = errors.New("malformed transfer call data")
)

var txIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// ValidTxID reports whether s looks like a TRON transaction hash.
func ValidTxID(s string) bool {
	return txIDPattern.MatchString(s)
}

// AddressDecoder converts the chain's raw hex address into its public display form.
type AddressDecoder interface {
	Decode(hexAddr string) (string, error)
}

type Base58Decoder struct{}

func (Base58Decoder) Decode(hexAddr string) (string, error) {
	return wallet.HexToBase58(hexAddr)
}

// LedgerTransaction is the decoded, never persisted view of a token transfer.
type LedgerTransaction struct {
	TxID            string
	ContractType    string
	ContractAddress string
	Recipient       string
	RawAmount       *big.Int
	Success         bool
}

// Amount scales the smallest-unit integer by the token's decimals.
func (l LedgerTransaction) Amount(decimals int32) decimal.Decimal {
	if l.RawAmount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(l.RawAmount, -decimals)
}

// DecodeLedgerTransaction decodes the first contract of tx. The partially decoded
// transaction is returned alongside any error so callers can log what was seen.
func DecodeLedgerTransaction(tx Transaction, dec AddressDecoder) (*LedgerTransaction, error) {
	if len(tx.RawData.Contract) == 0 {
		return nil, ErrNoContract
	}
	c := tx.RawData.Contract[0]
	lt := &LedgerTransaction{
		TxID:         tx.TxID,
		ContractType: c.Type,
		Success:      len(tx.Ret) > 0 && tx.Ret[0].ContractRet == ContractRetSuccess,
	}
	if c.Type != TriggerSmartContract {
		return lt, ErrNotContractCall
	}

	v := c.Parameter.Value
	if v.ContractAddress != "" {
		addr, err := displayAddress(dec, v.ContractAddress)
		if err != nil {
			return lt, fmt.Errorf("contract address: %w", err)
		}
		lt.ContractAddress = addr
	}

	switch {
	case v.Data != "":
		recipient, amount, err := decodeTransferData(v.Data)
		if err != nil {
			return lt, err
		}
		addr, err := dec.Decode(recipient)
		if err != nil {
			return lt, fmt.Errorf("recipient address: %w", err)
		}
		lt.Recipient, lt.RawAmount = addr, amount
	case v.ToAddress != "":
		// some indexers hand back the already decoded transfer arguments
		addr, err := displayAddress(dec, v.ToAddress)
		if err != nil {
			return lt, fmt.Errorf("recipient address: %w", err)
		}
		amount, ok := new(big.Int).SetString(v.Amount.String(), 10)
		if !ok || amount.Sign() < 0 {
			return lt, fmt.Errorf("%w: amount %q", ErrMalformedCallData, v.Amount)
		}
		lt.Recipient, lt.RawAmount = addr, amount
	default:
		return lt, ErrMalformedCallData
	}
	return lt, nil
}

// decodeTransferData splits selector(4) | address word(32) | uint256 word(32).
func decodeTransferData(data string) (string, *big.Int, error) {
	data = strings.TrimPrefix(strings.TrimPrefix(data, "0x"), "0X")
	if len(data) < 8 {
		return "", nil, ErrMalformedCallData
	}
	if !strings.EqualFold(data[:8], transferSelector) {
		return "", nil, ErrNotTransferCall
	}
	args, err := hexutil.Decode("0x" + data[8:])
	if err != nil || len(args) < 64 {
		return "", nil, fmt.Errorf("%w: %d argument bytes", ErrMalformedCallData, len(args))
	}
	if new(big.Int).SetBytes(args[:12]).Sign() != 0 {
		return "", nil, fmt.Errorf("%w: dirty address word", ErrMalformedCallData)
	}
	to := common.BytesToAddress(args[:32])
	amount := common.BytesToHash(args[32:64]).Big()
	return hex.EncodeToString(to.Bytes()), amount, nil
}

// displayAddress accepts either the hex form or an already visible base58 address.
func displayAddress(dec AddressDecoder, s string) (string, error) {
	if _, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil {
		return dec.Decode(s)
	}
	if _, err := wallet.DecodeAddress(s); err != nil {
		return "", err
	}
	return s, nil
}
