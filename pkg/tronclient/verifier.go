package tronclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrMalformedTxID        = errors.New("malformed transaction id")
	ErrAmbiguousTransaction = errors.New("transaction id resolved to more than one record")
	ErrTxIDMismatch         = errors.New("indexer returned a different transaction")
	ErrTokenMismatch        = errors.New("transfer is not of the accepted token")
	ErrRecipientMismatch    = errors.New("recipient is not the receiving wallet")
	ErrUnderpaid            = errors.New("transferred amount is below the expected amount")
	ErrReverted             = errors.New("transaction did not execute successfully")
)

type TransactionFetcher interface {
	GetTransaction(ctx context.Context, txID string) ([]Transaction, error)
}

type VerifierConfig struct {
	// TokenContract pins the accepted TRC20 contract (base58). Empty accepts any token.
	TokenContract string
	Decimals      int32
	Timeout       time.Duration
}

// Verifier confirms that a txid is a successful TRC20 transfer of at least the
// expected amount to the expected address. It has no side effects.
type Verifier struct {
	fetcher TransactionFetcher
	decoder AddressDecoder
	cfg     VerifierConfig
	log     logrus.FieldLogger
}

func NewVerifier(fetcher TransactionFetcher, decoder AddressDecoder, cfg VerifierConfig, log logrus.FieldLogger) *Verifier {
	if decoder == nil {
		decoder = Base58Decoder{}
	}
	return &Verifier{fetcher: fetcher, decoder: decoder, cfg: cfg, log: log}
}

// Inspect returns nil only when every rule holds, otherwise the first rule that failed
// (or the fetch error). The decoded transaction is returned whenever it was obtained.
func (v *Verifier) Inspect(ctx context.Context, txID, expectedAddress string, expectedAmount decimal.Decimal) (*LedgerTransaction, error) {
	if !ValidTxID(txID) {
		return nil, ErrMalformedTxID
	}
	if v.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.Timeout)
		defer cancel()
	}

	txs, err := v.fetcher.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	switch {
	case len(txs) == 0:
		return nil, ErrTransactionNotFound
	case len(txs) > 1:
		return nil, ErrAmbiguousTransaction
	}
	tx := txs[0]
	if tx.TxID != "" && !strings.EqualFold(tx.TxID, txID) {
		return nil, ErrTxIDMismatch
	}

	lt, err := DecodeLedgerTransaction(tx, v.decoder)
	if err != nil {
		return lt, err
	}
	if v.cfg.TokenContract != "" && lt.ContractAddress != v.cfg.TokenContract {
		return lt, fmt.Errorf("%w: %s", ErrTokenMismatch, lt.ContractAddress)
	}
	if lt.Recipient != expectedAddress {
		return lt, fmt.Errorf("%w: %s", ErrRecipientMismatch, lt.Recipient)
	}
	if paid := lt.Amount(v.cfg.Decimals); paid.LessThan(expectedAmount) {
		return lt, fmt.Errorf("%w: paid %s, expected %s", ErrUnderpaid, paid, expectedAmount)
	}
	if !lt.Success {
		return lt, ErrReverted
	}
	return lt, nil
}

// Verify collapses Inspect into a confirmation flag. false means "not confirmed yet":
// network failures, timeouts and genuinely invalid payments all land here.
func (v *Verifier) Verify(ctx context.Context, txID, expectedAddress string, expectedAmount decimal.Decimal) bool {
	_, err := v.Inspect(ctx, txID, expectedAddress, expectedAmount)
	if err != nil {
		v.log.WithFields(logrus.Fields{
			"txid":            txID,
			"expected_amount": expectedAmount.String(),
		}).WithError(err).Info("TRC20 payment not confirmed")
		return false
	}
	return true
}
