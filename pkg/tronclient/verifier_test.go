package tronclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	txs   []Transaction
	err   error
	calls []string
}

func (f *fakeFetcher) GetTransaction(ctx context.Context, txID string) ([]Transaction, error) {
	f.calls = append(f.calls, txID)
	return f.txs, f.err
}

func newTestVerifier(f TransactionFetcher, token string) *Verifier {
	log, _ := test.NewNullLogger()
	return NewVerifier(f, Base58Decoder{}, VerifierConfig{TokenContract: token, Decimals: 6}, log)
}

func usd(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestVerifyConfirmsExactTransfer(t *testing.T) {
	f := &fakeFetcher{txs: []Transaction{trc20Tx(testTxID, usdtHex, walletHex, 50*usdtUnitsPerOne, "SUCCESS")}}
	v := newTestVerifier(f, usdtBase58)

	lt, err := v.Inspect(context.Background(), testTxID, walletBase58, usd(50))
	require.NoError(t, err)
	assert.Equal(t, walletBase58, lt.Recipient)
	assert.Equal(t, usdtBase58, lt.ContractAddress)
	assert.True(t, lt.Amount(6).Equal(usd(50)))
	assert.True(t, v.Verify(context.Background(), testTxID, walletBase58, usd(50)))
	assert.Equal(t, []string{testTxID, testTxID}, f.calls)
}

func TestVerifyAcceptsOverpayment(t *testing.T) {
	f := &fakeFetcher{txs: []Transaction{trc20Tx(testTxID, usdtHex, walletHex, 75*usdtUnitsPerOne, "SUCCESS")}}
	assert.True(t, newTestVerifier(f, "").Verify(context.Background(), testTxID, walletBase58, usd(50)))
}

func TestVerifyRejections(t *testing.T) {
	notTrigger := trc20Tx(testTxID, usdtHex, walletHex, 50*usdtUnitsPerOne, "SUCCESS")
	notTrigger.RawData.Contract[0].Type = "TransferContract"

	approve := trc20Tx(testTxID, usdtHex, walletHex, 50*usdtUnitsPerOne, "SUCCESS")
	approve.RawData.Contract[0].Parameter.Value.Data = "095ea7b3" + approve.RawData.Contract[0].Parameter.Value.Data[8:]

	tests := []struct {
		name string
		txs  []Transaction
		err  error
		want error
	}{
		{"underpaid", []Transaction{trc20Tx(testTxID, usdtHex, walletHex, 40*usdtUnitsPerOne, "SUCCESS")}, nil, ErrUnderpaid},
		{"one unit short", []Transaction{trc20Tx(testTxID, usdtHex, walletHex, 50*usdtUnitsPerOne-1, "SUCCESS")}, nil, ErrUnderpaid},
		{"wrong recipient", []Transaction{trc20Tx(testTxID, usdtHex, otherHex, 500*usdtUnitsPerOne, "SUCCESS")}, nil, ErrRecipientMismatch},
		{"reverted", []Transaction{trc20Tx(testTxID, usdtHex, walletHex, 50*usdtUnitsPerOne, "REVERT")}, nil, ErrReverted},
		{"no ret", []Transaction{func() Transaction { tx := trc20Tx(testTxID, usdtHex, walletHex, 50*usdtUnitsPerOne, ""); tx.Ret = nil; return tx }()}, nil, ErrReverted},
		{"plain value transfer", []Transaction{notTrigger}, nil, ErrNotContractCall},
		{"not a transfer call", []Transaction{approve}, nil, ErrNotTransferCall},
		{"other token", []Transaction{trc20Tx(testTxID, fakeTokenHex, walletHex, 50*usdtUnitsPerOne, "SUCCESS")}, nil, ErrTokenMismatch},
		{"empty result", nil, nil, ErrTransactionNotFound},
		{"two records", []Transaction{trc20Tx(testTxID, usdtHex, walletHex, 50*usdtUnitsPerOne, "SUCCESS"), trc20Tx(testTxID, usdtHex, walletHex, 50*usdtUnitsPerOne, "SUCCESS")}, nil, ErrAmbiguousTransaction},
		{"different txid", []Transaction{trc20Tx("ab"+testTxID[2:], usdtHex, walletHex, 50*usdtUnitsPerOne, "SUCCESS")}, nil, ErrTxIDMismatch},
		{"network failure", nil, errors.New("dial tcp: connection refused"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVerifier(&fakeFetcher{txs: tt.txs, err: tt.err}, usdtBase58)
			_, err := v.Inspect(context.Background(), testTxID, walletBase58, usd(50))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.False(t, v.Verify(context.Background(), testTxID, walletBase58, usd(50)))
		})
	}
}

func TestVerifyRejectsMalformedTxIDWithoutFetching(t *testing.T) {
	f := &fakeFetcher{}
	v := newTestVerifier(f, "")
	for _, id := range []string{"", "tx1", testTxID + "00", "../v1/accounts/" + testTxID[:48]} {
		assert.False(t, v.Verify(context.Background(), id, walletBase58, usd(10)))
	}
	assert.Empty(t, f.calls)
}

type slowFetcher struct{}

func (slowFetcher) GetTransaction(ctx context.Context, txID string) ([]Transaction, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestVerifyTimeoutIsUnconfirmed(t *testing.T) {
	log, hook := test.NewNullLogger()
	v := NewVerifier(slowFetcher{}, nil, VerifierConfig{Decimals: 6, Timeout: 20 * time.Millisecond}, log)

	assert.False(t, v.Verify(context.Background(), testTxID, walletBase58, usd(10)))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.ErrorIs(t, hook.LastEntry().Data[logrus.ErrorKey].(error), context.DeadlineExceeded)
}

func TestDecodeIndexerDecodedArguments(t *testing.T) {
	var tx Transaction
	tx.TxID = testTxID
	c := Contract{Type: TriggerSmartContract}
	c.Parameter.Value = ContractValue{
		ContractAddress: usdtBase58,
		ToAddress:       walletHex[2:],
		Amount:          "12500000",
	}
	tx.RawData.Contract = []Contract{c}
	tx.Ret = []Ret{{ContractRet: "SUCCESS"}}

	lt, err := DecodeLedgerTransaction(tx, Base58Decoder{})
	require.NoError(t, err)
	assert.Equal(t, walletBase58, lt.Recipient)
	assert.Equal(t, usdtBase58, lt.ContractAddress)
	assert.Equal(t, "12.5", lt.Amount(6).String())
}

func TestDecodeMalformedCallData(t *testing.T) {
	tx := trc20Tx(testTxID, usdtHex, walletHex, 1, "SUCCESS")
	tx.RawData.Contract[0].Parameter.Value.Data = transferSelector + "00ff"
	_, err := DecodeLedgerTransaction(tx, Base58Decoder{})
	assert.ErrorIs(t, err, ErrMalformedCallData)

	tx.RawData.Contract[0].Parameter.Value.Data = ""
	_, err = DecodeLedgerTransaction(tx, Base58Decoder{})
	assert.ErrorIs(t, err, ErrMalformedCallData)

	_, err = DecodeLedgerTransaction(Transaction{}, Base58Decoder{})
	assert.ErrorIs(t, err, ErrNoContract)
}
