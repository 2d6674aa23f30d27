package tronclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTransactionEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transactions/"+testTxID, r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("TRON-PRO-API-KEY"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(envelope(trc20Tx(testTxID, usdtHex, walletHex, 10*usdtUnitsPerOne, "SUCCESS"))))
	}))
	defer srv.Close()

	txs, err := NewTronHTTPClient(srv.URL, "key", time.Second).GetTransaction(context.Background(), testTxID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, testTxID, txs[0].TxID)
	assert.Equal(t, TriggerSmartContract, txs[0].RawData.Contract[0].Type)
}

func TestGetTransactionBareObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"txID":"` + testTxID + `","raw_data":{"contract":[{"type":"TriggerSmartContract","parameter":{"value":{"data":"` +
			transferData(walletHex, 10) + `","contract_address":"` + usdtHex + `"}}}]},"ret":[{"contractRet":"SUCCESS"}]}`))
	}))
	defer srv.Close()

	txs, err := NewTronHTTPClient(srv.URL, "", time.Second).GetTransaction(context.Background(), testTxID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "SUCCESS", txs[0].Ret[0].ContractRet)
}

func TestGetTransactionEmptyAndErrors(t *testing.T) {
	status := http.StatusOK
	body := `{"data":[],"success":true}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	c := NewTronHTTPClient(srv.URL, "", time.Second)

	_, err := c.GetTransaction(context.Background(), testTxID)
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	status, body = http.StatusServiceUnavailable, `oops`
	_, err = c.GetTransaction(context.Background(), testTxID)
	assert.ErrorIs(t, err, ErrIndexerStatus)

	status, body = http.StatusOK, `{not json`
	_, err = c.GetTransaction(context.Background(), testTxID)
	assert.Error(t, err)
}

func TestVerifierAgainstIndexer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(envelope(trc20Tx(testTxID, usdtHex, walletHex, 50*usdtUnitsPerOne, "SUCCESS"))))
	}))
	defer srv.Close()

	v := newTestVerifier(NewTronHTTPClient(srv.URL, "", time.Second), usdtBase58)
	assert.True(t, v.Verify(context.Background(), testTxID, walletBase58, usd(50)))
	assert.False(t, v.Verify(context.Background(), testTxID, walletBase58, usd(51)))
	assert.False(t, v.Verify(context.Background(), testTxID, otherBase58, usd(50)))
}
