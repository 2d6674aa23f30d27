package tronclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultIndexerURL = "https://api.trongrid.io"

var (
	ErrTransactionNotFound = errors.New("transaction not found on indexer")
	ErrIndexerStatus       = errors.New("indexer returned an error status")
)

// Transaction is the subset of a TronGrid transaction record the verifier reads.
type Transaction struct {
	TxID    string  `json:"txID"`
	RawData RawData `json:"raw_data"`
	Ret     []Ret   `json:"ret"`
}

type RawData struct {
	Contract  []Contract `json:"contract"`
	Timestamp int64      `json:"timestamp"`
}

type Contract struct {
	Type      string `json:"type"`
	Parameter struct {
		Value   ContractValue `json:"value"`
		TypeURL string        `json:"type_url"`
	} `json:"parameter"`
}

type ContractValue struct {
	Data            string      `json:"data"`
	OwnerAddress    string      `json:"owner_address"`
	ContractAddress string      `json:"contract_address"`
	ToAddress       string      `json:"to_address"`
	Amount          json.Number `json:"amount"`
}

type Ret struct {
	ContractRet string `json:"contractRet"`
}

type TronHTTPClient struct {
	client *resty.Client
}

func NewTronHTTPClient(baseURL, apiKey string, timeout time.Duration) *TronHTTPClient {
	if baseURL == "" {
		baseURL = DefaultIndexerURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("TRON-PRO-API-KEY", apiKey)
	}
	return &TronHTTPClient{client: client}
}

// GetTransaction fetches /v1/transactions/{txid}. The indexer answers either with a
// {"data": [...]} envelope or with the bare transaction object; both are accepted.
func (c *TronHTTPClient) GetTransaction(ctx context.Context, txID string) ([]Transaction, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("txid", txID).
		Get("/v1/transactions/{txid}")
	if err != nil {
		return nil, fmt.Errorf("indexer request failed: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, ErrTransactionNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %d", ErrIndexerStatus, resp.StatusCode())
	}

	var body struct {
		Data []Transaction `json:"data"`
		Transaction
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("failed to parse indexer response: %w", err)
	}
	if len(body.Data) > 0 {
		return body.Data, nil
	}
	if body.TxID != "" || len(body.RawData.Contract) > 0 {
		return []Transaction{body.Transaction}, nil
	}
	return nil, ErrTransactionNotFound
}
