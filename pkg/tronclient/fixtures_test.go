package tronclient

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	testTxID        = "7c2d4206c03a883dd9066d620335dc1be272a8dc733cfa3f6d10308faa37facc"
	walletBase58    = "TLBaRhANQoJFTqre9Nf1mjuwNWjCJeYqUL"
	walletHex       = "4170082243784dcdf3042034e7b044d6d342a91360"
	otherBase58     = "TVjpchRyV9wdpj6kmwqVsBDWY1J8PaFtnb"
	otherHex        = "41d8da6bf26964af9d7eed9e03e53415d37aa96045"
	usdtBase58      = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	usdtHex         = "41a614f803b6fd780986a42c78ec9c7f77e6ded13c"
	fakeTokenHex    = "41e552f6487585c2b58bc2c9bb4492bc1f17132cd0"
	usdtUnitsPerOne = 1_000_000
)

// transferData encodes transfer(address,uint256) for a 21-byte hex recipient.
func transferData(recipientHex string, units int64) string {
	return transferSelector + strings.Repeat("0", 24) + recipientHex[2:] + fmt.Sprintf("%064x", units)
}

func trc20Tx(txID, contractHex, recipientHex string, units int64, ret string) Transaction {
	var tx Transaction
	tx.TxID = txID
	c := Contract{Type: TriggerSmartContract}
	c.Parameter.Value = ContractValue{
		Data:            transferData(recipientHex, units),
		OwnerAddress:    otherHex,
		ContractAddress: contractHex,
	}
	tx.RawData.Contract = []Contract{c}
	tx.Ret = []Ret{{ContractRet: ret}}
	return tx
}

func envelope(txs ...Transaction) string {
	b, _ := json.Marshal(map[string]interface{}{"data": txs, "success": true})
	return string(b)
}
