package indexer

// TxConfirmation is one entry of a batched confirmation lookup.
type TxConfirmation struct {
	TxHash        string `json:"txHash"`
	Confirmed     bool   `json:"confirmed"`
	Confirmations int    `json:"confirmations"`
}

type confirmationsRequest struct {
	TxHashes []string `json:"txHashes"`
}

type confirmationsResponse struct {
	Confirmations []TxConfirmation `json:"confirmations"`
}

// MintedAsset is one token minted by a transaction.
type MintedAsset struct {
	PolicyID  string `json:"policyId"`
	AssetName string `json:"assetName"`
	Quantity  string `json:"quantity"`
}

// TxEvents is the on-chain effect record for a single transaction, as
// reported by the indexer.
type TxEvents struct {
	TxHash      string        `json:"txHash"`
	BlockHeight int64         `json:"blockHeight"`
	Mints       []MintedAsset `json:"mints"`
}
