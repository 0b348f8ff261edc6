package model

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// AssetMetadata holds the decimal precision of both pooled assets.
type AssetMetadata struct {
	Decimals0 uint8
	Decimals1 uint8
}
