package models

// Deposit is a tracked L1 to L2 deposit as observed by the bridge monitor. The
// source hash uniquely identifies the deposit by its L1 provenance.
type Deposit struct {
	SourceHash    string `json:"source_hash" bson:"source_hash"`
	From          string `json:"from" bson:"from"`
	To            string `json:"to" bson:"to"`
	Value         string `json:"value" bson:"value"`
	GasLimit      uint64 `json:"gas_limit" bson:"gas_limit"`
	Data          string `json:"data" bson:"data"`
	L1BlockNumber uint64 `json:"l1_block_number" bson:"l1_block_number"`
	L1TxHash      string `json:"l1_tx_hash" bson:"l1_tx_hash"`
	L2TxHash      string `json:"l2_tx_hash" bson:"l2_tx_hash"`
	Status        string `json:"status" bson:"status"`
}
