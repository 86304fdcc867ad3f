package models

// Withdrawal is a tracked L2 to L1 withdrawal as observed by the bridge
// monitor. Records are stored in the order their initiation events appeared on
// L2; the proof engine's pending set is rebuilt from that order on restart.
type Withdrawal struct {
	WithdrawalHash string `json:"withdrawal_hash" bson:"withdrawal_hash"`
	Nonce          uint64 `json:"nonce" bson:"nonce"`
	Sender         string `json:"sender" bson:"sender"`
	Target         string `json:"target" bson:"target"`
	Value          string `json:"value" bson:"value"`
	GasLimit       uint64 `json:"gas_limit" bson:"gas_limit"`
	Data           string `json:"data" bson:"data"`
	L2BlockNumber  uint64 `json:"l2_block_number" bson:"l2_block_number"`
	L2TxHash       string `json:"l2_tx_hash" bson:"l2_tx_hash"`
	LogIndex       uint   `json:"log_index" bson:"log_index"`
	Status         string `json:"status" bson:"status"`
}
