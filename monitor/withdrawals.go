package monitor

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/lightlink-network/ll-rollup-node/database/models"
	"github.com/lightlink-network/ll-rollup-node/derive"
	"github.com/lightlink-network/ll-rollup-node/types"
)

// watchWithdrawals scans new L2 blocks for withdrawal initiation events and
// hands each one to the proof engine's pending set. Proof submission to L1 is a
// downstream component's job, this loop only observes and commits.
func (m *Monitor) watchWithdrawals(ctx context.Context) error {
	start := m.opts.L2StartBlock
	if last, err := m.store.GetLastProcessedBlock(ctx, "l2"); err == nil && last > 0 {
		start = last + 1
	}

	m.logger.Info("starting withdrawal watcher", "startBlock", start)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("shutting down withdrawal watcher")
			return nil
		default:
			latest, err := m.l2.LatestBlockNumber(ctx)
			if err != nil {
				return err
			}

			if latest < start+m.opts.MinBatchSize-1 {
				select {
				case <-ctx.Done():
				case <-time.After(m.opts.L2PollInterval):
				}
				continue
			}

			end := start + m.opts.MaxBatchSize - 1
			if end > latest {
				end = latest
			}

			if err := m.processWithdrawalRange(ctx, start, end); err != nil {
				return err
			}

			if err := m.store.SetLastProcessedBlock(ctx, "l2", end); err != nil {
				return err
			}

			m.logger.Debug("withdrawal batch complete",
				"startBlock", start,
				"endBlock", end,
				"chainHead", latest)

			start = end + 1
		}
	}
}

func (m *Monitor) processWithdrawalRange(ctx context.Context, start, end uint64) error {
	for number := start; number <= end; number++ {
		block, err := m.l2.BlockByNumber(ctx, number)
		if err != nil {
			return err
		}

		for _, tx := range block.Txs {
			if tx.To == nil || *tx.To != m.opts.MessagePasserAddress {
				continue
			}

			receipt, err := m.l2.ReceiptByHash(ctx, tx.Hash)
			if err != nil {
				return err
			}

			for _, log := range receipt.Logs {
				if log.Address != m.opts.MessagePasserAddress || len(log.Topics) == 0 || log.Topics[0] != derive.WithdrawalInitiatedEventABIHash {
					continue
				}

				ev, err := derive.ParseWithdrawalLog(log, tx.From)
				if err != nil {
					m.logger.Warn("skipping invalid withdrawal log",
						"l2Block", number,
						"txHash", tx.Hash.Hex(),
						"error", err)
					continue
				}
				ev.L2BlockNumber = block.Number

				// Dedup by event identity before a nonce is assigned. The
				// withdrawal hash covers the nonce, so hash-based dedup alone
				// would let a replayed event re-enter under a fresh nonce
				// after a restart.
				seen, err := m.store.HasWithdrawalEvent(ctx, tx.Hash.Hex(), log.Index)
				if err != nil {
					return err
				}
				if seen {
					continue
				}

				// The event carries no nonce, the pending set's insertion
				// order assigns one.
				nonce := m.pending.NextNonce()
				withdrawal := ev.ToWithdrawal(nonce)

				hash, err := m.pending.Append(withdrawal)
				if err != nil {
					m.logger.Warn("failed to commit withdrawal",
						"l2Block", number,
						"txHash", tx.Hash.Hex(),
						"error", err)
					continue
				}

				if _, err := m.store.CreateWithdrawal(ctx, models.Withdrawal{
					WithdrawalHash: hash.Hex(),
					Nonce:          withdrawal.Nonce.Uint64(),
					Sender:         withdrawal.Sender.Hex(),
					Target:         withdrawal.Target.Hex(),
					Value:          withdrawal.Value.String(),
					GasLimit:       withdrawal.GasLimit.Uint64(),
					Data:           hex.EncodeToString(withdrawal.Data),
					L2BlockNumber:  block.Number,
					L2TxHash:       tx.Hash.Hex(),
					LogIndex:       log.Index,
					Status:         string(types.WithdrawalProvable),
				}); err != nil {
					return err
				}

				m.logger.Info("withdrawal initiated",
					"withdrawalHash", hash.Hex(),
					"sender", withdrawal.Sender.Hex(),
					"l2Block", block.Number,
					"root", m.pending.Root().Hex())
			}
		}
	}

	return nil
}
