package monitor

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lightlink-network/ll-rollup-node/database/models"
	"github.com/lightlink-network/ll-rollup-node/derive"
	"github.com/lightlink-network/ll-rollup-node/types"
)

// watchDeposits scans new L1 blocks in batches, records every deposit event and
// spawns a bounded confirmation wait for each newly discovered deposit. The
// watermark only advances once the whole batch has been recorded.
func (m *Monitor) watchDeposits(ctx context.Context) error {
	start := m.opts.L1StartBlock
	if last, err := m.store.GetLastProcessedBlock(ctx, "l1"); err == nil && last > 0 {
		start = last + 1
	}

	m.logger.Info("starting deposit watcher", "startBlock", start)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("shutting down deposit watcher")
			return nil
		default:
			latest, err := m.l1.LatestBlockNumber(ctx)
			if err != nil {
				return err
			}

			if latest < start+m.opts.MinBatchSize-1 {
				select {
				case <-ctx.Done():
				case <-time.After(m.opts.L1PollInterval):
				}
				continue
			}

			end := start + m.opts.MaxBatchSize - 1
			if end > latest {
				end = latest
			}

			if err := m.processDepositRange(ctx, start, end); err != nil {
				return err
			}

			if err := m.store.SetLastProcessedBlock(ctx, "l1", end); err != nil {
				return err
			}

			m.logger.Debug("deposit batch complete",
				"startBlock", start,
				"endBlock", end,
				"chainHead", latest)

			start = end + 1
		}
	}
}

func (m *Monitor) processDepositRange(ctx context.Context, start, end uint64) error {
	for number := start; number <= end; number++ {
		block, err := m.l1.BlockByNumber(ctx, number)
		if err != nil {
			return err
		}

		for _, tx := range block.Txs {
			if tx.To == nil || *tx.To != m.opts.PortalAddress {
				continue
			}

			receipt, err := m.l1.ReceiptByHash(ctx, tx.Hash)
			if err != nil {
				return err
			}

			for _, log := range receipt.Logs {
				if log.Address != m.opts.PortalAddress || len(log.Topics) == 0 || log.Topics[0] != derive.TransactionDepositedEventABIHash {
					continue
				}

				ev, err := derive.ParseDepositLog(log)
				if err != nil {
					// A log the monitor cannot decode is skipped, not fatal:
					// derivation is where malformed logs halt progress.
					m.logger.Warn("skipping invalid deposit log",
						"l1Block", number,
						"txHash", tx.Hash.Hex(),
						"error", err)
					continue
				}
				ev.L1BlockHash = block.Hash
				ev.L1BlockNumber = block.Number

				sourceHash := types.UserDepositSourceHash(block.Hash, uint64(ev.LogIndex))
				created, err := m.store.CreateDeposit(ctx, models.Deposit{
					SourceHash:    sourceHash.Hex(),
					From:          ev.From.Hex(),
					To:            ev.To.Hex(),
					Value:         ev.Amount.String(),
					GasLimit:      ev.GasLimit,
					Data:          hex.EncodeToString(ev.Data),
					L1BlockNumber: block.Number,
					L1TxHash:      tx.Hash.Hex(),
					Status:        string(types.DepositPending),
				})
				if err != nil {
					return err
				}

				// Only freshly discovered deposits get a confirmation wait,
				// re-processed ranges never re-alert. Deposits still pending
				// from a previous process are picked up on startup by
				// resumeDepositConfirmations instead.
				if created {
					go m.confirmDeposit(ctx, sourceHash, ev)
				}
			}
		}
	}

	return nil
}

// resumeDepositConfirmations restarts the bounded confirmation wait for every
// deposit the store still has pending. A deposit recorded before a crash would
// otherwise never confirm nor alert, its confirmation goroutine died with the
// process.
func (m *Monitor) resumeDepositConfirmations(ctx context.Context) error {
	records, err := m.store.GetDepositsByStatus(ctx, string(types.DepositPending))
	if err != nil {
		return err
	}

	for _, rec := range records {
		value, ok := new(big.Int).SetString(rec.Value, 10)
		if !ok {
			return fmt.Errorf("invalid stored deposit value %q", rec.Value)
		}
		data, err := hex.DecodeString(rec.Data)
		if err != nil {
			return fmt.Errorf("invalid stored deposit data: %w", err)
		}

		ev := &derive.DepositEvent{
			From:          common.HexToAddress(rec.From),
			To:            common.HexToAddress(rec.To),
			Amount:        value,
			GasLimit:      rec.GasLimit,
			Data:          data,
			L1BlockNumber: rec.L1BlockNumber,
			L1TxHash:      common.HexToHash(rec.L1TxHash),
		}
		go m.confirmDeposit(ctx, common.HexToHash(rec.SourceHash), ev)
	}

	if len(records) > 0 {
		m.logger.Info("resumed deposit confirmations", "count", len(records))
	}

	return nil
}

// confirmDeposit polls L2 until a deposit transaction matching the observed L1
// event appears or the timeout budget is exhausted. The contract is "poll until
// match or deadline, report which occurred": a match confirms the deposit, a
// lapse raises DepositNotFoundOnL2 exactly once.
func (m *Monitor) confirmDeposit(ctx context.Context, sourceHash common.Hash, ev *derive.DepositEvent) {
	deadline := time.Now().Add(m.opts.ConfirmTimeout)

	var searched uint64
	if latest, err := m.l2.LatestBlockNumber(ctx); err == nil && latest > m.opts.ConfirmLookback {
		searched = latest - m.opts.ConfirmLookback
	}

	ticker := time.NewTicker(m.opts.ConfirmPollInterval)
	defer ticker.Stop()

	for {
		if l2TxHash, found := m.findDepositOnL2(ctx, ev, &searched); found {
			if err := m.store.UpdateDepositStatus(ctx, sourceHash.Hex(), string(types.DepositConfirmed), l2TxHash); err != nil {
				m.logger.Error("failed to mark deposit confirmed", "sourceHash", sourceHash.Hex(), "error", err)
			}
			m.logger.Info("deposit confirmed on l2",
				"sourceHash", sourceHash.Hex(),
				"l2TxHash", l2TxHash)
			return
		}

		if time.Now().After(deadline) {
			m.logger.Error("deposit not found on l2",
				"sourceHash", sourceHash.Hex(),
				"from", ev.From.Hex(),
				"to", ev.To.Hex(),
				"value", ev.Amount.String(),
				"l1Block", ev.L1BlockNumber,
				"error", ErrDepositNotFoundOnL2)
			if err := m.store.UpdateDepositStatus(ctx, sourceHash.Hex(), string(types.DepositNotFound), ""); err != nil {
				m.logger.Error("failed to mark deposit as not found", "sourceHash", sourceHash.Hex(), "error", err)
			}
			select {
			case m.alerts <- DepositAlert{
				SourceHash:    sourceHash,
				From:          ev.From,
				To:            ev.To,
				Value:         ev.Amount,
				L1BlockNumber: ev.L1BlockNumber,
			}:
			default:
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// findDepositOnL2 scans L2 blocks produced since the last scan position for a
// deposit transaction matching the event on (from, to, value, gasLimit, input).
func (m *Monitor) findDepositOnL2(ctx context.Context, ev *derive.DepositEvent, searched *uint64) (string, bool) {
	latest, err := m.l2.LatestBlockNumber(ctx)
	if err != nil {
		return "", false
	}

	for number := *searched + 1; number <= latest; number++ {
		block, err := m.l2.BlockByNumber(ctx, number)
		if err != nil {
			return "", false
		}

		for _, tx := range block.Txs {
			if !tx.IsDeposit {
				continue
			}
			candidate := &types.TxDeposit{
				From:     tx.From,
				To:       tx.To,
				Value:    tx.Value,
				GasLimit: tx.GasLimit,
				Input:    tx.Input,
			}
			if candidate.Matches(ev.From, &ev.To, ev.Amount, ev.GasLimit, ev.Data) {
				return tx.Hash.Hex(), true
			}
		}

		*searched = number
	}

	return "", false
}
