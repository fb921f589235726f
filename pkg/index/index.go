package index

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/anky/otc-indexer/internal/observability"
	"github.com/anky/otc-indexer/internal/sc"
	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// ErrIndexingRecoverable marks an error that the next sync may not hit again
var ErrIndexingRecoverable = errors.New("error indexing recoverable")

const (
	DefaultRate          = 99
	DefaultFinalityDepth = 5

	// consecutive recoverable errors before a warning is sent out
	warnAfter = 10
)

// Applier writes one event, running within in the same transaction.
type Applier interface {
	Apply(ctx context.Context, ev otc.Event, within ...func(otc.Tx) error) error
}

type Config struct {
	Contract      string
	StartBlock    int64
	Rate          int
	FinalityDepth int64
}

type Indexer struct {
	contract   common.Address
	key        string
	startBlock int64
	rate       int64
	finality   int64

	store   otc.Store
	evm     EVMRequester
	applier Applier
	decoder *Decoder
	wm      WebhookMessager

	log     *logrus.Entry
	metrics *observability.Metrics
}

func New(cfg Config, store otc.Store, evm EVMRequester, applier Applier, wm WebhookMessager, log *logrus.Logger, metrics *observability.Metrics) (*Indexer, error) {
	if !common.IsHexAddress(cfg.Contract) {
		return nil, fmt.Errorf("%w: bad contract address %q", otc.ErrInvalidInput, cfg.Contract)
	}

	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.FinalityDepth < 0 {
		cfg.FinalityDepth = 0
	}
	if cfg.StartBlock < 0 {
		cfg.StartBlock = 0
	}

	decoder, err := NewDecoder()
	if err != nil {
		return nil, err
	}

	return &Indexer{
		contract:   common.HexToAddress(cfg.Contract),
		key:        strings.ToLower(cfg.Contract),
		startBlock: cfg.StartBlock,
		rate:       int64(cfg.Rate),
		finality:   cfg.FinalityDepth,
		store:      store,
		evm:        evm,
		applier:    applier,
		decoder:    decoder,
		wm:         wm,
		log:        log.WithField("component", "indexer"),
		metrics:    metrics,
	}, nil
}

// recoverable marks an rpc failure so Background retries on the next tick.
func recoverable(err error) error {
	return fmt.Errorf("%w: %v", ErrIndexingRecoverable, err)
}

// cursor returns the stored cursor, creating a queued one right before the
// start block on first run.
func (i *Indexer) cursor(ctx context.Context) (*otc.Cursor, error) {
	var c *otc.Cursor

	err := i.store.WithTx(ctx, func(tx otc.Tx) error {
		var err error
		c, err = tx.GetCursor(ctx, i.key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, otc.ErrNotFound) {
			return err
		}

		now := time.Now().UTC()
		c = &otc.Cursor{
			Contract:     i.key,
			State:        otc.CursorStateQueued,
			StartBlock:   i.startBlock,
			LastBlock:    i.startBlock - 1,
			LastLogIndex: -1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		return tx.SetCursor(ctx, c)
	})

	return c, err
}

func (i *Indexer) saveCursor(ctx context.Context, c *otc.Cursor) error {
	return i.store.WithTx(ctx, func(tx otc.Tx) error {
		return tx.SetCursor(ctx, c)
	})
}

// Start indexes every finalized block the cursor has not covered yet
func (i *Indexer) Start(ctx context.Context) error {
	latest, err := i.evm.LatestBlock(ctx)
	if err != nil {
		return recoverable(err)
	}
	i.metrics.HeadBlock(latest.Int64())

	target := latest.Int64() - i.finality

	c, err := i.cursor(ctx)
	if err != nil {
		return err
	}

	if c.LastBlock >= target && c.LastLogIndex < 0 {
		if c.State != otc.CursorStateIndexed {
			c.State = otc.CursorStateIndexed
			return i.saveCursor(ctx, c)
		}
		return nil
	}

	return i.Index(ctx, c, target)
}

// Index applies every log of the contract between the cursor and target, in
// windows of rate blocks
func (i *Indexer) Index(ctx context.Context, c *otc.Cursor, target int64) error {
	i.log.Infof("indexing %s from block %d to block %d ...", i.key, c.LastBlock, target)

	c.State = otc.CursorStateIndexing
	err := i.saveCursor(ctx, c)
	if err != nil {
		return err
	}

	// a partially applied block is scanned again, its applied logs are skipped
	from := c.LastBlock
	if c.LastLogIndex < 0 {
		from++
	}

	for from <= target {
		if err := ctx.Err(); err != nil {
			return err
		}

		to := from + i.rate - 1
		if to > target {
			to = target
		}

		logs, err := i.evm.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: big.NewInt(from),
			ToBlock:   big.NewInt(to),
			Addresses: []common.Address{i.contract},
			Topics:    sc.GetOTCTopics(),
		})
		if err != nil {
			return recoverable(err)
		}

		if len(logs) > 0 {
			i.log.Infof("found %d logs between %d and %d ...", len(logs), from, to)
		}

		c, err = i.apply(ctx, c, logs)
		if err != nil {
			return err
		}

		c.Complete(to)
		err = i.saveCursor(ctx, c)
		if err != nil {
			return err
		}
		i.metrics.IndexedBlock(to)

		from = to + 1
	}

	c.State = otc.CursorStateIndexed
	err = i.saveCursor(ctx, c)
	if err != nil {
		return err
	}

	i.log.Info("done")

	return nil
}

// apply projects logs in chain order and returns the advanced cursor. Each
// event and its cursor position are committed together.
func (i *Indexer) apply(ctx context.Context, c *otc.Cursor, logs []types.Log) (*otc.Cursor, error) {
	sort.SliceStable(logs, func(a, b int) bool {
		if logs[a].BlockNumber != logs[b].BlockNumber {
			return logs[a].BlockNumber < logs[b].BlockNumber
		}
		return logs[a].Index < logs[b].Index
	})

	times := map[uint64]uint64{}

	for _, lg := range logs {
		if lg.Removed || c.Covers(lg.BlockNumber, lg.Index) {
			continue
		}

		ts, ok := times[lg.BlockNumber]
		if !ok {
			var err error
			ts, err = i.evm.BlockTime(ctx, new(big.Int).SetUint64(lg.BlockNumber))
			if err != nil {
				return c, recoverable(err)
			}
			times[lg.BlockNumber] = ts
		}

		ev, err := i.decoder.Decode(lg, ts)
		if err != nil {
			return c, err
		}

		next := *c
		next.Advance(lg.BlockNumber, lg.Index)

		err = i.applier.Apply(ctx, ev, func(tx otc.Tx) error {
			return tx.SetCursor(ctx, &next)
		})
		if err != nil {
			return c, err
		}

		c = &next
	}

	return c, nil
}

// Background starts an indexer service in the background
func (i *Indexer) Background(ctx context.Context, syncrate int) error {
	failures := 0

	for {
		err := i.Start(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			// check if the error is recoverable
			if errors.Is(err, ErrIndexingRecoverable) {
				failures++
				i.log.WithError(err).Warn("[background] recoverable error")

				if failures == warnAfter && i.wm != nil {
					i.wm.NotifyWarning(ctx, err)
				}

				// wait a bit
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(250 * time.Millisecond):
				}
				continue
			}
			return err
		}

		failures = 0

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(syncrate) * time.Second):
		}
	}
}
