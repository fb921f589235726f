package ethrequest

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/anky/otc-indexer/internal/observability"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

const (
	ETHChainID          = "eth_chainId"
	ETHGetBlockByNumber = "eth_getBlockByNumber"
	ETHGetLogs          = "eth_getLogs"
)

// EthBlock is the part of a block we read. Fetching only the header fields
// avoids decoding transaction types unknown to this client (op-stack deposits).
type EthBlock struct {
	Number    string `json:"number"`
	Timestamp string `json:"timestamp"`
}

type EthService struct {
	rpc     *rpc.Client
	client  *ethclient.Client
	limiter *rate.Limiter
	metrics *observability.Metrics
}

// NewEthService dials an http(s) or ws(s) endpoint. rps limits the calls per
// second, 0 disables the limit.
func NewEthService(ctx context.Context, endpoint string, rps float64, metrics *observability.Metrics) (*EthService, error) {
	rpc, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}

	return &EthService{
		rpc:     rpc,
		client:  ethclient.NewClient(rpc),
		limiter: rate.NewLimiter(limit, burst),
		metrics: metrics,
	}, nil
}

func (e *EthService) Close() {
	e.client.Close()
}

// call waits for the limiter and records the latency of fn under method.
func (e *EthService) call(ctx context.Context, method string, fn func() error) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	err := fn()
	e.metrics.ObserveRPC(method, time.Since(start).Seconds())

	return err
}

func (e *EthService) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	err := e.call(ctx, ETHChainID, func() error {
		return e.rpc.CallContext(ctx, &id, ETHChainID)
	})
	if err != nil {
		return nil, err
	}

	return id.ToInt(), nil
}

func (e *EthService) block(ctx context.Context, number string) (*EthBlock, error) {
	var blk *EthBlock
	err := e.call(ctx, ETHGetBlockByNumber, func() error {
		return e.rpc.CallContext(ctx, &blk, ETHGetBlockByNumber, number, false)
	})
	if err != nil {
		return nil, err
	}
	if blk == nil {
		return nil, ethereum.NotFound
	}

	return blk, nil
}

func (e *EthService) LatestBlock(ctx context.Context) (*big.Int, error) {
	blk, err := e.block(ctx, "latest")
	if err != nil {
		return nil, err
	}

	return hexutil.DecodeBig(blk.Number)
}

// BlockTime returns the timestamp of the block at the given number
func (e *EthService) BlockTime(ctx context.Context, number *big.Int) (uint64, error) {
	if number == nil || number.Sign() < 0 {
		return 0, errors.New("invalid block number")
	}

	blk, err := e.block(ctx, hexutil.EncodeBig(number))
	if err != nil {
		return 0, err
	}

	return hexutil.DecodeUint64(blk.Timestamp)
}

func (e *EthService) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := e.call(ctx, ETHGetLogs, func() error {
		var err error
		logs, err = e.client.FilterLogs(ctx, q)
		return err
	})

	return logs, err
}
