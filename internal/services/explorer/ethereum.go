package explorer

import (
	"context"
	"math/big"
	"regexp"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ethereumKeyPattern = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)

// Ethereum resolves transactions through a JSON-RPC node. Ledger account
// notes carry the account address directly; there is nothing to derive.
type Ethereum struct {
	eth *ethclient.Client
	log *zap.Logger

	chainIDOnce sync.Once
	chainID     *big.Int
	chainIDErr  error
}

func NewEthereum(rpcURL string, logger *zap.Logger) (*Ethereum, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "dial ethereum rpc")
	}
	return &Ethereum{
		eth: client,
		log: logger.With(zap.String("chain", "ethereum")),
	}, nil
}

func (e *Ethereum) CurrencyCode() string {
	return "ETH"
}

func (e *Ethereum) AccountTag() string {
	return "eth-blockchain"
}

func (e *Ethereum) KeyPattern() *regexp.Regexp {
	return ethereumKeyPattern
}

// DeriveAddresses returns the address itself: an Ethereum account has a
// single receive address.
func (e *Ethereum) DeriveAddresses(_ context.Context, key string) ([]string, error) {
	return []string{strings.ToLower(key)}, nil
}

func (e *Ethereum) Transaction(ctx context.Context, id string) (ChainTransaction, error) {
	tx, pending, err := e.eth.TransactionByHash(ctx, common.HexToHash(id))
	if err != nil {
		return ChainTransaction{}, errors.Wrapf(err, "fetch transaction %s", id)
	}
	if pending {
		// not yet mined; the reconciler will try again next pass
		return ChainTransaction{}, nil
	}

	chainID, err := e.getChainID(ctx)
	if err != nil {
		return ChainTransaction{}, err
	}

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return ChainTransaction{}, errors.Wrapf(err, "recover sender of %s", id)
	}

	result := ChainTransaction{
		Inputs: []string{strings.ToLower(sender.Hex())},
	}
	if to := tx.To(); to != nil {
		result.Outputs = []string{strings.ToLower(to.Hex())}
	}
	return result, nil
}

func (e *Ethereum) getChainID(ctx context.Context) (*big.Int, error) {
	e.chainIDOnce.Do(func() {
		e.chainID, e.chainIDErr = e.eth.ChainID(ctx)
	})
	if e.chainIDErr != nil {
		return nil, errors.Wrap(e.chainIDErr, "fetch chain id")
	}
	return e.chainID, nil
}
