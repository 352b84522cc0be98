package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// extended public keys as kept in ledger account notes.
var bitcoinKeyPattern = regexp.MustCompile(`(?:xpub|ypub|zpub)[1-9A-HJ-NP-Za-km-z]{79,120}`)

// Bitcoin resolves addresses and transactions through a blockbook-compatible
// HTTP API.
type Bitcoin struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewBitcoin(baseURL string, logger *zap.Logger) *Bitcoin {
	return &Bitcoin{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logger.With(zap.String("chain", "bitcoin")),
	}
}

func (b *Bitcoin) CurrencyCode() string {
	return "BTC"
}

func (b *Bitcoin) AccountTag() string {
	return "btc-blockchain"
}

func (b *Bitcoin) KeyPattern() *regexp.Regexp {
	return bitcoinKeyPattern
}

type blockbookXpub struct {
	Tokens []struct {
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"tokens"`
}

type blockbookTx struct {
	Vin []struct {
		Addresses []string `json:"addresses"`
	} `json:"vin"`
	Vout []struct {
		Addresses []string `json:"addresses"`
	} `json:"vout"`
}

// DeriveAddresses expands an extended public key into its used receive
// addresses.
func (b *Bitcoin) DeriveAddresses(ctx context.Context, key string) ([]string, error) {
	var body blockbookXpub
	path := fmt.Sprintf("/api/v2/xpub/%s?tokens=used", key)
	if err := b.get(ctx, path, &body); err != nil {
		return nil, errors.Wrap(err, "derive addresses from xpub")
	}

	addresses := make([]string, 0, len(body.Tokens))
	for _, token := range body.Tokens {
		if token.Type == "XPUBAddress" {
			addresses = append(addresses, token.Name)
		}
	}
	b.log.Debug("derived addresses", zap.Int("count", len(addresses)))
	return addresses, nil
}

func (b *Bitcoin) Transaction(ctx context.Context, id string) (ChainTransaction, error) {
	var body blockbookTx
	if err := b.get(ctx, "/api/v2/tx/"+id, &body); err != nil {
		return ChainTransaction{}, errors.Wrapf(err, "fetch transaction %s", id)
	}

	var tx ChainTransaction
	for _, vin := range body.Vin {
		tx.Inputs = append(tx.Inputs, vin.Addresses...)
	}
	for _, vout := range body.Vout {
		tx.Outputs = append(tx.Outputs, vout.Addresses...)
	}
	return tx, nil
}

func (b *Bitcoin) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}
