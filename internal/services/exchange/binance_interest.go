package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/fireflysync/fireflysync/internal/domain"
)

// The lending interest history endpoint is not covered by the SDK, so the
// client signs that one request itself.
const binanceLendingInterestURL = "https://api.binance.com/sapi/v1/lending/union/interestHistory"

var binanceLendingTypes = []struct {
	lendingType string
	due         domain.InterestDue
}{
	{lendingType: "DAILY", due: domain.InterestDueDaily},
	{lendingType: "ACTIVITY", due: domain.InterestDueActive},
	{lendingType: "CUSTOMIZED_FIXED", due: domain.InterestDueFixed},
}

type binanceInterestEntry struct {
	Asset       string `json:"asset"`
	Interest    string `json:"interest"`
	LendingType string `json:"lendingType"`
	Time        int64  `json:"time"`
}

func (b *Binance) LendingInterest(ctx context.Context, from, to int64) ([]domain.Interest, error) {
	var result []domain.Interest
	for _, lt := range binanceLendingTypes {
		entries, err := b.lendingInterestHistory(ctx, lt.lendingType, from, to)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			result = append(result, interestFromBinance(e, lt.due))
		}
	}
	return result, nil
}

func (b *Binance) lendingInterestHistory(ctx context.Context, lendingType string, from, to int64) ([]binanceInterestEntry, error) {
	q := url.Values{}
	q.Set("lendingType", lendingType)
	q.Set("startTime", strconv.FormatInt(from, 10))
	q.Set("endTime", strconv.FormatInt(to, 10))
	q.Set("size", "100")
	q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	payload := q.Encode()
	mac := hmac.New(sha256.New, []byte(b.creds.Secret))
	mac.Write([]byte(payload))
	signed := fmt.Sprintf("%s&signature=%s", payload, hex.EncodeToString(mac.Sum(nil)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, binanceLendingInterestURL+"?"+signed, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build lending interest request")
	}
	req.Header.Set("X-MBX-APIKEY", b.creds.Key)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch lending interest history")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read lending interest response")
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusServiceUnavailable && strings.Contains(string(body), "under maintenance") {
			return nil, domain.ErrMaintenance
		}
		return nil, errors.Errorf("lending interest history: status %d: %s", resp.StatusCode, body)
	}

	var entries []binanceInterestEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, errors.Wrap(err, "decode lending interest history")
	}
	return entries, nil
}

func interestFromBinance(e binanceInterestEntry, due domain.InterestDue) domain.Interest {
	return domain.Interest{
		Type:     domain.InterestTypeLending,
		Amount:   parseDecimal(e.Interest),
		Currency: domain.NormalizeSymbol(e.Asset),
		Date:     time.UnixMilli(e.Time),
		Due:      due,
	}
}
