package ledger

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fireflysync/fireflysync/pkg/retrier"
)

const fireflyDuplicateMarker = "Duplicate of transaction"

// Firefly implements Client against the Firefly III REST API.
type Firefly struct {
	baseURL string
	token   string
	http    *http.Client
	retrier *retrier.Retrier
	log     *zap.Logger
}

// NewFirefly constructs the ledger client. verifyTLS=false disables
// certificate verification for self-hosted instances.
func NewFirefly(host, token string, verifyTLS bool, logger *zap.Logger) *Firefly {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !verifyTLS}

	return &Firefly{
		baseURL: strings.TrimRight(host, "/"),
		token:   token,
		http: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		retrier: retrier.New(retrier.WithMaxRetries(3)),
		log:     logger.With(zap.String("component", "firefly")),
	}
}

type fireflyAccountPage struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Name           string `json:"name"`
			Type           string `json:"type"`
			CurrencyCode   string `json:"currency_code"`
			CurrencySymbol string `json:"currency_symbol"`
			Notes          string `json:"notes"`
		} `json:"attributes"`
	} `json:"data"`
	Meta fireflyMeta `json:"meta"`
}

type fireflyTransactionPage struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Transactions []Split `json:"transactions"`
		} `json:"attributes"`
	} `json:"data"`
	Meta fireflyMeta `json:"meta"`
}

type fireflyMeta struct {
	Pagination struct {
		CurrentPage int `json:"current_page"`
		TotalPages  int `json:"total_pages"`
	} `json:"pagination"`
}

type fireflyStoreRequest struct {
	ErrorIfDuplicateHash bool    `json:"error_if_duplicate_hash"`
	ApplyRules           bool    `json:"apply_rules"`
	Transactions         []Split `json:"transactions"`
}

// Connect checks reachability via the about endpoint.
func (f *Firefly) Connect(ctx context.Context) error {
	var about struct {
		Data struct {
			Version string `json:"version"`
		} `json:"data"`
	}
	if err := f.get(ctx, "/api/v1/about", &about); err != nil {
		return errors.Wrap(err, "connect to ledger")
	}
	f.log.Info("connected to Firefly III", zap.String("version", about.Data.Version))
	return nil
}

func (f *Firefly) Accounts(ctx context.Context, accountType string) ([]Account, error) {
	var accounts []Account
	for page := 1; ; page++ {
		var body fireflyAccountPage
		path := fmt.Sprintf("/api/v1/accounts?page=%d&type=%s", page, accountType)
		if err := f.get(ctx, path, &body); err != nil {
			return nil, errors.Wrap(err, "list ledger accounts")
		}

		for _, a := range body.Data {
			accounts = append(accounts, Account{
				ID:             a.ID,
				Name:           a.Attributes.Name,
				Type:           a.Attributes.Type,
				CurrencyCode:   a.Attributes.CurrencyCode,
				CurrencySymbol: a.Attributes.CurrencySymbol,
				Notes:          a.Attributes.Notes,
			})
		}

		if page >= body.Meta.Pagination.TotalPages {
			return accounts, nil
		}
	}
}

func (f *Firefly) Transactions(ctx context.Context) ([]Transaction, error) {
	var transactions []Transaction
	for page := 1; ; page++ {
		var body fireflyTransactionPage
		path := fmt.Sprintf("/api/v1/transactions?page=%d&type=all", page)
		if err := f.get(ctx, path, &body); err != nil {
			return nil, errors.Wrap(err, "list ledger transactions")
		}

		for _, tx := range body.Data {
			transactions = append(transactions, Transaction{
				ID:     tx.ID,
				Splits: tx.Attributes.Transactions,
			})
		}

		if page >= body.Meta.Pagination.TotalPages {
			return transactions, nil
		}
	}
}

func (f *Firefly) Store(ctx context.Context, split Split) error {
	payload, err := json.Marshal(fireflyStoreRequest{
		ErrorIfDuplicateHash: true,
		ApplyRules:           false,
		Transactions:         []Split{split},
	})
	if err != nil {
		return errors.Wrap(err, "encode transaction")
	}

	return f.retrier.Do(ctx, func(ctx context.Context) error {
		status, body, err := f.do(ctx, http.MethodPost, "/api/v1/transactions", payload)
		if err != nil {
			return err
		}
		switch {
		case status >= 200 && status < 300:
			return nil
		case status == http.StatusUnprocessableEntity && strings.Contains(string(body), fireflyDuplicateMarker):
			return &retrier.Permanent{Err: ErrDuplicate}
		case status >= 400 && status < 500:
			return &retrier.Permanent{Err: errors.Errorf("store transaction: status %d: %s", status, body)}
		default:
			return errors.Errorf("store transaction: status %d", status)
		}
	})
}

func (f *Firefly) Delete(ctx context.Context, id string) error {
	return f.retrier.Do(ctx, func(ctx context.Context) error {
		status, body, err := f.do(ctx, http.MethodDelete, "/api/v1/transactions/"+id, nil)
		if err != nil {
			return err
		}
		if status >= 200 && status < 300 {
			return nil
		}
		if status >= 400 && status < 500 {
			return &retrier.Permanent{Err: errors.Errorf("delete transaction %s: status %d: %s", id, status, body)}
		}
		return errors.Errorf("delete transaction %s: status %d", id, status)
	})
}

func (f *Firefly) get(ctx context.Context, path string, out any) error {
	return f.retrier.Do(ctx, func(ctx context.Context) error {
		status, body, err := f.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			err := errors.Errorf("GET %s: status %d", path, status)
			if status >= 400 && status < 500 {
				return &retrier.Permanent{Err: err}
			}
			return err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return &retrier.Permanent{Err: errors.Wrapf(err, "decode response of GET %s", path)}
		}
		return nil
	})
}

func (f *Firefly) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, reader)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Trace-Id", uuid.New().String())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "read response of %s %s", method, path)
	}
	return resp.StatusCode, body, nil
}
