// Package plaid wraps the Plaid SDK for the transactions endpoints.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	plaidsdk "github.com/plaid/plaid-go/v29/plaid"
)

// pageSize is the largest count /transactions/get accepts.
const pageSize = 500

var hosts = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

// HostFor maps an environment name to its API host. Unknown names use sandbox.
func HostFor(env string) string {
	if h, ok := hosts[strings.ToLower(env)]; ok {
		return h
	}
	return hosts["sandbox"]
}

// ClientConfig holds Plaid API settings.
type ClientConfig struct {
	Environment  string
	ClientID     string
	Secret       string
	CountryCodes []string
	Timeout      time.Duration
	// BaseURL overrides the host derived from Environment.
	BaseURL string
}

// Client talks to the Plaid API through the official SDK.
type Client struct {
	api          *plaidsdk.APIClient
	baseURL      string
	countryCodes []string
}

// NewClient creates a Plaid client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = HostFor(cfg.Environment)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	countries := cfg.CountryCodes
	if len(countries) == 0 {
		countries = []string{"US"}
	}

	conf := plaidsdk.NewConfiguration()
	conf.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	conf.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	conf.UseEnvironment(plaidsdk.Environment(baseURL))
	conf.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:          plaidsdk.NewAPIClient(conf),
		baseURL:      baseURL,
		countryCodes: countries,
	}
}

// Account is an entry of the accounts list of a transactions response.
type Account struct {
	AccountID    string
	Name         string
	OfficialName string
	Mask         string
}

// Item identifies the authorization grant a response belongs to.
type Item struct {
	ItemID        string
	InstitutionID string
}

// TransactionsResponse is the aggregated result of all pages of /transactions/get.
// Transactions stay as raw maps so the normalizer owns their validation.
type TransactionsResponse struct {
	Accounts          []Account
	Transactions      []map[string]interface{}
	Item              Item
	TotalTransactions int
	RequestID         string
}

// Institution is the subset of /institutions/get_by_id used here.
type Institution struct {
	InstitutionID string
	Name          string
}

// GetTransactions fetches every transaction of one access token in the
// inclusive window [start, end], following pagination.
func (c *Client) GetTransactions(ctx context.Context, accessToken string, start, end civil.Date) (*TransactionsResponse, error) {
	req := plaidsdk.NewTransactionsGetRequest(accessToken, start.String(), end.String())
	opts := plaidsdk.NewTransactionsGetRequestOptions()
	opts.SetCount(pageSize)
	opts.SetIncludePersonalFinanceCategory(true)

	var all *TransactionsResponse
	for {
		opts.SetOffset(0)
		if all != nil {
			opts.SetOffset(int32(len(all.Transactions)))
		}
		req.SetOptions(*opts)

		page, httpResp, err := c.api.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*req).Execute()
		if err != nil {
			return nil, fmt.Errorf("GetTransactions: %w", apiError(httpResp, err))
		}

		raw, err := rawTransactions(page.GetTransactions())
		if err != nil {
			return nil, fmt.Errorf("GetTransactions: %w", err)
		}
		if all == nil {
			all = &TransactionsResponse{
				Accounts:          accountsOf(page.GetAccounts()),
				Item:              itemOf(page.GetItem()),
				TotalTransactions: int(page.GetTotalTransactions()),
				RequestID:         page.GetRequestId(),
			}
		}
		all.Transactions = append(all.Transactions, raw...)

		if len(raw) == 0 || len(all.Transactions) >= int(page.GetTotalTransactions()) {
			break
		}
	}
	return all, nil
}

// GetInstitution looks up an institution by id.
func (c *Client) GetInstitution(ctx context.Context, institutionID string) (*Institution, error) {
	countries := make([]plaidsdk.CountryCode, 0, len(c.countryCodes))
	for _, code := range c.countryCodes {
		countries = append(countries, plaidsdk.CountryCode(strings.ToUpper(code)))
	}
	req := plaidsdk.NewInstitutionsGetByIdRequest(institutionID, countries)

	resp, httpResp, err := c.api.PlaidApi.InstitutionsGetById(ctx).InstitutionsGetByIdRequest(*req).Execute()
	if err != nil {
		return nil, fmt.Errorf("GetInstitution: %w", apiError(httpResp, err))
	}
	inst := resp.GetInstitution()
	return &Institution{
		InstitutionID: inst.GetInstitutionId(),
		Name:          inst.GetName(),
	}, nil
}

// rawTransactions re-encodes SDK transactions as generic maps. Numbers are
// kept as json.Number so amounts reach decimal without float rounding.
func rawTransactions(txs []plaidsdk.Transaction) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(txs))
	for i := range txs {
		data, err := json.Marshal(txs[i])
		if err != nil {
			return nil, fmt.Errorf("encoding transaction %d: %w", i, err)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var m map[string]interface{}
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("decoding transaction %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func accountsOf(accounts []plaidsdk.AccountBase) []Account {
	out := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, Account{
			AccountID:    a.GetAccountId(),
			Name:         a.GetName(),
			OfficialName: a.GetOfficialName(),
			Mask:         a.GetMask(),
		})
	}
	return out
}

func itemOf(item plaidsdk.Item) Item {
	return Item{
		ItemID:        item.GetItemId(),
		InstitutionID: item.GetInstitutionId(),
	}
}
