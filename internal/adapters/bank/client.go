// Package bank implements the outbound HTTP client for the bank transaction
// API. All failures are classified into the apperrors retry taxonomy and
// every call is recorded as an api log row.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	"github.com/TallySync/tally_sync_app/internal/core/domain"
	"github.com/TallySync/tally_sync_app/internal/core/ports"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultTimeout = 15 * time.Second

// Client talks to the bank transaction API over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	apiLogRepo portsrepo.ApiLogWriter
}

var _ ports.BankAPIClient = (*Client)(nil)

// NewClient creates a bank API client. The api log repository may not be nil;
// call recording is part of the client's contract, not an optional extra.
func NewClient(baseURL string, token string, apiLogRepo portsrepo.ApiLogWriter) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		apiLogRepo: apiLogRepo,
	}
}

// relationshipRef is the JSON:API style resource reference the bank API
// expects in relationship payloads.
type relationshipRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type categoryUpdateBody struct {
	Data *relationshipRef `json:"data"`
}

type tagsUpdateBody struct {
	Data []relationshipRef `json:"data"`
}

// PushFieldUpdate pushes the recorded category/tags values for one
// transaction upstream. Category updates replace the remote category (nil
// clears it); tag updates add the given tags, which matches the local model
// where tags only accumulate.
func (c *Client) PushFieldUpdate(ctx context.Context, externalID string, field domain.SyncField, category *string, tags []string) error {
	if field == domain.FieldCategory || field == domain.FieldBoth {
		if err := c.pushCategory(ctx, externalID, category); err != nil {
			return err
		}
	}
	if field == domain.FieldTags || field == domain.FieldBoth {
		if err := c.pushTags(ctx, externalID, tags); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) pushCategory(ctx context.Context, externalID string, category *string) error {
	body := categoryUpdateBody{}
	if category != nil {
		body.Data = &relationshipRef{Type: "categories", ID: *category}
	}
	endpoint := fmt.Sprintf("/transactions/%s/relationships/category", externalID)
	_, err := c.do(ctx, http.MethodPatch, endpoint, body)
	return err
}

func (c *Client) pushTags(ctx context.Context, externalID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	body := tagsUpdateBody{Data: make([]relationshipRef, 0, len(tags))}
	for _, tag := range tags {
		body.Data = append(body.Data, relationshipRef{Type: "tags", ID: tag})
	}
	endpoint := fmt.Sprintf("/transactions/%s/relationships/tags", externalID)
	_, err := c.do(ctx, http.MethodPost, endpoint, body)
	return err
}

// fetchResponse mirrors the subset of the bank's transaction resource this
// system reads.
type fetchResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Description string `json:"description"`
			Status      string `json:"status"`
			Amount      struct {
				Value string `json:"value"`
			} `json:"amount"`
			CreatedAt time.Time `json:"createdAt"`
		} `json:"attributes"`
		Relationships struct {
			Category struct {
				Data *relationshipRef `json:"data"`
			} `json:"category"`
			Tags struct {
				Data []relationshipRef `json:"data"`
			} `json:"tags"`
		} `json:"relationships"`
	} `json:"data"`
}

// FetchTransaction retrieves the authoritative remote snapshot. A remote 404
// surfaces as apperrors.ErrNotFound so the reconciler can treat a vanished
// transaction distinctly from a push failure.
func (c *Client) FetchTransaction(ctx context.Context, externalID string) (*ports.BankTransactionSnapshot, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/transactions/"+externalID, nil)
	if err != nil {
		return nil, err
	}

	var decoded fetchResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode bank transaction %s: %w", externalID, err)
	}
	amount, err := decimal.NewFromString(decoded.Data.Attributes.Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bank transaction amount %q: %w", decoded.Data.Attributes.Amount.Value, err)
	}

	snapshot := &ports.BankTransactionSnapshot{
		ExternalID:  decoded.Data.ID,
		Description: decoded.Data.Attributes.Description,
		Amount:      amount,
		Settlement:  domain.SettlementStatus(decoded.Data.Attributes.Status),
		OccurredAt:  decoded.Data.Attributes.CreatedAt,
	}
	if ref := decoded.Data.Relationships.Category.Data; ref != nil {
		category := ref.ID
		snapshot.Category = &category
	}
	for _, ref := range decoded.Data.Relationships.Tags.Data {
		snapshot.Tags = append(snapshot.Tags, ref.ID)
	}
	return snapshot, nil
}

// do performs one HTTP call, records it in the api log and classifies the
// outcome into the retry taxonomy.
func (c *Client) do(ctx context.Context, method string, endpoint string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build bank API request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		c.recordCall(ctx, method, endpoint, 0, latency, false, err)
		return nil, fmt.Errorf("bank API request failed: %w: %w", apperrors.ErrTransient, err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)

	classified := classifyStatus(resp.StatusCode)
	c.recordCall(ctx, method, endpoint, resp.StatusCode, latency, resp.StatusCode == http.StatusTooManyRequests, classified)
	if classified != nil {
		return nil, fmt.Errorf("bank API %s %s returned %d: %w", method, endpoint, resp.StatusCode, classified)
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read bank API response: %w: %w", apperrors.ErrTransient, readErr)
	}
	return respBody, nil
}

func classifyStatus(statusCode int) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusTooManyRequests:
		return apperrors.ErrRateLimited
	case statusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	case statusCode >= 500:
		return apperrors.ErrTransient
	default:
		return apperrors.ErrPermanent
	}
}

// recordCall appends the api log row. Logging failures are swallowed: the
// diagnostic trail must never turn a successful push into an error.
func (c *Client) recordCall(ctx context.Context, method string, endpoint string, statusCode int, latency time.Duration, rateLimited bool, callErr error) {
	entry := domain.ApiLog{
		LogID:       uuid.NewString(),
		Endpoint:    endpoint,
		Method:      method,
		StatusCode:  statusCode,
		LatencyMs:   latency.Milliseconds(),
		RateLimited: rateLimited,
		CreatedAt:   time.Now().UTC(),
	}
	if callErr != nil {
		msg := callErr.Error()
		entry.Error = &msg
	}
	_ = c.apiLogRepo.AppendLog(ctx, entry)
}
