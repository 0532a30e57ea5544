package bank_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/TallySync/tally_sync_app/internal/adapters/bank"
	"github.com/TallySync/tally_sync_app/internal/apperrors"
	"github.com/TallySync/tally_sync_app/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogRepo captures appended api log rows for assertions.
type recordingLogRepo struct {
	mu   sync.Mutex
	logs []domain.ApiLog
}

func (r *recordingLogRepo) AppendLog(_ context.Context, log domain.ApiLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *recordingLogRepo) entries() []domain.ApiLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ApiLog{}, r.logs...)
}

func TestPushFieldUpdate_Category(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		gotBody = string(buf)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	logs := &recordingLogRepo{}
	client := bank.NewClient(server.URL, "test-token", logs)

	category := "internet"
	err := client.PushFieldUpdate(context.Background(), "txn-ext-1", domain.FieldCategory, &category, nil)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/transactions/txn-ext-1/relationships/category", gotPath)
	assert.JSONEq(t, `{"data":{"type":"categories","id":"internet"}}`, gotBody)

	entries := logs.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, http.StatusNoContent, entries[0].StatusCode)
	assert.False(t, entries[0].RateLimited)
	assert.Nil(t, entries[0].Error)
}

func TestPushFieldUpdate_BothFieldsMakeTwoCalls(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := bank.NewClient(server.URL, "test-token", &recordingLogRepo{})

	category := "utilities"
	err := client.PushFieldUpdate(context.Background(), "txn-ext-2", domain.FieldBoth, &category, []string{"home", "recurring"})
	require.NoError(t, err)

	require.Len(t, paths, 2)
	assert.Equal(t, "PATCH /transactions/txn-ext-2/relationships/category", paths[0])
	assert.Equal(t, "POST /transactions/txn-ext-2/relationships/tags", paths[1])
}

func TestPushFieldUpdate_SkipsEmptyTagPush(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := bank.NewClient(server.URL, "test-token", &recordingLogRepo{})

	err := client.PushFieldUpdate(context.Background(), "txn-ext-3", domain.FieldTags, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		wantErr      error
		wantRetry    bool
		wantRateFlag bool
	}{
		{name: "rate limited", statusCode: http.StatusTooManyRequests, wantErr: apperrors.ErrRateLimited, wantRetry: true, wantRateFlag: true},
		{name: "server error", statusCode: http.StatusInternalServerError, wantErr: apperrors.ErrTransient, wantRetry: true},
		{name: "bad gateway", statusCode: http.StatusBadGateway, wantErr: apperrors.ErrTransient, wantRetry: true},
		{name: "unprocessable", statusCode: http.StatusUnprocessableEntity, wantErr: apperrors.ErrPermanent, wantRetry: false},
		{name: "unauthorized", statusCode: http.StatusUnauthorized, wantErr: apperrors.ErrPermanent, wantRetry: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			logs := &recordingLogRepo{}
			client := bank.NewClient(server.URL, "test-token", logs)

			category := "internet"
			err := client.PushFieldUpdate(context.Background(), "txn-ext-4", domain.FieldCategory, &category, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantRetry, apperrors.IsRetryable(err))

			entries := logs.entries()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.statusCode, entries[0].StatusCode)
			assert.Equal(t, tt.wantRateFlag, entries[0].RateLimited)
			require.NotNil(t, entries[0].Error)
		})
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	logs := &recordingLogRepo{}
	client := bank.NewClient(server.URL, "test-token", logs)

	category := "internet"
	err := client.PushFieldUpdate(context.Background(), "txn-ext-5", domain.FieldCategory, &category, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTransient)
	assert.NotErrorIs(t, err, apperrors.ErrRateLimited)

	entries := logs.entries()
	require.Len(t, entries, 1)
	assert.Zero(t, entries[0].StatusCode)
}

func TestFetchTransaction(t *testing.T) {
	payload := `{
		"data": {
			"id": "txn-ext-6",
			"attributes": {
				"description": "NBN CO",
				"status": "SETTLED",
				"amount": {"value": "-65.99"},
				"createdAt": "2025-04-01T10:30:00Z"
			},
			"relationships": {
				"category": {"data": {"type": "categories", "id": "internet"}},
				"tags": {"data": [{"type": "tags", "id": "home"}, {"type": "tags", "id": "recurring"}]}
			}
		}
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/txn-ext-6", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	client := bank.NewClient(server.URL, "test-token", &recordingLogRepo{})

	snapshot, err := client.FetchTransaction(context.Background(), "txn-ext-6")
	require.NoError(t, err)
	assert.Equal(t, "txn-ext-6", snapshot.ExternalID)
	assert.Equal(t, "NBN CO", snapshot.Description)
	assert.Equal(t, "-65.99", snapshot.Amount.StringFixed(2))
	assert.Equal(t, domain.SettlementSettled, snapshot.Settlement)
	require.NotNil(t, snapshot.Category)
	assert.Equal(t, "internet", *snapshot.Category)
	assert.Equal(t, []string{"home", "recurring"}, snapshot.Tags)
}

func TestFetchTransaction_RemoteMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := bank.NewClient(server.URL, "test-token", &recordingLogRepo{})

	_, err := client.FetchTransaction(context.Background(), "txn-gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.False(t, apperrors.IsRetryable(err))
}
