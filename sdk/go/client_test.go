package execlinesdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitTop3SendsScopeAndBody(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("X-Api-Key")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"date":"2025-03-10","mode":"locked","locked":true,"tasks":[{"id":"t1","title":"Escrever proposta","type":"a"}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "w1")
	c.APIKey = "xl_key"
	res, err := c.CommitTop3(context.Background(), "2025-03-10", []string{"t1"}, "foco")
	require.NoError(t, err)

	assert.Equal(t, "/v0/top3/commit", gotPath)
	assert.Equal(t, "date=2025-03-10&workspace_id=w1", gotQuery)
	assert.Equal(t, "xl_key", gotKey)
	assert.Equal(t, "foco", gotBody["note"])
	assert.True(t, res.Locked)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, "t1", res.Tasks[0].ID)
}

func TestNon2xxIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"error":{"code":"validation_failed","message":"nope"}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	c.BearerToken = "tok"
	_, err := c.Score(context.Background(), "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "validation_failed")
}

func TestBriefingStrictQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		io.WriteString(w, `{"date":"2025-03-10","strictMode":true,"capacity":{"capacity":1020,"isUnrealistic":false}}`)
	}))
	defer srv.Close()

	b, err := New(srv.URL, "").Briefing(context.Background(), "", true)
	require.NoError(t, err)
	assert.Equal(t, "strict=true", gotQuery)
	assert.True(t, b.StrictMode)
	assert.Equal(t, 1020, b.Capacity.Capacity)
}
