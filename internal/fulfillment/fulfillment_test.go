package fulfillment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req QRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 5000, req.Amount)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"qr_url":"https://cdn.example/qr/1.png"}`))
	}))
	defer srv.Close()

	c := NewQRClient(srv.URL, "tok", time.Second)
	res, err := c.Generate(context.Background(), QRRequest{Phone: "250788123456", Amount: 5000, Reference: "tx"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/qr/1.png", res.ImageURL)
	assert.Equal(t, "*182*1*1*0788123456*5000#", res.USSD)
}

func TestQRClientFailureKeepsUSSD(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	res, err := NewQRClient(srv.URL, "", time.Second).Generate(context.Background(), QRRequest{Phone: "250788123456", Amount: 100})
	assert.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "*182*1*1*0788123456*100#", res.USSD)
	assert.Empty(t, res.ImageURL)
}

func TestQRClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{"qr_url":"late"}`))
	}))
	defer srv.Close()

	_, err := NewQRClient(srv.URL, "", 50*time.Millisecond).Generate(context.Background(), QRRequest{Phone: "1", Amount: 1})
	assert.Error(t, err)
}

func TestQRClientUnconfigured(t *testing.T) {
	res, err := NewQRClient("", "", 0).Generate(context.Background(), QRRequest{Phone: "250788123456", Amount: 1})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "*182*1*1*0788123456*1#", res.USSD)
}

func TestSearchClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pharmacy", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"results":[{"name":"Pharmacie Conseil","phone":"0788000000"},{"name":"B"},{"name":"C"},{"name":"D"}]}`))
	}))
	defer srv.Close()

	got, err := NewSearchClient(srv.URL, time.Second).Search(context.Background(), "pharmacy", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Pharmacie Conseil", got[0].Name)

	_, err = NewSearchClient("", 0).Search(context.Background(), "x", 3)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestContextDeadlineCapsTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := timeoutFor(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d, err := timeoutFor(ctx, time.Second)
	require.NoError(t, err)
	assert.LessOrEqual(t, d, 20*time.Millisecond)
}

func TestLocalPhone(t *testing.T) {
	assert.Equal(t, "0788123456", LocalPhone("250788123456"))
	assert.Equal(t, "0788123456", LocalPhone("+250788123456"))
	assert.Equal(t, "0788123456", LocalPhone("0788123456"))
}
