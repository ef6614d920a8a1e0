package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, sim *Simulator) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	(&Handler{Sim: sim}).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandlerCreateAndStatus(t *testing.T) {
	sim, sched, _ := newSim(t, 0.10)
	srv := serve(t, sim)

	resp, err := http.Post(srv.URL+"/payments/create", "application/json",
		strings.NewReader(`{"payment_id":"pay_h1","order_id":"o1","amount":"12.5"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, "12.50", body["amount"])

	resp, err = http.Get(srv.URL + "/payments/pay_h1/status")
	require.NoError(t, err)
	assert.Equal(t, "PENDING", decode(t, resp)["status"])

	sched.fireAll()
	resp, err = http.Get(srv.URL + "/payments/pay_h1/status")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", decode(t, resp)["status"])

	resp, err = http.Get(srv.URL + "/payments/pay_nope/status")
	require.NoError(t, err)
	assert.Equal(t, "NOT_FOUND", decode(t, resp)["status"])

	resp, err = http.Get(srv.URL + "/payments/health")
	require.NoError(t, err)
	body = decode(t, resp)
	assert.Equal(t, "UP", body["status"])
	assert.EqualValues(t, 1, body["settlements"])
}

func TestHandlerRejectsBadInput(t *testing.T) {
	sim, _, _ := newSim(t, 0.10)
	srv := serve(t, sim)

	for _, body := range []string{
		`{"payment_id":`,
		`{"payment_id":"p","order_id":"o","amount":"1","extra":true}`,
		`{"payment_id":"p","order_id":"o","amount":"0"}`,
	} {
		resp, err := http.Post(srv.URL+"/payments/create", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestHTTPNotifierPostsCallback(t *testing.T) {
	var got Callback
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := &HTTPNotifier{URL: srv.URL}
	err := n.Notify(testContext(t), Callback{PaymentID: "pay_n", OrderID: "o", Status: StatusFailed})
	require.NoError(t, err)
	assert.Equal(t, "pay_n", got.PaymentID)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestHTTPNotifierNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusConflict)
	}))
	defer srv.Close()

	err := (&HTTPNotifier{URL: srv.URL}).Notify(testContext(t), Callback{PaymentID: "p"})
	assert.ErrorContains(t, err, "409")
}

// testContext mirrors testing.T.Context (Go 1.24+): a context canceled
// when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
