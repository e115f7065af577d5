package netrpc_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/netrpc"
)

func TestRESTHandlerBridgesControlService(t *testing.T) {
	seqr := newSequencer(t)
	shutdown := make(chan struct{}, 1)
	ts := httptest.NewServer(netrpc.RESTHandler(&fakeControl{seqr: seqr, shutdown: shutdown}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v0/ping")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Contains(t, string(body), `"last_seq":0`)

	resp, err = http.Get(ts.URL + "/v0/status")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Contains(t, string(body), `"armed":false`)

	resp, err = http.Post(ts.URL+"/v0/shutdown", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	select {
	case <-shutdown:
	default:
		t.Fatal("shutdown not delivered through the REST bridge")
	}

	// shutdown only answers POST
	resp, err = http.Get(ts.URL + "/v0/shutdown")
	require.NoError(t, err)
	resp.Body.Close()
	require.NotEqual(t, http.StatusOK, resp.StatusCode)
}
