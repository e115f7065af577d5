package httpapi_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/hlc"
	"github.com/gnosisguild/enclave-sub005/pkg/httpapi"
)

func seal(p events.Payload, seq uint64) events.Event {
	u := events.Unsequenced{Payload: p}
	return events.Seal(u, u.Id(), seq, hlc.Timestamp{Wall: seq})
}

func testHistory() []events.Event {
	a := events.E3Requested{Seed: events.Seed{1}, ThresholdM: 2, ThresholdN: 3, Params: []byte("p")}
	a.Id = events.E3id{ChainID: 1, ID: "x"}
	b := events.E3Requested{Seed: events.Seed{2}, ThresholdM: 2, ThresholdN: 3, Params: []byte("p")}
	b.Id = events.E3id{ChainID: 2, ID: "y"}
	return []events.Event{seal(a, 1), seal(b, 2)}
}

func newServer(history func() []events.Event) *httptest.Server {
	s := httpapi.New(httpapi.Config{
		Log:     elog.DefaultLogger(),
		Health:  func() httpapi.Health { return httpapi.Health{Status: "ok", LastSeq: 7, Armed: true} },
		History: history,
	})
	return httptest.NewServer(s.Handler())
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newServer(testHistory)
	defer ts.Close()

	code, body := get(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"status":"ok"`)
	require.Contains(t, body, `"last_seq":7`)
}

func TestHistoryFiltersByCeremony(t *testing.T) {
	ts := newServer(testHistory)
	defer ts.Close()

	code, body := get(t, ts.URL+"/history/1/x")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"e3_id":"1:x"`)
	require.NotContains(t, body, `"e3_id":"2:y"`)

	code, body = get(t, ts.URL+"/history")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, strings.Count(body, `"kind":"E3Requested"`))
}

func TestHistoryDisabledWhenCaptureOff(t *testing.T) {
	ts := newServer(nil)
	defer ts.Close()

	code, _ := get(t, ts.URL+"/history")
	require.Equal(t, http.StatusNotFound, code)
}

func TestHistoryRejectsBadChainID(t *testing.T) {
	ts := newServer(testHistory)
	defer ts.Close()

	code, _ := get(t, ts.URL+"/history/notanumber/x")
	require.Equal(t, http.StatusBadRequest, code)
}
