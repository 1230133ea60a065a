package api

import (
	"context"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

const summaryJson = `{
	"id": "abcdef",
	"worker_id": "gupax",
	"uptime": 100,
	"resources": {"memory": {"free": 1}, "load_average": [0.5, 1.25, null], "hardware_concurrency": 8},
	"connection": {"pool": "127.0.0.1:3333", "diff": 100000, "accepted": 10, "rejected": 1},
	"hashrate": {"total": [1000.5, null, 900.0], "highest": 1200.0}
}`

func newServer(t *testing.T, handler http.HandlerFunc) *XmrigApi {
	router := mux.NewRouter()
	router.HandleFunc("/1/summary", handler).Methods(http.MethodGet)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	host, port, err := net.SplitHostPort(server.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return NewXmrigApi(host, p)
}

func TestSummary(t *testing.T) {
	t.Parallel()
	x := newServer(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = writer.Write([]byte(summaryJson))
	})

	summary, err := x.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gupax", summary.WorkerId)
	assert.EqualValues(t, 100000, summary.Connection.Diff)
	assert.EqualValues(t, 10, summary.Connection.Accepted)
	assert.EqualValues(t, 1, summary.Connection.Rejected)

	require.NotNil(t, summary.Hashrate.Total[0])
	assert.Equal(t, 1000.5, *summary.Hashrate.Total[0])
	assert.Nil(t, summary.Hashrate.Total[1])
	require.NotNil(t, summary.Hashrate.Total[2])

	require.NotNil(t, summary.Resources.LoadAverage[1])
	assert.Equal(t, 1.25, *summary.Resources.LoadAverage[1])
	assert.Nil(t, summary.Resources.LoadAverage[2])
}

func TestSummaryTimeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	x := newServer(t, func(writer http.ResponseWriter, request *http.Request) {
		select {
		case <-release:
		case <-request.Context().Done():
		}
	})
	defer close(release)

	start := time.Now()
	_, err := x.Summary(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), Timeout*4)
}

func TestSummaryErrors(t *testing.T) {
	t.Parallel()
	x := newServer(t, func(writer http.ResponseWriter, request *http.Request) {
		_, _ = writer.Write([]byte(`{"worker_id": `))
	})
	_, err := x.Summary(context.Background())
	require.Error(t, err)

	x = newServer(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
	})
	_, err = x.Summary(context.Background())
	require.Error(t, err)
}
