package stuckpackets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/tokenize-x/chainpulse/internal/metrics"
)

func TestFetchStatusParsesIdleAndQueuedChannels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"osmosis-1 [channel-169] --> neta (juno-1)": {"name":"neta","token_name":"NETA","last_tx":"","counter":1,"size_queue":3,"is_trigger":false}},
			{"osmosis-1 [channel-0] --> cosmoshub-4": {"name":"atom","token_name":"ATOM","last_tx":"","counter":1,"size_queue":0,"is_trigger":false}}
		]`))
	}))
	defer srv.Close()

	statuses, err := fetchStatus(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	var queued *channelStatus
	for i := range statuses {
		if statuses[i].SizeQueue > 0 {
			queued = &statuses[i]
		}
	}
	require.NotNil(t, queued)
	require.Equal(t, "osmosis-1", queued.SrcChain)
	require.Equal(t, "channel-169", queued.SrcChannel)
	require.Equal(t, "juno-1", queued.DstChain)
	require.Equal(t, int64(3), queued.SizeQueue)
}

func TestFetchStatusRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := fetchStatus(context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
}

func TestPollerRunReturnsAfterContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"osmosis-1 [channel-169] --> neta (juno-1)": {"name":"neta","token_name":"NETA","last_tx":"","counter":1,"size_queue":3,"is_trigger":false}}
		]`))
	}))
	defer srv.Close()

	m := metrics.New()
	p := &Poller{
		Chains:     []string{"osmosis-1"},
		Metrics:    m,
		Logger:     log.NewNopLogger(),
		httpClient: srv.Client(),
		url:        srv.URL,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() { p.Run(ctx); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context deadline")
	}
}
