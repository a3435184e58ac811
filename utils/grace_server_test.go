package utils

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGracefulServerDrainsInFlightRequests(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		_, _ = io.WriteString(w, "done")
	})

	srv := NewGracefulServer("127.0.0.1:0", handler, ServerOptions{DrainTimeout: 5 * time.Second})
	var order []string
	srv.OnShutdown(func(context.Context) error { order = append(order, "redis"); return nil })
	srv.OnShutdown(func(context.Context) error { order = append(order, "db"); return nil })
	require.NoError(t, srv.Listen())

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run() }()

	type reply struct {
		status int
		body   string
		err    error
	}
	got := make(chan reply, 1)
	go func() {
		resp, err := http.Get("http://" + srv.Addr().String() + "/")
		if err != nil {
			got <- reply{err: err}
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		got <- reply{status: resp.StatusCode, body: string(b)}
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the handler")
	}

	stopped := make(chan struct{})
	go func() {
		srv.Stop()
		close(stopped)
	}()
	close(release)

	r := <-got
	require.NoError(t, r.err)
	assert.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, "done", r.body)

	<-stopped
	assert.NoError(t, <-runErr)
	assert.Equal(t, []string{"redis", "db"}, order)

	srv.Stop()
	assert.Equal(t, []string{"redis", "db"}, order, "hooks run once")

	_, err := http.Get("http://" + srv.Addr().String() + "/")
	assert.Error(t, err, "listener is closed after drain")
}

func TestServerOptionsDefaults(t *testing.T) {
	o := ServerOptions{WriteTimeout: time.Minute}.withDefaults()
	assert.Equal(t, 15*time.Second, o.ReadTimeout)
	assert.Equal(t, time.Minute, o.WriteTimeout)
	assert.Equal(t, 30*time.Second, o.DrainTimeout)
}
