package tracing

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "spyconsole"}, quiet())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitWithEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{
		ServiceName:    "spyconsole",
		ServiceVersion: "test",
		Endpoint:       "127.0.0.1:4318",
		SampleRatio:    5,
	}, quiet())
	require.NoError(t, err)
	// No spans were recorded, so shutdown has nothing to export.
	assert.NoError(t, shutdown(context.Background()))
}

func TestHandlerAndClientPassThrough(t *testing.T) {
	srv := httptest.NewServer(Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), "test"))
	defer srv.Close()

	resp, err := Client(time.Second).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

func TestTracer(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
}
