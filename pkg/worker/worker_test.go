package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/Druvan/HarmonicIO/pkg/binpack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDispatcher_StartContainerSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/docker", r.URL.Path)
		assert.Equal(t, "create", r.URL.Query().Get("command"))
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("abc123def456"))
	}))
	defer srv.Close()

	host, portStr := splitHostPort(t, srv.URL)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	d := NewHTTPDispatcher("tok")
	sid, err := d.StartContainer(context.Background(), host, port, &binpack.ContainerRequest{Image: "nginx"}, 10.0)

	require.NoError(t, err)
	assert.Equal(t, "abc123def456", sid)
}

func TestHTTPDispatcher_StartContainerNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	host, portStr := splitHostPort(t, srv.URL)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	d := NewHTTPDispatcher("tok")
	_, err = d.StartContainer(context.Background(), host, port, &binpack.ContainerRequest{Image: "nginx"}, 10.0)

	assert.Error(t, err)
}

func splitHostPort(t *testing.T, rawURL string) (string, string) {
	t.Helper()
	u := strings.TrimPrefix(rawURL, "http://")
	parts := strings.SplitN(u, ":", 2)
	require.Len(t, parts, 2)
	return parts[0], parts[1]
}
