package administrator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupebot/internal/pkg/gate"
	"dupebot/internal/pkg/models"
)

// dummyAdmin implements the Administrator interface with fixed numbers so
// the health endpoint can be checked in isolation.
type dummyAdmin struct {
	start time.Time
}

func (da *dummyAdmin) EnqueueEvent(ctx context.Context, event models.Event) error { return nil }
func (da *dummyAdmin) DispatchActivation(activation gate.Activation) bool { return false }
func (da *dummyAdmin) Start(ctx context.Context) {}
func (da *dummyAdmin) StartService(ctx context.Context, port string) error { return nil }
func (da *dummyAdmin) Stop() {}
func (da *dummyAdmin) QueueDepth() int { return 7 }
func (da *dummyAdmin) WorkerCount() int { return 4 }
func (da *dummyAdmin) OpenGates() int { return 2 }
func (da *dummyAdmin) StartTime() time.Time { return da.start }

func TestHealthEndpoint(t *testing.T) {
	start := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
	server := httptest.NewServer(newServeMux(&dummyAdmin{start: start}))
	defer server.Close()

	response, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "application/json", response.Header.Get("Content-Type"))

	var got health
	require.NoError(t, json.NewDecoder(response.Body).Decode(&got))
	assert.Equal(t, "OK", got.Status)
	assert.Equal(t, 7, got.QueueDepth)
	assert.Equal(t, 4, got.Workers)
	assert.Equal(t, 2, got.OpenGates)
	assert.True(t, got.StartTime.Equal(start))
	assert.NotEmpty(t, got.Uptime)
}

func TestHealthRejectsWrites(t *testing.T) {
	server := httptest.NewServer(newServeMux(&dummyAdmin{start: time.Now()}))
	defer server.Close()

	response, err := http.Post(server.URL+"/health", "application/json", nil)
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, response.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	server := httptest.NewServer(newServeMux(&dummyAdmin{start: time.Now()}))
	defer server.Close()

	response, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, string(body), "dupebot_")
}
