package qvantum

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// elevationRecorder serves the elevation handshake endpoints and records
// every non-auth call in order.
type elevationRecorder struct {
	calls        []string
	writeLevels  []int // consecutive my-access-level responses
	levelFetches int
	failGenerate bool
	emptyCode    bool
	failClaim    bool
	failApprove  bool
}

func (e *elevationRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if authStub(w, r) {
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/my-access-level"):
			e.calls = append(e.calls, "level")
			level := e.writeLevels[e.levelFetches]
			e.levelFetches++
			writeJSON(w, http.StatusOK, fmt.Sprintf(`{"readAccessLevel":10,"writeAccessLevel":%d,"expiresAt":"2026-08-28T12:00:00Z"}`, level))
		case strings.HasSuffix(r.URL.Path, "/generate-access-code"):
			e.calls = append(e.calls, "generate")
			if e.failGenerate {
				writeJSON(w, http.StatusForbidden, `{}`)
				return
			}
			if e.emptyCode {
				writeJSON(w, http.StatusOK, `{}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"accessCode":"CODE-123"}`)
		case strings.Contains(r.URL.Path, "/claim-grant"):
			e.calls = append(e.calls, "claim")
			if e.failClaim {
				writeJSON(w, http.StatusForbidden, `{}`)
				return
			}
			w.WriteHeader(http.StatusOK)
		case strings.Contains(r.URL.Path, "/access-grants"):
			e.calls = append(e.calls, "approve")
			if e.failApprove {
				writeJSON(w, http.StatusForbidden, `{}`)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			writeJSON(w, http.StatusNotFound, `{}`)
		}
	}
}

func TestElevateAccess_AlreadyElevated(t *testing.T) {
	recorder := &elevationRecorder{writeLevels: []int{25}}
	server := httptest.NewServer(recorder.handler())
	defer server.Close()

	client := newTestClient(server)
	level, err := client.ElevateAccess(context.Background(), "dev-1")
	require.NoError(t, err)

	assert.Equal(t, 25, level.WriteAccessLevel)
	assert.Equal(t, []string{"level"}, recorder.calls, "exactly one level fetch, no handshake")
}

func TestElevateAccess_FullHandshake(t *testing.T) {
	recorder := &elevationRecorder{writeLevels: []int{10, 25}}
	server := httptest.NewServer(recorder.handler())
	defer server.Close()

	client := newTestClient(server)
	level, err := client.ElevateAccess(context.Background(), "dev-1")
	require.NoError(t, err)

	assert.Equal(t, 25, level.WriteAccessLevel)
	assert.Equal(t, []string{"level", "generate", "claim", "approve", "level"}, recorder.calls)
}

func TestElevateAccess_ReturnsLevelEvenIfNotRaised(t *testing.T) {
	// The confirmation fetch can come back unchanged; the caller is
	// responsible for noticing.
	recorder := &elevationRecorder{writeLevels: []int{10, 10}}
	server := httptest.NewServer(recorder.handler())
	defer server.Close()

	client := newTestClient(server)
	level, err := client.ElevateAccess(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, 10, level.WriteAccessLevel)
	assert.False(t, level.Elevated())
}

func TestElevateAccess_AbortsOnGenerateFailure(t *testing.T) {
	recorder := &elevationRecorder{writeLevels: []int{10}, failGenerate: true}
	server := httptest.NewServer(recorder.handler())
	defer server.Close()

	client := newTestClient(server)
	level, err := client.ElevateAccess(context.Background(), "dev-1")
	require.Error(t, err)
	assert.Nil(t, level)
	assert.Equal(t, []string{"level", "generate"}, recorder.calls)
}

func TestElevateAccess_AbortsOnMissingCode(t *testing.T) {
	recorder := &elevationRecorder{writeLevels: []int{10}, emptyCode: true}
	server := httptest.NewServer(recorder.handler())
	defer server.Close()

	client := newTestClient(server)
	_, err := client.ElevateAccess(context.Background(), "dev-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no access code")
	assert.Equal(t, []string{"level", "generate"}, recorder.calls)
}

func TestElevateAccess_AbortsOnClaimFailure(t *testing.T) {
	recorder := &elevationRecorder{writeLevels: []int{10}, failClaim: true}
	server := httptest.NewServer(recorder.handler())
	defer server.Close()

	client := newTestClient(server)
	_, err := client.ElevateAccess(context.Background(), "dev-1")
	require.Error(t, err)
	assert.Equal(t, []string{"level", "generate", "claim"}, recorder.calls)
}

func TestElevateAccess_AbortsOnApproveFailure(t *testing.T) {
	recorder := &elevationRecorder{writeLevels: []int{10}, failApprove: true}
	server := httptest.NewServer(recorder.handler())
	defer server.Close()

	client := newTestClient(server)
	_, err := client.ElevateAccess(context.Background(), "dev-1")
	require.Error(t, err)
	assert.Equal(t, []string{"level", "generate", "claim", "approve"}, recorder.calls)
}
