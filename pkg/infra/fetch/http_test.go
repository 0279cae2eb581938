package fetch_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/commis-ai/commis/pkg/domain/model"
	"github.com/commis-ai/commis/pkg/domain/types"
	"github.com/commis-ai/commis/pkg/infra/fetch"
)

// rangeOrigin serves a fixed payload with HTTP range support and records
// requests
type rangeOrigin struct {
	payload     []byte
	requests    []string
	servedBytes int
}

func (o *rangeOrigin) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o.requests = append(o.requests, r.Header.Get("Range"))

		body := o.payload
		status := http.StatusOK

		if rng := r.Header.Get("Range"); rng != "" {
			offsetStr := strings.TrimSuffix(strings.TrimPrefix(rng, "bytes="), "-")
			offset, err := strconv.Atoi(offsetStr)
			if err != nil || offset >= len(o.payload) {
				w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
				return
			}
			body = o.payload[offset:]
			status = http.StatusPartialContent
			w.Header().Set("Content-Range",
				fmt.Sprintf("bytes %d-%d/%d", offset, len(o.payload)-1, len(o.payload)))
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(status)
		_, _ = w.Write(body)
		o.servedBytes += len(body)
	}
}

func testPayload() []byte {
	return bytes.Repeat([]byte("piper-archive-bytes-"), 64)
}

func TestFetch_FreshDownload(t *testing.T) {
	origin := &rangeOrigin{payload: testPayload()}
	server := httptest.NewServer(origin.handler())
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "piper.tar.gz")

	result, err := fetch.New().Fetch(context.Background(), model.RemoteArtifact{
		URL:  server.URL,
		Dest: dest,
	})

	gt.NoError(t, err)
	gt.Value(t, result.Resumed).Equal(false)
	gt.Value(t, result.Bytes).Equal(int64(len(origin.payload)))

	content, err := os.ReadFile(dest)
	gt.NoError(t, err)
	gt.Value(t, content).Equal(origin.payload)

	// Partial file must be gone after a completed transfer
	_, err = os.Stat(dest + ".part")
	gt.Error(t, err)
}

func TestFetch_ResumesPartialTransfer(t *testing.T) {
	origin := &rangeOrigin{payload: testPayload()}
	server := httptest.NewServer(origin.handler())
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "piper.tar.gz")
	partial := origin.payload[:500]
	gt.NoError(t, os.WriteFile(dest+".part", partial, 0644))

	result, err := fetch.New().Fetch(context.Background(), model.RemoteArtifact{
		URL:  server.URL,
		Dest: dest,
	})

	gt.NoError(t, err)
	gt.Value(t, result.Resumed).Equal(true)
	gt.Value(t, result.ResumedFrom).Equal(int64(500))

	// Only the missing tail was re-transferred
	gt.Value(t, origin.servedBytes).Equal(len(origin.payload) - 500)
	gt.Value(t, origin.requests[0]).Equal("bytes=500-")

	content, err := os.ReadFile(dest)
	gt.NoError(t, err)
	gt.Value(t, content).Equal(origin.payload)
}

func TestFetch_RestartsWhenOriginIgnoresRange(t *testing.T) {
	payload := testPayload()
	// Origin without range support always answers 200 with the full body
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "piper.tar.gz")
	gt.NoError(t, os.WriteFile(dest+".part", payload[:100], 0644))

	result, err := fetch.New().Fetch(context.Background(), model.RemoteArtifact{
		URL:  server.URL,
		Dest: dest,
	})

	gt.NoError(t, err)
	gt.Value(t, result.Resumed).Equal(false)

	// The stale partial must not be doubled into the result
	content, err := os.ReadFile(dest)
	gt.NoError(t, err)
	gt.Value(t, content).Equal(payload)
}

func TestFetch_RestartsWhenPartialOutgrowsRemote(t *testing.T) {
	origin := &rangeOrigin{payload: testPayload()}
	server := httptest.NewServer(origin.handler())
	defer server.Close()

	// A partial at least as large as the remote file makes every ranged
	// request unsatisfiable
	dest := filepath.Join(t.TempDir(), "piper.tar.gz")
	stale := append(testPayload(), []byte("overhang")...)
	gt.NoError(t, os.WriteFile(dest+".part", stale, 0644))

	result, err := fetch.New().Fetch(context.Background(), model.RemoteArtifact{
		URL:  server.URL,
		Dest: dest,
	})

	gt.NoError(t, err)
	gt.Value(t, result.Resumed).Equal(false)
	gt.Value(t, result.Bytes).Equal(int64(len(origin.payload)))

	// The unsatisfiable ranged request was followed by a plain restart
	gt.Value(t, origin.requests[0]).Equal(fmt.Sprintf("bytes=%d-", len(stale)))
	gt.Value(t, origin.requests[1]).Equal("")

	content, err := os.ReadFile(dest)
	gt.NoError(t, err)
	gt.Value(t, content).Equal(origin.payload)
}

func TestFetch_SkipsExistingDestination(t *testing.T) {
	origin := &rangeOrigin{payload: testPayload()}
	server := httptest.NewServer(origin.handler())
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "piper.tar.gz")
	gt.NoError(t, os.WriteFile(dest, origin.payload, 0644))

	result, err := fetch.New().Fetch(context.Background(), model.RemoteArtifact{
		URL:  server.URL,
		Dest: dest,
	})

	gt.NoError(t, err)
	gt.Value(t, result.Skipped).Equal(true)
	gt.Value(t, len(origin.requests)).Equal(0)
}

func TestFetch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "piper.tar.gz")

	_, err := fetch.New().Fetch(context.Background(), model.RemoteArtifact{
		URL:  server.URL,
		Dest: dest,
	})

	gt.Error(t, err)
	gt.Value(t, goerr.HasTag(err, types.ErrTagNetwork)).Equal(true)

	// No destination file may appear on failure
	_, statErr := os.Stat(dest)
	gt.Error(t, statErr)
}

func TestFetch_InterruptedTransferKeepsPartial(t *testing.T) {
	payload := testPayload()
	// Announce more bytes than are sent so the client hits an unexpected EOF
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload[:300])
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "piper.tar.gz")

	_, err := fetch.New().Fetch(context.Background(), model.RemoteArtifact{
		URL:  server.URL,
		Dest: dest,
	})

	gt.Error(t, err)
	gt.Value(t, goerr.HasTag(err, types.ErrTagNetwork)).Equal(true)

	// The destination never appears, the partial survives for the next run
	_, statErr := os.Stat(dest)
	gt.Error(t, statErr)

	info, statErr := os.Stat(dest + ".part")
	gt.NoError(t, statErr)
	gt.Value(t, info.Size()).Equal(int64(300))
}
