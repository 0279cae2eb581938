package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/commis-ai/commis/pkg/domain/interfaces"
	"github.com/commis-ai/commis/pkg/domain/model"
	"github.com/commis-ai/commis/pkg/domain/types"
)

const partSuffix = ".part"

type httpFetcher struct {
	client    *http.Client
	userAgent string
}

// Option is a functional option for the HTTP fetcher
type Option func(*httpFetcher)

// WithClient overrides the HTTP client used for transfers
func WithClient(client *http.Client) Option {
	return func(f *httpFetcher) {
		f.client = client
	}
}

// New creates a resumable HTTP fetcher. Downloads land in a sibling ".part"
// file that is only ever appended to and renamed onto the destination once
// complete, so the destination path never holds a partial transfer.
func New(opts ...Option) interfaces.Fetcher {
	f := &httpFetcher{
		client:    http.DefaultClient,
		userAgent: types.AppName + "/" + types.Version,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the artifact. An existing destination file short-circuits
// the transfer; an existing partial file is continued with a ranged request.
func (f *httpFetcher) Fetch(ctx context.Context, artifact model.RemoteArtifact) (*model.FetchResult, error) {
	logger := ctxlog.From(ctx)

	if info, err := os.Stat(artifact.Dest); err == nil && !info.IsDir() {
		logger.Debug("Destination already exists, skipping download",
			"dest", artifact.Dest,
			"size_bytes", info.Size(),
		)
		return &model.FetchResult{Path: artifact.Dest, Skipped: true}, nil
	}

	partPath := artifact.Dest + partSuffix

	var offset int64
	if info, err := os.Stat(partPath); err == nil {
		offset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifact.URL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create download request",
			goerr.V("url", artifact.URL), goerr.T(types.ErrTagNetwork))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/octet-stream,*/*")
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to request artifact",
			goerr.V("url", artifact.URL), goerr.T(types.ErrTagNetwork))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Origin ignored the range request, the partial file is useless
		if offset > 0 {
			logger.Debug("Origin does not support resume, restarting transfer",
				"url", artifact.URL,
				"discarded_bytes", offset,
			)
			if err := os.Remove(partPath); err != nil {
				return nil, goerr.Wrap(err, "failed to discard stale partial download",
					goerr.V("path", partPath), goerr.T(types.ErrTagNetwork))
			}
			offset = 0
		}
	case http.StatusPartialContent:
		// Continuing the partial file
	case http.StatusRequestedRangeNotSatisfiable:
		// The partial file is already as large as the remote one, left by a
		// crash before the rename or by a shrunk remote artifact
		if offset == 0 {
			return nil, goerr.New("unexpected status fetching artifact",
				goerr.V("url", artifact.URL),
				goerr.V("status", resp.StatusCode),
				goerr.T(types.ErrTagNetwork))
		}
		logger.Debug("Partial file is beyond the remote size, restarting transfer",
			"url", artifact.URL,
			"discarded_bytes", offset,
		)
		if err := os.Remove(partPath); err != nil {
			return nil, goerr.Wrap(err, "failed to discard stale partial download",
				goerr.V("path", partPath), goerr.T(types.ErrTagNetwork))
		}
		return f.Fetch(ctx, artifact)
	default:
		return nil, goerr.New("unexpected status fetching artifact",
			goerr.V("url", artifact.URL),
			goerr.V("status", resp.StatusCode),
			goerr.T(types.ErrTagNetwork))
	}

	if err := os.MkdirAll(filepath.Dir(partPath), 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create download directory",
			goerr.V("path", filepath.Dir(partPath)), goerr.T(types.ErrTagDirectory))
	}

	part, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open partial download",
			goerr.V("path", partPath), goerr.T(types.ErrTagDirectory))
	}

	written, err := io.Copy(part, resp.Body)
	if closeErr := part.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// Keep the partial file so a re-run can continue from here
		return nil, goerr.Wrap(err, "transfer interrupted",
			goerr.V("url", artifact.URL),
			goerr.V("received_bytes", offset+written),
			goerr.T(types.ErrTagNetwork))
	}

	if err := os.Rename(partPath, artifact.Dest); err != nil {
		return nil, goerr.Wrap(err, "failed to finalize download",
			goerr.V("dest", artifact.Dest), goerr.T(types.ErrTagDirectory))
	}

	logger.Info("Downloaded artifact",
		"url", artifact.URL,
		"dest", artifact.Dest,
		"bytes", written,
		"resumed_from", offset,
	)

	return &model.FetchResult{
		Path:        artifact.Dest,
		Bytes:       written,
		Resumed:     offset > 0,
		ResumedFrom: offset,
	}, nil
}
