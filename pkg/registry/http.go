// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"scarb/internal/flock"
	"scarb/internal/fsx"
	"scarb/pkg/core"
)

// downloadAttempts bounds the retries of one HTTP request before the
// failure surfaces as a source error.
const downloadAttempts = 3

// HTTPClient talks to a remote registry over HTTP. The registry's
// config.json is fetched lazily, once per client.
type HTTPClient struct {
	sourceId core.SourceId
	dlFs     *flock.Filesystem
	http     *http.Client
	offline  bool

	configOnce sync.Once
	config     *IndexConfig
	configErr  error
}

// NewHTTPClient creates a client for the registry identified by
// sourceId. Downloaded archives land under dlFs.
func NewHTTPClient(sourceId core.SourceId, dlFs *flock.Filesystem, offline bool) *HTTPClient {
	return &HTTPClient{
		sourceId: sourceId,
		dlFs:     dlFs,
		http:     &http.Client{Timeout: 5 * time.Minute},
		offline:  offline,
	}
}

func (c *HTTPClient) IsOffline() bool { return c.offline }

func (c *HTTPClient) GetRecords(ctx context.Context, name core.PackageName) (IndexRecords, error) {
	cfg, err := c.indexConfig(ctx)
	if err != nil {
		return nil, err
	}
	recordsURL, err := cfg.Index.Expand(name, nil)
	if err != nil {
		return nil, err
	}
	body, status, err := c.get(ctx, recordsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch index records for %s: %w", name, err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch index records for %s: registry returned HTTP %d", name, status)
	}
	return ParseIndexRecords(body)
}

func (c *HTTPClient) IsDownloaded(id core.PackageId) bool {
	_, err := os.Stat(c.archivePath(id))
	return err == nil
}

func (c *HTTPClient) Download(ctx context.Context, id core.PackageId) (string, error) {
	target := c.archivePath(id)
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	records, err := c.GetRecords(ctx, id.Name())
	if err != nil {
		return "", err
	}
	record, ok := records.FindVersion(id.Version())
	if !ok {
		return "", fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	cfg, err := c.indexConfig(ctx)
	if err != nil {
		return "", err
	}
	dlURL, err := cfg.Dl.Expand(id.Name(), id.Version())
	if err != nil {
		return "", err
	}

	body, status, err := c.get(ctx, dlURL)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", id, err)
	}
	if status == http.StatusNotFound {
		return "", fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: registry returned HTTP %d", id, status)
	}

	// The checksum gate: bytes are never interpreted, nor persisted
	// under their final name, until the digest matches the index.
	got := core.ChecksumOfBytes(body)
	if !got.Equal(record.Checksum) {
		return "", &core.ChecksumError{Expected: record.Checksum, Got: got}
	}

	dir, err := c.dlFs.PathExistent()
	if err != nil {
		return "", err
	}
	if err := fsx.WriteFileAtomic(filepath.Join(dir, id.Tarball()), body, 0o644); err != nil {
		return "", err
	}
	slog.Debug("downloaded package archive", "package", id.String(), "url", dlURL)
	return target, nil
}

func (c *HTTPClient) SupportsPublish() bool {
	// Publishing needs the upload endpoint from config.json, which may
	// not be fetched yet; offline clients can never publish.
	return !c.offline
}

func (c *HTTPClient) Publish(ctx context.Context, pkg *core.Package, tarball string) error {
	cfg, err := c.indexConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Upload == "" {
		return fmt.Errorf("registry %s does not support publishing", c.sourceId)
	}

	data, err := os.ReadFile(tarball)
	if err != nil {
		return fmt.Errorf("failed to read package archive %s: %w", tarball, err)
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filepath.Base(tarball))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := form.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Upload, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", pkg.Id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("failed to publish %s: registry returned HTTP %d: %s",
			pkg.Id, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (c *HTTPClient) indexConfig(ctx context.Context) (*IndexConfig, error) {
	c.configOnce.Do(func() {
		url := strings.TrimSuffix(c.sourceId.CanonicalURL(), "/") + "/" + IndexConfigPath
		body, status, err := c.get(ctx, url)
		if err != nil {
			c.configErr = fmt.Errorf("failed to fetch registry config from %s: %w", url, err)
			return
		}
		if status != http.StatusOK {
			c.configErr = fmt.Errorf("failed to fetch registry config from %s: HTTP %d", url, status)
			return
		}
		c.config, c.configErr = ParseIndexConfig(body)
	})
	return c.config, c.configErr
}

// get performs a GET with bounded exponential backoff on transport
// errors and 5xx responses. 4xx responses are returned to the caller.
func (c *HTTPClient) get(ctx context.Context, url string) ([]byte, int, error) {
	if c.offline {
		return nil, 0, fmt.Errorf("cannot fetch %s: %w", url, ErrOffline)
	}

	var body []byte
	var status int
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("registry returned HTTP %d", resp.StatusCode)
		}
		status = resp.StatusCode
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), downloadAttempts-1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, 0, err
	}
	return body, status, nil
}

func (c *HTTPClient) archivePath(id core.PackageId) string {
	return filepath.Join(c.dlFs.Path(), id.Tarball())
}
