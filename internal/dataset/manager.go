// Package dataset keeps a local copy of the Open Food Facts parquet export
// used by the openfoodfacts nutrition provider.
package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/noot-app/foodscan-mcp-server/internal/config"
	"github.com/noot-app/foodscan-mcp-server/internal/retry"
	"github.com/noot-app/foodscan-mcp-server/internal/store"
)

const (
	headTimeout     = 30 * time.Second
	downloadTimeout = 30 * time.Minute
	lockPollPeriod  = 2 * time.Second
	lockWaitLimit   = 10 * time.Minute
	downloadRetries = 2
)

// errTransient marks failures worth another download attempt
var errTransient = errors.New("transient download failure")

// Metadata describes the dataset currently on disk
type Metadata struct {
	SHA256       string    `json:"sha256"`
	DownloadedAt time.Time `json:"downloaded_at"`
	ETag         string    `json:"etag,omitempty"`
	Size         int64     `json:"size"`
}

// Manager downloads the parquet file and keeps its metadata
type Manager struct {
	url                string
	parquetPath        string
	metadataPath       string
	lockPath           string
	disableRemoteCheck bool
	ignoreLock         bool
	client             *http.Client
	sleep              retry.SleepFunc
	pollPeriod         time.Duration
	log                *slog.Logger
}

// NewManager creates a dataset manager from configuration
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		url:                cfg.ParquetURL,
		parquetPath:        cfg.ParquetPath,
		metadataPath:       cfg.MetadataPath,
		lockPath:           cfg.LockFile,
		disableRemoteCheck: cfg.DisableRemoteCheck,
		ignoreLock:         cfg.IgnoreLock,
		client:             &http.Client{Timeout: downloadTimeout},
		sleep:              retry.Sleep,
		pollPeriod:         lockPollPeriod,
		log:                logger,
	}
}

// EnsureDataset makes sure a current parquet file is on disk, downloading it
// when missing or when the remote copy changed
func (m *Manager) EnsureDataset(ctx context.Context) error {
	start := time.Now()
	m.log.Info("Ensuring dataset is available", "parquet_path", m.parquetPath)

	if _, err := os.Stat(m.parquetPath); err == nil {
		if m.disableRemoteCheck {
			m.log.Info("Remote checks disabled, using local dataset", "duration", time.Since(start))
			return nil
		}

		upToDate, err := m.isUpToDate(ctx)
		if err != nil {
			m.log.Warn("Failed to verify dataset freshness", "error", err)
		}
		if upToDate {
			m.log.Info("Dataset is up-to-date", "duration", time.Since(start))
			return nil
		}
	}

	if err := m.downloadWithLock(ctx); err != nil {
		return fmt.Errorf("failed to download dataset: %w", err)
	}

	m.log.Info("Dataset ensured", "duration", time.Since(start))
	return nil
}

// Metadata returns what is known about the local dataset
func (m *Manager) Metadata() (*Metadata, error) {
	var meta Metadata
	if err := store.ReadJSON(m.metadataPath, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (m *Manager) isUpToDate(ctx context.Context) (bool, error) {
	local, err := m.Metadata()
	if err != nil {
		m.log.Debug("No local dataset metadata", "error", err)
		return false, nil
	}

	remote, err := m.remoteMetadata(ctx)
	if err != nil {
		return false, err
	}

	if remote.ETag != "" && local.ETag != "" {
		m.log.Debug("ETag comparison", "local", local.ETag, "remote", remote.ETag)
		return remote.ETag == local.ETag, nil
	}

	m.log.Debug("Size comparison", "local", local.Size, "remote", remote.Size)
	return remote.Size == local.Size, nil
}

func (m *Manager) remoteMetadata(ctx context.Context) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, headTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HEAD request failed with status: %d", resp.StatusCode)
	}

	return &Metadata{ETag: resp.Header.Get("ETag"), Size: resp.ContentLength}, nil
}

func (m *Manager) downloadWithLock(ctx context.Context) error {
	if m.ignoreLock {
		if err := os.Remove(m.lockPath); err == nil {
			m.log.Warn("IGNORE_LOCK enabled, removed existing lock file", "lock_path", m.lockPath)
		}
	}

	lock, err := acquireLock(m.lockPath)
	if err != nil {
		if !m.ignoreLock {
			m.log.Info("Another instance is downloading, waiting", "lock_path", m.lockPath)
			return m.waitForDownload(ctx)
		}
		m.log.Warn("IGNORE_LOCK enabled but lock unavailable, downloading anyway", "error", err)
	}
	if lock != nil {
		defer releaseLock(lock, m.lockPath)
	}

	if err := os.MkdirAll(filepath.Dir(m.parquetPath), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// the temp file lives next to the target so the final rename is atomic
	tmpPath := m.parquetPath + ".download"
	defer os.Remove(tmpPath)

	cfg := retry.Config{
		MaxRetries: downloadRetries,
		Backoff: func(err error, retries int) (time.Duration, bool) {
			return time.Duration(retries+1) * 5 * time.Second, errors.Is(err, errTransient)
		},
		Sleep: m.sleep,
	}
	var etag string
	err = retry.DoWithLog(ctx, cfg, "dataset download", func() error {
		var err error
		etag, err = m.downloadFile(ctx, tmpPath)
		return err
	}, func(attempt int, err error, next time.Duration) {
		m.log.Warn("Dataset download failed, retrying", "retry", attempt, "delay", next, "error", err)
	})
	if err != nil {
		return err
	}

	sum, size, err := fileDigest(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to compute SHA256: %w", err)
	}

	if err := os.Rename(tmpPath, m.parquetPath); err != nil {
		return fmt.Errorf("failed to move dataset into place: %w", err)
	}

	meta := &Metadata{SHA256: sum, DownloadedAt: time.Now().UTC(), ETag: etag, Size: size}
	if err := store.WriteJSON(m.metadataPath, meta); err != nil {
		m.log.Warn("Failed to save dataset metadata", "error", err)
	}

	m.log.Info("Dataset downloaded", "size", size, "sha256", sum[:16]+"...")
	return nil
}

// downloadFile fetches the dataset into path and returns the response ETag
func (m *Manager) downloadFile(ctx context.Context, path string) (string, error) {
	start := time.Now()
	m.log.Info("Downloading dataset", "url", m.url, "path", path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return "", err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || ctx.Err() == nil {
			return "", fmt.Errorf("%w: %v", errTransient, err)
		}
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: status %d", errTransient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	written, err := io.Copy(file, resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errTransient, err)
	}

	m.log.Info("Download completed", "bytes", written, "duration", time.Since(start))
	return resp.Header.Get("ETag"), nil
}

func (m *Manager) waitForDownload(ctx context.Context) error {
	ticker := time.NewTicker(m.pollPeriod)
	defer ticker.Stop()

	timeout := time.After(lockWaitLimit)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("timeout waiting for download by other instance")
		case <-ticker.C:
			if _, err := os.Stat(m.lockPath); errors.Is(err, os.ErrNotExist) {
				if _, err := os.Stat(m.parquetPath); err == nil {
					m.log.Info("Dataset available after other instance completed")
					return nil
				}
				return fmt.Errorf("other instance finished without producing %s", m.parquetPath)
			}
		}
	}
}

// acquireLock creates the lock file, failing when it already exists
func acquireLock(lockPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
}

func releaseLock(f *os.File, lockPath string) {
	f.Close()
	os.Remove(lockPath)
}

// fileDigest returns the hex SHA256 and size of the file at path
func fileDigest(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	hash := sha256.New()
	n, err := io.Copy(hash, file)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hash.Sum(nil)), n, nil
}
