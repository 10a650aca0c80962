package dictionary

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/japaniel/yomigana/pkg/logging"
)

const (
	repoOwner = "scriptin"
	repoName  = "jmdict-simplified"
	assetName = "jmdict-eng-common"
)

// Downloader fetches the latest jmdict-simplified release.
type Downloader struct {
	Client *http.Client
	// ReleaseURL is the GitHub "latest release" API endpoint.
	ReleaseURL string
	Logger     *slog.Logger
}

// NewDownloader returns a Downloader for the public GitHub release.
func NewDownloader(logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Downloader{
		Client:     &http.Client{Timeout: 5 * time.Minute},
		ReleaseURL: fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/latest", repoOwner, repoName),
		Logger:     logger,
	}
}

// EnsureDictionary downloads the dictionary to path unless a file is
// already there.
func EnsureDictionary(ctx context.Context, path string) error {
	return NewDownloader(nil).Ensure(ctx, path)
}

// Ensure downloads the dictionary to path unless a file is already there.
func (d *Downloader) Ensure(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	d.Logger.Info("dictionary not found, downloading", "path", path)
	url, name, err := d.latestAsset(ctx)
	if err != nil {
		return fmt.Errorf("find latest dictionary release: %w", err)
	}
	d.Logger.Info("downloading dictionary", "url", url)
	return d.download(ctx, url, name, path)
}

func (d *Downloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	// GitHub rejects API requests without a User-Agent.
	req.Header.Set("User-Agent", "yomigana")
	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return resp, nil
}

func (d *Downloader) latestAsset(ctx context.Context) (url, name string, err error) {
	resp, err := d.get(ctx, d.ReleaseURL)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var release struct {
		Assets []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
		} `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", "", err
	}
	for _, a := range release.Assets {
		if strings.Contains(a.Name, assetName) && (strings.HasSuffix(a.Name, ".json.tgz") || strings.HasSuffix(a.Name, ".json.gz")) {
			return a.BrowserDownloadURL, a.Name, nil
		}
	}
	return "", "", fmt.Errorf("no %s asset in latest release", assetName)
}

// download writes the JSON inside the archive to a temporary file next to
// dest and renames it into place, so an interrupted download never leaves
// a truncated dictionary behind.
func (d *Downloader) download(ctx context.Context, url, name, dest string) error {
	resp, err := d.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	var src io.Reader = gz
	if strings.HasSuffix(name, ".tgz") {
		tr := tar.NewReader(gz)
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				return fmt.Errorf("no json file in %s", name)
			}
			if err != nil {
				return fmt.Errorf("read tar: %w", err)
			}
			if hdr.Typeflag == tar.TypeReg && strings.HasSuffix(hdr.Name, ".json") {
				src = tr
				break
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("write dictionary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
