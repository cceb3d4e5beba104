package cache

import (
	"bufio"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"

	"manuscripta/internal/logger"
	"manuscripta/internal/models"

	_ "golang.org/x/image/webp"
)

// Fetcher downloads and decodes the image behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.Artifact, error)
}

// Downloader fetches scene images into a temporary file and decodes them.
type Downloader struct {
	httpClient *http.Client
	logger     logger.Logger
	userAgent  string
	tempDir    string
}

// NewDownloader creates a new downloader. An empty tempDir uses the OS default.
func NewDownloader(client *http.Client, log logger.Logger, userAgent, tempDir string) *Downloader {
	return &Downloader{
		httpClient: client,
		logger:     log,
		userAgent:  userAgent,
		tempDir:    tempDir,
	}
}

// Fetch downloads url to a temporary file, decodes it and removes the file.
func (d *Downloader) Fetch(ctx context.Context, url string) (*models.Artifact, error) {
	tmp, err := os.CreateTemp(d.tempDir, "msc-*.img")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for %s: %w", url, err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := d.download(ctx, url, tmp); err != nil {
		return nil, err
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind temp file for %s: %w", url, err)
	}

	img, format, err := image.Decode(bufio.NewReader(tmp))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image from %s: %w", url, err)
	}

	d.logger.Debugf("Decoded %s image %dx%d from %s", format, img.Bounds().Dx(), img.Bounds().Dy(), url)
	return &models.Artifact{URL: url, Format: format, Image: img}, nil
}

func (d *Downloader) download(ctx context.Context, url string, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	d.logger.Debugf("Downloading image %s", url)
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download of %s received non-200 status: %d", url, resp.StatusCode)
	}

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return fmt.Errorf("failed while reading body of %s: %w", url, err)
	}
	d.logger.Debugf("Downloaded %d bytes from %s", n, url)
	return nil
}
