// Package imaging downloads source images, bounds them to the configured
// frame, and uploads the result. Everything here is best effort: any failure
// logs a warning and yields nil, and the content ships without an image.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"newsroom/internal/config"
	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

const (
	maxRedirects  = 10
	maxImageBytes = 20 << 20
	userAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Processor implements ports.ImageProcessor.
type Processor struct {
	client  *http.Client
	store   ports.ObjectStore
	cfg     config.ImageConfig
	logger  *slog.Logger
	timeout time.Duration
}

var _ ports.ImageProcessor = (*Processor)(nil)

func New(store ports.ObjectStore, cfg config.ImageConfig, logger *slog.Logger) *Processor {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Processor{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		store:   store,
		cfg:     cfg,
		logger:  logger,
		timeout: timeout,
	}
}

// Process downloads the image, transcodes it, and uploads the asset. A nil
// return means the caller should publish without an image.
func (p *Processor) Process(ctx context.Context, imageURL, nameHint string) *domain.ImageRef {
	if imageURL == "" {
		return nil
	}

	raw, err := p.download(ctx, imageURL)
	if err != nil {
		p.logger.Warn("image download failed", "url", imageURL, "error", err)
		return nil
	}

	data, ext, contentType := p.transcode(raw, imageURL)

	key := fmt.Sprintf("%s-%s%s", nameHint, uuid.NewString()[:8], ext)
	url, err := p.store.Put(ctx, key, data, contentType)
	if err != nil {
		p.logger.Warn("image upload failed", "key", key, "error", err)
		return nil
	}

	return &domain.ImageRef{URL: url, Title: nameHint}
}

func (p *Processor) download(ctx context.Context, imageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}
	return data, nil
}

// transcode bounds the image to the configured frame and re-encodes it as
// JPEG. Animated GIFs pass through untouched, and undecodable bytes are
// uploaded as-is under their original extension.
func (p *Processor) transcode(raw []byte, imageURL string) (data []byte, ext, contentType string) {
	if strings.HasPrefix(string(raw[:min(6, len(raw))]), "GIF8") {
		return raw, ".gif", "image/gif"
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		p.logger.Warn("image decode failed, keeping original", "url", imageURL, "error", err)
		ext := path.Ext(imageURL)
		if ext == "" || len(ext) > 5 {
			ext = ".img"
		}
		return raw, ext, "application/octet-stream"
	}

	bounds := img.Bounds()
	if bounds.Dx() > p.cfg.MaxWidth || bounds.Dy() > p.cfg.MaxHeight {
		img = imaging.Fit(img, p.cfg.MaxWidth, p.cfg.MaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.cfg.JPEGQuality}); err != nil {
		p.logger.Warn("jpeg encode failed, keeping original", "url", imageURL, "error", err)
		return raw, ".img", "application/octet-stream"
	}
	return buf.Bytes(), ".jpg", "image/jpeg"
}
