package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/quillscribe/taskcore/internal/task"
)

// TypeDownload is the task type key for HTTP file downloads.
const TypeDownload = "download"

// downloadChunkSize is the copy buffer size; progress is reported once per
// chunk when the response declares a length.
const downloadChunkSize = 32 * 1024

// DownloadInput is the payload for a download task.
type DownloadInput struct {
	URL  string `json:"url"  validate:"required,url"`
	Path string `json:"path" validate:"required"`
}

// DownloadResult is the payload of a download task's completed event.
type DownloadResult struct {
	Path        string `json:"path"`
	Bytes       int64  `json:"bytes"`
	ContentType string `json:"content_type,omitempty"`
}

// DownloadHandler fetches a URL to a local file, reporting progress as bytes
// arrive and honoring the task's cancellation signal between chunks.
type DownloadHandler struct {
	client    *http.Client
	validator *validator.Validate
	logger    *slog.Logger
}

// NewDownloadHandler creates a DownloadHandler. A nil client selects
// http.DefaultClient.
func NewDownloadHandler(client *http.Client, logger *slog.Logger) (*DownloadHandler, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &DownloadHandler{
		client:    client,
		validator: validator.New(),
		logger:    logger.With("task_type", TypeDownload),
	}, nil
}

// Type returns the handler's registration key.
func (h *DownloadHandler) Type() string { return TypeDownload }

// Validate checks the input synchronously at submission time.
func (h *DownloadHandler) Validate(input any) error {
	var in DownloadInput
	if err := decodeInput(input, &in); err != nil {
		return err
	}
	return h.validator.Struct(in)
}

// Execute performs the download.
func (h *DownloadHandler) Execute(ctx context.Context, input any, rep task.Reporter) (any, error) {
	var in DownloadInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("download interrupted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			h.logger.Warn("failed to close response body", "error", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response status %d for %s", resp.StatusCode, in.URL)
	}

	out, err := os.Create(in.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	written, err := h.copyWithProgress(ctx, out, resp.Body, resp.ContentLength, rep)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close output file: %w", cerr)
	}
	if err != nil {
		// Leave no partial file behind.
		if rmErr := os.Remove(in.Path); rmErr != nil {
			h.logger.Warn("failed to remove partial download", "path", in.Path, "error", rmErr)
		}
		return nil, err
	}

	rep.Progress(100, "download complete", nil)
	return DownloadResult{
		Path:        in.Path,
		Bytes:       written,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func (h *DownloadHandler) copyWithProgress(
	ctx context.Context,
	dst io.Writer,
	src io.Reader,
	total int64,
	rep task.Reporter,
) (int64, error) {
	buf := make([]byte, downloadChunkSize)
	var written int64
	for {
		if ctx.Err() != nil {
			return written, fmt.Errorf("download interrupted: %w", ctx.Err())
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return written, fmt.Errorf("write failed: %w", writeErr)
			}
			written += int64(n)
			if total > 0 {
				rep.Progress(float64(written)/float64(total)*100, "", nil)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return written, fmt.Errorf("download interrupted: %w", ctx.Err())
			}
			return written, fmt.Errorf("read failed: %w", readErr)
		}
	}
}
