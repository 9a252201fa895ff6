package arcrest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultChunkSize = 16 * 1024

	// An error envelope returned in place of the data is always small.
	envelopePeekSize = 64 * 1024
)

var ErrIncompleteDownload = errors.New("download incomplete")

// DownloadChunked streams endpoint to destination in chunkSize reads and returns the bytes written.
//
// Data is written to destination.part and renamed when the body has been read completely,
// on any failure the partial file is left behind and an error returned.
func (c *Client) DownloadChunked(ctx context.Context, endpoint string, params Params, destination string, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	written, err := c.download(ctx, endpoint, params, destination, chunkSize)
	if err != nil && IsTokenExpired(err) && c.canReauthenticate() {
		log.Debug().Str("endpoint", endpoint).Msg("rest: token expired during download, re-authenticating")

		if _, authErr := c.Reauthenticate(ctx); authErr != nil {
			return 0, authErr
		}

		written, err = c.download(ctx, endpoint, params, destination, chunkSize)
	}

	return written, err
}

// openStream issues a GET for endpoint and checks the response for an error envelope.
func (c *Client) openStream(ctx context.Context, op string, endpoint string, params Params) (*http.Response, *bufio.Reader, string, error) {
	u, err := c.ResolveURL(endpoint)
	if err != nil {
		return nil, nil, "", err
	}

	query := params.clone()
	if token := c.currentToken(); token != "" {
		query["token"] = token
	}

	req, err := c.newRequest(ctx, http.MethodGet, u, query.values())
	if err != nil {
		return nil, nil, "", err
	}
	req.Header.Set("Accept", "*/*")

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, "", &NetworkError{Op: op, URL: u.Redacted(), Err: err}
		}
	}

	// Streams can run for a long time, rely on the context rather than the client timeout
	httpClient := &http.Client{
		Transport:     c.HTTPClient.Transport,
		CheckRedirect: c.HTTPClient.CheckRedirect,
		Jar:           c.HTTPClient.Jar,
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, "", &NetworkError{Op: op, URL: u.Redacted(), Err: err}
	}

	reader := bufio.NewReaderSize(resp.Body, envelopePeekSize)

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		head, _ := reader.Peek(envelopePeekSize)
		if env, perr := ParseEnvelope(head); perr == nil && env.Kind == EnvelopeError {
			return nil, nil, "", env.Err(endpoint)
		}
		return nil, nil, "", &ApiError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Endpoint: endpoint}
	}

	// A JSON body that fits in the peek window may be an error envelope instead of the data
	if strings.Contains(resp.Header.Get("Content-Type"), "json") || resp.Header.Get("Content-Type") == "" {
		head, perr := reader.Peek(envelopePeekSize)
		if errors.Is(perr, io.EOF) {
			if env, err := ParseEnvelope(head); err == nil && env.Kind == EnvelopeError {
				resp.Body.Close()
				return nil, nil, "", env.Err(endpoint)
			}
		}
	}

	return resp, reader, u.Redacted(), nil
}

// Fetch GETs endpoint and returns the raw body, used for images and tiles rather than JSON.
func (c *Client) Fetch(ctx context.Context, endpoint string, params Params) ([]byte, error) {
	body, err := c.fetch(ctx, endpoint, params)
	if err != nil && IsTokenExpired(err) && c.canReauthenticate() {
		if _, authErr := c.Reauthenticate(ctx); authErr != nil {
			return nil, authErr
		}
		body, err = c.fetch(ctx, endpoint, params)
	}
	return body, err
}

func (c *Client) fetch(ctx context.Context, endpoint string, params Params) ([]byte, error) {
	start := time.Now()

	resp, reader, redacted, err := c.openStream(ctx, "fetch", endpoint, params)
	if err != nil {
		if c.observer != nil {
			c.observer.RequestDone(http.MethodGet, time.Since(start), err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		err = &NetworkError{Op: "fetch", URL: redacted, Err: err}
	}
	if c.observer != nil {
		c.observer.RequestDone(http.MethodGet, time.Since(start), err)
	}

	return body, err
}

func (c *Client) download(ctx context.Context, endpoint string, params Params, destination string, chunkSize int) (int64, error) {
	resp, reader, redacted, err := c.openStream(ctx, "download", endpoint, params)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if dir := filepath.Dir(destination); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, &IoError{Path: dir, Err: err}
		}
	}

	partial := destination + ".part"
	file, err := os.Create(partial)
	if err != nil {
		return 0, &IoError{Path: partial, Err: err}
	}

	written, copyErr := copyChunks(file, reader, chunkSize)
	closeErr := file.Close()

	if copyErr != nil {
		var ioErr *IoError
		if errors.As(copyErr, &ioErr) {
			ioErr.Path = partial
			return written, ioErr
		}
		return written, &NetworkError{Op: "download", URL: redacted, Err: copyErr}
	}
	if closeErr != nil {
		return written, &IoError{Path: partial, Err: closeErr}
	}

	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return written, &NetworkError{
			Op:  "download",
			URL: redacted,
			Err: fmt.Errorf("%w: received %d of %d bytes", ErrIncompleteDownload, written, resp.ContentLength),
		}
	}

	if err := os.Rename(partial, destination); err != nil {
		return written, &IoError{Path: destination, Err: err}
	}

	log.Debug().Str("file", destination).Int64("bytes", written).Msg("rest: download complete")

	return written, nil
}

// copyChunks copies src to dst one chunk at a time, read failures are returned as is and write failures as *IoError.
func copyChunks(dst io.Writer, src io.Reader, chunkSize int) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			w, err := dst.Write(buf[:n])
			written += int64(w)
			if err != nil {
				return written, &IoError{Err: err}
			}
			if w != n {
				return written, &IoError{Err: io.ErrShortWrite}
			}
		}

		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
