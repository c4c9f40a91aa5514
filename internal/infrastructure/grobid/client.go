package grobid

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"trendsurf/internal/config"
	"trendsurf/internal/domain"
	"trendsurf/internal/ports"
)

// Reason codes carried by ExtractionError.
const (
	ReasonNotConfigured = "not_configured"
	ReasonTransport     = "transport"
	ReasonEmptyResponse = "empty_response"
)

// ExtractionError reports a failed extraction call with a coarse reason code.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("grobid extraction failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("grobid extraction failed (%s)", e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Client submits binary documents to a GROBID service and parses the TEI
// markup it returns.
type Client struct {
	baseURL string
	client  *http.Client
}

var _ ports.Extractor = (*Client)(nil)

// NewClient builds a client from configuration. An empty URL is allowed at
// construction; calls fail with a not_configured extraction error.
func NewClient(cfg config.GrobidConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// ProcessFulltext posts the document as a multipart request and returns the
// raw TEI markup.
func (c *Client) ProcessFulltext(ctx context.Context, doc []byte, consolidateHeader int) (string, error) {
	if c.baseURL == "" {
		return "", &ExtractionError{Reason: ReasonNotConfigured, Err: fmt.Errorf("extraction endpoint is not set")}
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="input"; filename="document.pdf"`)
	header.Set("Content-Type", "application/pdf")
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", &ExtractionError{Reason: ReasonTransport, Err: fmt.Errorf("build multipart body: %w", err)}
	}
	if _, err := part.Write(doc); err != nil {
		return "", &ExtractionError{Reason: ReasonTransport, Err: fmt.Errorf("write document part: %w", err)}
	}
	if err := writer.WriteField("consolidateHeader", strconv.Itoa(consolidateHeader)); err != nil {
		return "", &ExtractionError{Reason: ReasonTransport, Err: fmt.Errorf("write form field: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return "", &ExtractionError{Reason: ReasonTransport, Err: fmt.Errorf("close multipart body: %w", err)}
	}

	endpoint := c.baseURL + "/api/processFulltextDocument"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", &ExtractionError{Reason: ReasonTransport, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &ExtractionError{Reason: ReasonTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &ExtractionError{Reason: ReasonTransport, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ExtractionError{Reason: ReasonTransport, Err: fmt.Errorf("read response: %w", err)}
	}
	if strings.TrimSpace(string(body)) == "" {
		return "", &ExtractionError{Reason: ReasonEmptyResponse}
	}

	return string(body), nil
}

// Extract runs the service call and TEI parsing in one step.
func (c *Client) Extract(ctx context.Context, doc []byte) (domain.ParsedDocument, error) {
	markup, err := c.ProcessFulltext(ctx, doc, 1)
	if err != nil {
		return domain.ParsedDocument{}, err
	}
	return ParseTEI(markup)
}
