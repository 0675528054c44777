// Package remote is the HTTP adapter for the PII detection and masking backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/feichai0017/pii-guardian/internal/models"
	"github.com/feichai0017/pii-guardian/pkg/logger"
)

const (
	OpDetect = "detect"
	OpMask   = "mask"
	OpHealth = "health"

	defaultTimeout = 60 * time.Second
	// failure bodies are only logged, never parsed
	maxErrorBody = 512
)

// RawEntity is one record of the detection response, in the backend's naming.
type RawEntity struct {
	EntityType string  `json:"entity_type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	// Coordinates is either a flat [x0,y0,x1,y1] list or a polygon of [x,y]
	// points, and may be missing.
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
}

// DetectResponse is the body of POST /detect.
type DetectResponse struct {
	DetectedPII []RawEntity `json:"detected_pii"`
}

// RawDetection is an OCR line reported alongside a JSON mask response.
type RawDetection struct {
	Box   json.RawMessage `json:"box"`
	Text  string          `json:"text"`
	Score float64         `json:"score"`
	Types []string        `json:"types"`
}

// MaskResponse is the body of POST /mask. With as_json=true ImageBase64 is
// set; otherwise Raw holds the image bytes.
type MaskResponse struct {
	ImageBase64 string         `json:"image_base64"`
	ContentType string         `json:"content_type,omitempty"`
	MaskedCount int            `json:"masked_count,omitempty"`
	Detections  []RawDetection `json:"detections,omitempty"`
	Raw         []byte         `json:"-"`
}

// MaskOptions are the query parameters of POST /mask.
type MaskOptions struct {
	Style        string
	ReturnAsJSON bool
}

// DefaultMaskOptions returns box masking with the JSON envelope.
func DefaultMaskOptions() MaskOptions {
	return MaskOptions{Style: "box", ReturnAsJSON: true}
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// MinConfidence is sent as min_confidence when > 0.
	MinConfidence float64
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client issues exactly one HTTP request per call: no retries, no caching.
type Client struct {
	baseURL       string
	minConfidence float64
	http          *http.Client
	logger        logger.Logger
}

func NewClient(cfg *Config, log logger.Logger) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:          20,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: timeout,
			},
		}
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		minConfidence: cfg.MinConfidence,
		http:          httpClient,
		logger:        log.Named("remote"),
	}
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Detect runs PII detection on file.
func (c *Client) Detect(ctx context.Context, file *models.SourceFile) (*DetectResponse, error) {
	query := url.Values{}
	c.addMinConfidence(query)

	resp, err := c.postFile(ctx, OpDetect, "/detect", query, file)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result DetectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &TransportError{
			Op:         OpDetect,
			URL:        resp.Request.URL.String(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return &result, nil
}

// Mask runs PII masking on file.
func (c *Client) Mask(ctx context.Context, file *models.SourceFile, opts MaskOptions) (*MaskResponse, error) {
	if opts.Style == "" {
		opts.Style = "box"
	}
	query := url.Values{}
	query.Set("style", opts.Style)
	query.Set("as_json", strconv.FormatBool(opts.ReturnAsJSON))
	c.addMinConfidence(query)

	resp, err := c.postFile(ctx, OpMask, "/mask", query, file)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !opts.ReturnAsJSON {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &TransportError{
				Op:         OpMask,
				URL:        resp.Request.URL.String(),
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("failed to read image: %w", err),
			}
		}
		return &MaskResponse{
			Raw:         data,
			ContentType: resp.Header.Get("Content-Type"),
		}, nil
	}

	var result MaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &TransportError{
			Op:         OpMask,
			URL:        resp.Request.URL.String(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return &result, nil
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	endpoint := c.baseURL + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &TransportError{Op: OpHealth, URL: endpoint, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: OpHealth, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(OpHealth, endpoint, resp)
	}
	return nil
}

func (c *Client) addMinConfidence(q url.Values) {
	if c.minConfidence > 0 {
		q.Set("min_confidence", strconv.FormatFloat(c.minConfidence, 'f', -1, 64))
	}
}

// postFile sends file as the multipart "file" field. Non-2xx responses are
// closed and returned as *TransportError.
func (c *Client) postFile(ctx context.Context, op, path string, query url.Values, file *models.SourceFile) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	if file == nil {
		return nil, &TransportError{Op: op, URL: endpoint, Err: fmt.Errorf("no file")}
	}

	body, contentType, err := multipartBody(file)
	if err != nil {
		return nil, &TransportError{Op: op, URL: endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, &TransportError{Op: op, URL: endpoint, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Remote call failed",
			logger.String("op", op),
			logger.String("url", endpoint),
			logger.Error(err),
		)
		return nil, &TransportError{Op: op, URL: endpoint, Err: err}
	}

	c.logger.Debug("Remote call completed",
		logger.String("op", op),
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		te := statusError(op, endpoint, resp)
		c.logger.Warn("Remote call returned error status",
			logger.String("op", op),
			logger.Int("status", te.StatusCode),
			logger.String("body", te.Body),
		)
		return nil, te
	}
	return resp, nil
}

func statusError(op, endpoint string, resp *http.Response) *TransportError {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &TransportError{
		Op:         op,
		URL:        endpoint,
		StatusCode: resp.StatusCode,
		Body:       string(snippet),
	}
}

func multipartBody(file *models.SourceFile) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	name := file.Name
	if name == "" {
		name = "image"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	mediaType := file.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	header.Set("Content-Type", mediaType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
