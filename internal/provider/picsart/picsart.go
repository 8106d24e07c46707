// Package picsart provides background removal through the Picsart image API
package picsart

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/BGRemover/internal/credentials"
	"github.com/UnendingLoop/BGRemover/internal/provider"
)

const Name = "picsart"

var _ provider.BackgroundRemover = (*Adapter)(nil)

type Adapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Adapter)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) {
		if c != nil {
			a.httpClient = c
		}
	}
}

// New resolves credentials once; they stay immutable for the adapter's lifetime.
func New(resolver credentials.Resolver, override *credentials.Credentials, opts ...Option) (*Adapter, error) {
	creds, err := resolver.Resolve(Name, override)
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		apiKey:     creds.APIKey,
		baseURL:    creds.BaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) RemoveBackground(ctx context.Context, req *provider.BackgroundRemovalRequest) (*provider.Response[provider.BackgroundRemovalResult], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		body        io.Reader
		contentType string
		err         error
	)
	switch src := req.Source.(type) {
	case provider.FileSource:
		body, contentType, err = fileForm(src.Path, req.Params)
	case provider.URLSource:
		body, contentType = urlForm(src.URL, req.Params)
	}
	if err != nil {
		return nil, err
	}

	hReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/removebg", body)
	if err != nil {
		return nil, fmt.Errorf("build removebg request: %w", err)
	}
	hReq.Header.Set("X-Picsart-API-Key", a.apiKey)
	hReq.Header.Set("Accept", "application/json")
	hReq.Header.Set("Content-Type", contentType)

	resp, err := a.httpClient.Do(hReq)
	if err != nil {
		return nil, &provider.TransportError{Op: "removebg request", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.TransportError{Op: "read removebg response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &provider.ProviderError{Message: errorMessage(raw), Code: resp.StatusCode}
	}

	var parsed struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrMalformedResponse, err)
	}
	if parsed.Data.URL == "" {
		return nil, fmt.Errorf("%w: data.url is empty", provider.ErrMalformedResponse)
	}

	img, err := a.download(ctx, parsed.Data.URL)
	if err != nil {
		return nil, err
	}

	return &provider.Response[provider.BackgroundRemovalResult]{
		OriginalResponse: string(raw),
		StandardizedResponse: provider.BackgroundRemovalResult{
			ImageB64:         base64.StdEncoding.EncodeToString(img),
			ImageResourceURL: parsed.Data.URL,
		},
	}, nil
}

func (a *Adapter) download(ctx context.Context, imageURL string) ([]byte, error) {
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: bad result url %q: %v", provider.ErrMalformedResponse, imageURL, err)
	}

	resp, err := a.httpClient.Do(hReq)
	if err != nil {
		return nil, &provider.TransportError{Op: "download result image", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.TransportError{Op: "read result image", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.ProviderError{Message: "failed to download result image", Code: resp.StatusCode}
	}
	return data, nil
}

// fileForm reads the whole file up front so it is released before the request goes out.
func fileForm(path string, params map[string]any) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open image %q: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range params {
		if err := w.WriteField(k, formValue(v)); err != nil {
			return nil, "", fmt.Errorf("write form field %q: %w", k, err)
		}
	}

	part, err := w.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read image %q: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

// urlForm never touches the caller's params map.
func urlForm(imageURL string, params map[string]any) (io.Reader, string) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, formValue(v))
	}
	form.Set("image_url", imageURL)
	return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded"
}

func formValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// errorMessage keeps the "error" value as sent: strings unquoted, anything else as raw JSON.
func errorMessage(raw []byte) string {
	var parsed struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return provider.DefaultErrorMessage
	}

	val := bytes.TrimSpace(parsed.Error)
	if len(val) == 0 || bytes.Equal(val, []byte("null")) {
		return provider.DefaultErrorMessage
	}

	var msg string
	if err := json.Unmarshal(val, &msg); err == nil {
		return msg
	}
	return string(val)
}
