// Package provider describes the contract between the service and third-party image APIs:
// capability interfaces, the background-removal request/response shapes and the error taxonomy.
package provider

import "context"

// Provider is implemented by every adapter. Capabilities are separate narrow interfaces.
type Provider interface {
	Name() string
}

// BackgroundRemover is the "remove background" capability.
type BackgroundRemover interface {
	Provider
	RemoveBackground(ctx context.Context, req *BackgroundRemovalRequest) (*Response[BackgroundRemovalResult], error)
}

// ImageSource is either FileSource or URLSource.
type ImageSource interface {
	isImageSource()
}

// FileSource points to an image on the local filesystem.
type FileSource struct {
	Path string
}

// URLSource points to an image the provider fetches by itself.
type URLSource struct {
	URL string
}

func (FileSource) isImageSource() {}
func (URLSource) isImageSource()  {}

type BackgroundRemovalRequest struct {
	Source ImageSource
	Params map[string]any // передаются провайдеру как есть
}

// NewBackgroundRemovalRequest builds a request from two optional inputs; exactly one of them must be set.
func NewBackgroundRemovalRequest(file, fileURL string, params map[string]any) (*BackgroundRemovalRequest, error) {
	switch {
	case file != "" && fileURL == "":
		return &BackgroundRemovalRequest{Source: FileSource{Path: file}, Params: params}, nil
	case fileURL != "" && file == "":
		return &BackgroundRemovalRequest{Source: URLSource{URL: fileURL}, Params: params}, nil
	default:
		return nil, ErrInvalidInput
	}
}

// Validate checks the source before any network activity.
func (r *BackgroundRemovalRequest) Validate() error {
	if r == nil {
		return ErrInvalidInput
	}
	switch s := r.Source.(type) {
	case FileSource:
		if s.Path == "" {
			return ErrInvalidInput
		}
	case URLSource:
		if s.URL == "" {
			return ErrInvalidInput
		}
	default:
		return ErrInvalidInput
	}
	return nil
}

type BackgroundRemovalResult struct {
	ImageB64         string `json:"image_b64"`
	ImageResourceURL string `json:"image_resource_url"`
}

// Response pairs the raw provider body with the standardized result.
type Response[T any] struct {
	OriginalResponse     string `json:"original_response"`
	StandardizedResponse T      `json:"standardized_response"`
}
