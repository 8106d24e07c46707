package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type nameOnly string

func (n nameOnly) Name() string { return string(n) }

type fakeRemover struct{ nameOnly }

func (fakeRemover) RemoveBackground(ctx context.Context, req *BackgroundRemovalRequest) (*Response[BackgroundRemovalResult], error) {
	return &Response[BackgroundRemovalResult]{}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(fakeRemover{"picsart"}))
	require.NoError(t, r.Register(nameOnly("ocr-only")))
	require.ErrorIs(t, r.Register(nameOnly("picsart")), ErrProviderAlreadyRegistered)
	require.Error(t, r.Register(nameOnly("")))
	require.Error(t, r.Register(nil))

	br, err := r.BackgroundRemover("picsart")
	require.NoError(t, err)
	require.Equal(t, "picsart", br.Name())

	_, err = r.BackgroundRemover("ocr-only")
	require.ErrorIs(t, err, ErrCapabilityNotSupported)

	_, err = r.BackgroundRemover("missing")
	require.ErrorIs(t, err, ErrProviderNotFound)

	require.Equal(t, []string{"picsart"}, r.BackgroundRemovers())
}

func TestBackgroundRemovalRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *BackgroundRemovalRequest
		wantErr bool
	}{
		{name: "file", req: &BackgroundRemovalRequest{Source: FileSource{Path: "a.png"}}},
		{name: "url", req: &BackgroundRemovalRequest{Source: URLSource{URL: "http://a/b.png"}}},
		{name: "nil", req: nil, wantErr: true},
		{name: "no source", req: &BackgroundRemovalRequest{}, wantErr: true},
		{name: "blank file", req: &BackgroundRemovalRequest{Source: FileSource{}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
		})
	}
}
