package resolver

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotedeck/logocache/internal/upstream"
)

type fakeClient struct {
	branding    *upstream.Branding
	brandingErr error
	images      map[string]*upstream.Image
	imageErrs   map[string]error
}

func (f *fakeClient) Branding(_ context.Context, _ string) (*upstream.Branding, error) {
	if f.brandingErr != nil {
		return nil, f.brandingErr
	}
	return f.branding, nil
}

func (f *fakeClient) FetchImage(_ context.Context, url string) (*upstream.Image, error) {
	if err, ok := f.imageErrs[url]; ok {
		return nil, err
	}
	img, ok := f.images[url]
	if !ok {
		return nil, upstream.ErrUpstream
	}
	return img, nil
}

func image(url string, size int) *upstream.Image {
	return &upstream.Image{URL: url, Data: bytes.Repeat([]byte{0xAB}, size), ContentType: "image/png"}
}

func TestResolveSelection(t *testing.T) {
	t.Run("SmallerWins", func(t *testing.T) {
		r := New(&fakeClient{
			branding: &upstream.Branding{LogoURL: "logo", IconURL: "icon"},
			images: map[string]*upstream.Image{
				"logo": image("logo", 1200),
				"icon": image("icon", 500),
			},
		})

		resolved, err := r.Resolve(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Equal(t, 500, resolved.Bytes)
		assert.Equal(t, "icon", resolved.SourceURL)
	})

	t.Run("TieFavorsLogo", func(t *testing.T) {
		r := New(&fakeClient{
			branding: &upstream.Branding{LogoURL: "logo", IconURL: "icon"},
			images: map[string]*upstream.Image{
				"logo": image("logo", 500),
				"icon": image("icon", 500),
			},
		})

		resolved, err := r.Resolve(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Equal(t, "logo", resolved.SourceURL)
	})

	t.Run("OnlyIconPresent", func(t *testing.T) {
		r := New(&fakeClient{
			branding: &upstream.Branding{IconURL: "icon"},
			images:   map[string]*upstream.Image{"icon": image("icon", 300)},
		})

		resolved, err := r.Resolve(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Equal(t, "icon", resolved.SourceURL)
	})

	t.Run("NoBrandingURLs", func(t *testing.T) {
		r := New(&fakeClient{branding: &upstream.Branding{}})

		_, err := r.Resolve(context.Background(), "AAPL")
		assert.ErrorIs(t, err, upstream.ErrNotFound)
	})
}

func TestResolveFailures(t *testing.T) {
	t.Run("OneFetchFailsOtherWins", func(t *testing.T) {
		r := New(&fakeClient{
			branding:  &upstream.Branding{LogoURL: "logo", IconURL: "icon"},
			images:    map[string]*upstream.Image{"logo": image("logo", 900)},
			imageErrs: map[string]error{"icon": upstream.ErrUpstream},
		})

		resolved, err := r.Resolve(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Equal(t, "logo", resolved.SourceURL)
	})

	t.Run("BothFetchesFail", func(t *testing.T) {
		r := New(&fakeClient{
			branding: &upstream.Branding{LogoURL: "logo", IconURL: "icon"},
			imageErrs: map[string]error{
				"logo": upstream.ErrUpstream,
				"icon": upstream.ErrUpstream,
			},
		})

		_, err := r.Resolve(context.Background(), "AAPL")
		assert.ErrorIs(t, err, upstream.ErrUpstream)
	})

	t.Run("RateLimitOnImageFetchAborts", func(t *testing.T) {
		r := New(&fakeClient{
			branding:  &upstream.Branding{LogoURL: "logo", IconURL: "icon"},
			images:    map[string]*upstream.Image{"logo": image("logo", 900)},
			imageErrs: map[string]error{"icon": &upstream.RateLimitedError{RetryAfter: "30"}},
		})

		_, err := r.Resolve(context.Background(), "AAPL")
		rle, ok := upstream.IsRateLimited(err)
		require.True(t, ok)
		assert.Equal(t, "30", rle.RetryAfter)
	})

	t.Run("OverviewErrorPropagates", func(t *testing.T) {
		wantErr := errors.New("boom")
		r := New(&fakeClient{brandingErr: wantErr})

		_, err := r.Resolve(context.Background(), "AAPL")
		assert.ErrorIs(t, err, wantErr)
	})
}

func TestContentTypeFallback(t *testing.T) {
	tests := []struct {
		name string
		img  *upstream.Image
		want string
	}{
		{"HeaderWins", &upstream.Image{URL: "x.png", ContentType: "image/svg+xml"}, "image/svg+xml"},
		{"SVGByExtension", &upstream.Image{URL: "https://img/logo.SVG"}, "image/svg+xml"},
		{"PNGByExtension", &upstream.Image{URL: "https://img/logo.png?v=2"}, "image/png"},
		{"JPEGByExtension", &upstream.Image{URL: "https://img/photo.jpeg"}, "image/jpeg"},
		{"UnknownExtension", &upstream.Image{URL: "https://img/logo"}, "application/octet-stream"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, contentType(tc.img))
		})
	}
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "logos/AAPL.svg", ObjectKey("AAPL", "image/svg+xml"))
	assert.Equal(t, "logos/MSFT.png", ObjectKey("MSFT", "image/png"))
	assert.Equal(t, "logos/TSLA.jpg", ObjectKey("TSLA", "image/jpeg"))
	assert.Equal(t, "logos/NVDA.bin", ObjectKey("NVDA", "application/octet-stream"))
}
