// Package resolver picks the best cacheable logo image for a ticker.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/quotedeck/logocache/internal/upstream"
)

// Resolved is the winning image for a ticker, ready to persist.
type Resolved struct {
	Data        []byte
	ContentType string
	Bytes       int
	SourceURL   string
}

// Client is the part of the upstream client the resolver needs.
type Client interface {
	Branding(ctx context.Context, ticker string) (*upstream.Branding, error)
	FetchImage(ctx context.Context, url string) (*upstream.Image, error)
}

// Resolver fetches branding candidates and selects one winner.
type Resolver struct {
	client Client
}

// New creates a Resolver backed by the given upstream client.
func New(client Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve returns the chosen logo image for a ticker.
//
// The branding record may reference a full logo and a smaller icon. Both are
// fetched concurrently and the smaller one by byte length wins, ties
// favoring the logo. A candidate whose fetch fails is treated as absent; a
// rate-limit on either fetch aborts the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, ticker string) (*Resolved, error) {
	branding, err := r.client.Branding(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if branding.LogoURL == "" && branding.IconURL == "" {
		return nil, fmt.Errorf("%w: ticker %s has no branding URLs", upstream.ErrNotFound, ticker)
	}

	logo, logoErr := r.fetchBoth(ctx, branding.LogoURL, branding.IconURL)
	if logoErr != nil {
		return nil, logoErr
	}

	chosen := chooseSmaller(logo[0], logo[1])
	if chosen == nil {
		return nil, fmt.Errorf("%w: all image candidates failed for %s", upstream.ErrUpstream, ticker)
	}

	return &Resolved{
		Data:        chosen.Data,
		ContentType: contentType(chosen),
		Bytes:       len(chosen.Data),
		SourceURL:   chosen.URL,
	}, nil
}

// fetchBoth downloads the present candidates concurrently and joins both
// before returning. Index 0 is the primary (logo), index 1 the secondary
// (icon).
func (r *Resolver) fetchBoth(ctx context.Context, logoURL, iconURL string) ([2]*upstream.Image, error) {
	var (
		images [2]*upstream.Image
		errs   [2]error
		wg     sync.WaitGroup
	)

	fetch := func(i int, url string) {
		defer wg.Done()
		images[i], errs[i] = r.client.FetchImage(ctx, url)
	}

	if logoURL != "" {
		wg.Add(1)
		go fetch(0, logoURL)
	}
	if iconURL != "" {
		wg.Add(1)
		go fetch(1, iconURL)
	}
	wg.Wait()

	// A rate limit on either candidate must stop the cycle; any other fetch
	// failure just drops that candidate.
	for i, err := range errs {
		if err == nil {
			continue
		}
		if rle, ok := upstream.IsRateLimited(err); ok {
			return images, rle
		}
		images[i] = nil
	}
	return images, nil
}

func chooseSmaller(a, b *upstream.Image) *upstream.Image {
	switch {
	case a != nil && b != nil:
		if len(a.Data) <= len(b.Data) {
			return a
		}
		return b
	case a != nil:
		return a
	default:
		return b
	}
}

// contentType returns the response header value, falling back to a filename
// extension heuristic when the header is absent.
func contentType(img *upstream.Image) string {
	if img.ContentType != "" {
		return img.ContentType
	}
	lower := strings.ToLower(img.URL)
	switch {
	case strings.Contains(lower, ".svg"):
		return "image/svg+xml"
	case strings.Contains(lower, ".png"):
		return "image/png"
	case strings.Contains(lower, ".jpg"), strings.Contains(lower, ".jpeg"):
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// ObjectKey derives the blob store key for a ticker from the chosen content
// type.
func ObjectKey(ticker, mime string) string {
	return "logos/" + ticker + extensionFor(mime)
}

func extensionFor(mime string) string {
	switch {
	case strings.Contains(mime, "svg"):
		return ".svg"
	case strings.Contains(mime, "png"):
		return ".png"
	case strings.Contains(mime, "jpeg"), strings.Contains(mime, "jpg"):
		return ".jpg"
	case strings.Contains(mime, "webp"):
		return ".webp"
	default:
		return ".bin"
	}
}
