package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/joestump/bookmarks/internal/download"
	"github.com/joestump/bookmarks/internal/logger"
)

const (
	// fetchTimeout bounds each HTTP request, page and image alike.
	fetchTimeout = 10 * time.Second
	// maxBodyBytes caps how much of a response is read.
	maxBodyBytes = 5 << 20
	userAgent    = "bookmarks-thumbnailer/1.0"
)

var (
	// ErrNoImage is returned when a page names no usable image.
	ErrNoImage = errors.New("no image found")
	// ErrTooLarge is returned when a response exceeds the size cap.
	ErrTooLarge = errors.New("response too large")
)

// imageSelectors are tried in order; the first match wins.
var imageSelectors = []struct {
	selector string
	attr     string
}{
	{`meta[property="og:image"]`, "content"},
	{`meta[property="og:image:url"]`, "content"},
	{`meta[name="twitter:image"]`, "content"},
	{`meta[property="twitter:image"]`, "content"},
	{`link[rel="image_src"]`, "href"},
	{`link[rel="apple-touch-icon"]`, "href"},
	{`link[rel="icon"]`, "href"},
	{`link[rel="shortcut icon"]`, "href"},
}

// HTTPFetcher downloads thumbnails. An image URL is returned as is; for an
// HTML page the preview image it advertises is downloaded instead.
type HTTPFetcher struct {
	client *http.Client
	log    logger.Logger
}

var _ download.Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher returns a fetcher using client, or a client with a default
// timeout when client is nil.
func NewHTTPFetcher(client *http.Client, log logger.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &HTTPFetcher{client: client, log: log.Named("thumbnail")}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	body, ctype, base, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if isImage(ctype) {
		return body, nil
	}
	if !isHTML(ctype) {
		return nil, fmt.Errorf("%w: %s serves %s", ErrNoImage, rawURL, ctype)
	}

	imageURL, err := findImage(body, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rawURL, err)
	}
	f.log.Debug("found preview image", logger.String("page", rawURL), logger.String("image", imageURL))

	img, ctype, _, err := f.get(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	if !isImage(ctype) {
		return nil, fmt.Errorf("%w: %s serves %s", ErrNoImage, imageURL, ctype)
	}
	return img, nil
}

// get performs a GET and returns the body, its media type and the final URL
// after redirects.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) ([]byte, string, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, "", nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*,text/html;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", nil, fmt.Errorf("GET %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, "", nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if len(body) > maxBodyBytes {
		return nil, "", nil, fmt.Errorf("%w: %s", ErrTooLarge, rawURL)
	}

	ctype := resp.Header.Get("Content-Type")
	if ctype == "" {
		ctype = http.DetectContentType(body)
	}
	mediaType, _, err := mime.ParseMediaType(ctype)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(ctype, ";")[0]))
	}
	return body, mediaType, resp.Request.URL, nil
}

// findImage returns the absolute URL of the first preview image declared
// in page.
func findImage(page []byte, base *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	for _, s := range imageSelectors {
		val, ok := doc.Find(s.selector).First().Attr(s.attr)
		val = strings.TrimSpace(val)
		if !ok || val == "" {
			continue
		}
		ref, err := url.Parse(val)
		if err != nil {
			continue
		}
		return base.ResolveReference(ref).String(), nil
	}
	return "", ErrNoImage
}

func isImage(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/")
}

func isHTML(mediaType string) bool {
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
