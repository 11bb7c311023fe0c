// Package fetch downloads the asset a detection request points at into a
// temporary file, enforcing a size cap and a timeout. http(s) URLs and
// s3://bucket/key objects are supported.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// DefaultMaxSize is 250 MB.
const DefaultMaxSize = 262144000

// ObjectGetter is the subset of the S3 client the downloader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Options configures a Downloader. Zero values get defaults.
type Options struct {
	UserAgent string
	MaxSize   int64
	Timeout   time.Duration
	TempDir   string

	// HTTPClient overrides the client used for http(s) URLs.
	HTTPClient *http.Client

	// S3 overrides the S3 client. When nil, one is built from the default
	// AWS config on first use.
	S3 ObjectGetter
}

// Asset is a downloaded file on local disk.
type Asset struct {
	Path string
	Size int64

	// Cleanup removes the file. Safe to call more than once.
	Cleanup func()
}

// Downloader fetches assets into temp files.
type Downloader struct {
	userAgent string
	maxSize   int64
	timeout   time.Duration
	tempDir   string
	client    *http.Client

	s3Once sync.Once
	s3     ObjectGetter
	s3Err  error
}

// NewDownloader creates a Downloader.
func NewDownloader(opts Options) *Downloader {
	d := &Downloader{
		userAgent: opts.UserAgent,
		maxSize:   opts.MaxSize,
		timeout:   opts.Timeout,
		tempDir:   opts.TempDir,
		client:    opts.HTTPClient,
		s3:        opts.S3,
	}
	if d.maxSize <= 0 {
		d.maxSize = DefaultMaxSize
	}
	if d.timeout <= 0 {
		d.timeout = 10 * time.Second
	}
	if d.client == nil {
		d.client = &http.Client{}
	}
	if d.s3 != nil {
		d.s3Once.Do(func() {})
	}
	return d
}

// Fetch downloads rawURL. Failures are *StatusError values.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (*Asset, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, badRequest("malformed url", err)
	}

	log.Info().
		Str("operation", "download:fetch").
		Str("url", rawURL).
		Int64("maxSize", d.maxSize).
		Msg("Starting download")

	var asset *Asset
	switch u.Scheme {
	case "http", "https":
		asset, err = d.fetchHTTP(ctx, rawURL)
	case "s3":
		asset, err = d.fetchS3(ctx, u, rawURL)
	default:
		return nil, badRequest("malformed url", fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("operation", "download:fetch").
		Str("url", rawURL).
		Int64("size", asset.Size).
		Msg("Download completed")
	return asset, nil
}

func (d *Downloader) fetchHTTP(ctx context.Context, rawURL string) (*Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, badRequest("malformed url", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept-Encoding", "zstd, gzip")

	resp, err := d.client.Do(req)
	if err != nil {
		isTimeout := errors.Is(err, context.DeadlineExceeded)
		msg := "Download failed"
		if isTimeout {
			msg = "Download timed out"
		}
		log.Error().Err(err).
			Str("operation", "download:fetch").
			Str("url", rawURL).
			Bool("isTimeout", isTimeout).
			Msg(msg)
		return nil, internal("An error occurred while fetching content", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Str("operation", "download:fetch").
			Str("url", rawURL).
			Int("status", resp.StatusCode).
			Msg("Download received non-OK status")
		return nil, notFound(fmt.Sprintf("Target resource could not be fetched (Received status: %d, target: %s)", resp.StatusCode, rawURL), nil)
	}

	if resp.ContentLength > d.maxSize {
		log.Warn().
			Str("operation", "download:fetch").
			Str("url", rawURL).
			Int64("contentLength", resp.ContentLength).
			Int64("maxSize", d.maxSize).
			Msg("Download rejected due to size limit")
		return nil, badRequest(fmt.Sprintf("Max size exceeded (%d > %d) on response", resp.ContentLength, d.maxSize), nil)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, internal("An error occurred while fetching content", err)
	}
	defer body.Close()

	return d.writeTemp(body)
}

// decodeBody undoes the Content-Encoding. Setting Accept-Encoding by hand
// turns off the transport's transparent gzip handling, so gzip is handled
// here alongside zstd.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return zr, nil
	case "zstd":
		dec, err := zstd.NewReader(resp.Body, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd body: %w", err)
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}
}

func (d *Downloader) fetchS3(ctx context.Context, u *url.URL, rawURL string) (*Asset, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return nil, badRequest("malformed url", errors.New("s3 url has no object key"))
	}

	client, err := d.s3Client(ctx)
	if err != nil {
		return nil, internal("An error occurred while fetching content", err)
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			log.Warn().Str("operation", "download:fetch").Str("url", rawURL).Msg("S3 object not found")
			return nil, notFound(fmt.Sprintf("Target resource could not be fetched (target: %s)", rawURL), err)
		}
		log.Error().Err(err).Str("operation", "download:fetch").Str("url", rawURL).Msg("S3 GetObject failed")
		return nil, internal("An error occurred while fetching content", err)
	}
	defer out.Body.Close()

	if size := aws.ToInt64(out.ContentLength); size > d.maxSize {
		return nil, badRequest(fmt.Sprintf("Max size exceeded (%d > %d) on response", size, d.maxSize), nil)
	}

	return d.writeTemp(out.Body)
}

func (d *Downloader) s3Client(ctx context.Context) (ObjectGetter, error) {
	d.s3Once.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			d.s3Err = fmt.Errorf("load AWS config: %w", err)
			return
		}
		d.s3 = s3.NewFromConfig(cfg)
	})
	return d.s3, d.s3Err
}

// writeTemp streams r into a new temp file, failing once more than maxSize
// bytes arrive. Content-Length may be absent or describe the compressed
// body, so the cap is enforced on what is actually written.
func (d *Downloader) writeTemp(r io.Reader) (*Asset, error) {
	f, err := os.CreateTemp(d.tempDir, "asset-*")
	if err != nil {
		return nil, internal("An error occurred while fetching content", fmt.Errorf("create temp file: %w", err))
	}
	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to remove downloaded asset")
		}
	}

	n, err := io.Copy(f, io.LimitReader(r, d.maxSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return nil, internal("An error occurred while fetching content", err)
	}
	if n > d.maxSize {
		cleanup()
		return nil, badRequest(fmt.Sprintf("Max size exceeded (> %d) on response body", d.maxSize), nil)
	}

	return &Asset{Path: path, Size: n, Cleanup: cleanup}, nil
}
