package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func newTestDownloader(t *testing.T, max int64) *Downloader {
	t.Helper()
	return NewDownloader(Options{
		UserAgent: "test-agent/1.0",
		MaxSize:   max,
		Timeout:   2 * time.Second,
		TempDir:   t.TempDir(),
	})
}

func statusCode(t *testing.T, err error) int {
	t.Helper()
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	return se.Code
}

func readAsset(t *testing.T, a *Asset) string {
	t.Helper()
	data, err := os.ReadFile(a.Path)
	if err != nil {
		t.Fatalf("read asset: %v", err)
	}
	return string(data)
}

func TestFetch_HTTPSuccess(t *testing.T) {
	var gotUA, gotAE string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAE = r.Header.Get("Accept-Encoding")
		w.Write([]byte("hello media"))
	}))
	defer srv.Close()

	d := newTestDownloader(t, 1024)
	asset, err := d.Fetch(context.Background(), srv.URL+"/file.png")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	defer asset.Cleanup()

	if got := readAsset(t, asset); got != "hello media" {
		t.Errorf("body = %q, want %q", got, "hello media")
	}
	if asset.Size != int64(len("hello media")) {
		t.Errorf("Size = %d, want %d", asset.Size, len("hello media"))
	}
	if gotUA != "test-agent/1.0" {
		t.Errorf("User-Agent = %q, want test-agent/1.0", gotUA)
	}
	if !strings.Contains(gotAE, "zstd") || !strings.Contains(gotAE, "gzip") {
		t.Errorf("Accept-Encoding = %q, want zstd and gzip", gotAE)
	}

	asset.Cleanup()
	if _, err := os.Stat(asset.Path); !os.IsNotExist(err) {
		t.Errorf("asset file still exists after Cleanup")
	}
	asset.Cleanup()
}

func TestFetch_EncodedBodies(t *testing.T) {
	payload := strings.Repeat("frame-data ", 100)

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write([]byte(payload))
	gw.Close()

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	zs := enc.EncodeAll([]byte(payload), nil)
	enc.Close()

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"identity", "", []byte(payload)},
		{"gzip", "gzip", gz.Bytes()},
		{"zstd", "zstd", zs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				w.Write(tt.body)
			}))
			defer srv.Close()

			asset, err := newTestDownloader(t, 1<<20).Fetch(context.Background(), srv.URL)
			if err != nil {
				t.Fatalf("Fetch() error: %v", err)
			}
			defer asset.Cleanup()
			if got := readAsset(t, asset); got != payload {
				t.Errorf("decoded body mismatch: got %d bytes, want %d", len(got), len(payload))
			}
		})
	}
}

func TestFetch_HTTPFailures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode int
		wantMsg  string
	}{
		{
			name: "upstream 404",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			wantCode: http.StatusNotFound,
			wantMsg:  "Received status: 404",
		},
		{
			name: "upstream 503",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantCode: http.StatusNotFound,
			wantMsg:  "Received status: 503",
		},
		{
			name: "declared length over max",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Length", strconv.Itoa(64))
				w.Write(bytes.Repeat([]byte("x"), 64))
			},
			wantCode: http.StatusBadRequest,
			wantMsg:  "Max size exceeded (64 > 16)",
		},
		{
			name: "streamed body over max",
			handler: func(w http.ResponseWriter, r *http.Request) {
				for i := 0; i < 8; i++ {
					w.Write([]byte("xxxx"))
					w.(http.Flusher).Flush()
				}
			},
			wantCode: http.StatusBadRequest,
			wantMsg:  "Max size exceeded",
		},
		{
			name: "unsupported encoding",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", "br")
				w.Write([]byte("x"))
			},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			asset, err := newTestDownloader(t, 16).Fetch(context.Background(), srv.URL)
			if err == nil {
				asset.Cleanup()
				t.Fatal("expected error, got nil")
			}
			if code := statusCode(t, err); code != tt.wantCode {
				t.Errorf("status = %d, want %d (err: %v)", code, tt.wantCode, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestFetch_StreamedOversizeLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush()
		w.Write(bytes.Repeat([]byte("y"), 100))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(Options{MaxSize: 10, TempDir: dir})
	if _, err := d.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected size error")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected temp dir to be empty, found %d entries", len(entries))
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	d := NewDownloader(Options{Timeout: 50 * time.Millisecond, TempDir: t.TempDir()})
	_, err := d.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if code := statusCode(t, err); code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", code)
	}
}

func TestFetch_MalformedURL(t *testing.T) {
	d := newTestDownloader(t, 1024)
	for _, raw := range []string{"", "not a url", "ftp://example.com/a.png", "file:///etc/passwd", "http://", "s3://bucket-only"} {
		t.Run(raw, func(t *testing.T) {
			_, err := d.Fetch(context.Background(), raw)
			if err == nil {
				t.Fatalf("Fetch(%q): expected error", raw)
			}
			if code := statusCode(t, err); code != http.StatusBadRequest {
				t.Errorf("Fetch(%q) status = %d, want 400", raw, code)
			}
		})
	}
}

type fakeS3 struct {
	body   string
	length *int64
	err    error

	gotBucket, gotKey string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gotBucket = aws.ToString(in.Bucket)
	f.gotKey = aws.ToString(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(f.body)),
		ContentLength: f.length,
	}, nil
}

func TestFetch_S3(t *testing.T) {
	fake := &fakeS3{body: "s3 bytes", length: aws.Int64(8)}
	d := NewDownloader(Options{MaxSize: 1024, TempDir: t.TempDir(), S3: fake})

	asset, err := d.Fetch(context.Background(), "s3://media-bucket/uploads/clip.mp4")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	defer asset.Cleanup()

	if fake.gotBucket != "media-bucket" || fake.gotKey != "uploads/clip.mp4" {
		t.Errorf("GetObject(%q, %q), want (media-bucket, uploads/clip.mp4)", fake.gotBucket, fake.gotKey)
	}
	if got := readAsset(t, asset); got != "s3 bytes" {
		t.Errorf("body = %q, want %q", got, "s3 bytes")
	}
}

func TestFetch_S3Failures(t *testing.T) {
	tests := []struct {
		name     string
		fake     *fakeS3
		wantCode int
	}{
		{"no such key", &fakeS3{err: &types.NoSuchKey{}}, http.StatusNotFound},
		{"no such bucket", &fakeS3{err: &types.NoSuchBucket{}}, http.StatusNotFound},
		{"other error", &fakeS3{err: errors.New("throttled")}, http.StatusInternalServerError},
		{"too large", &fakeS3{body: "x", length: aws.Int64(4096)}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDownloader(Options{MaxSize: 1024, TempDir: t.TempDir(), S3: tt.fake})
			_, err := d.Fetch(context.Background(), "s3://bucket/key.png")
			if err == nil {
				t.Fatal("expected error")
			}
			if code := statusCode(t, err); code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
		})
	}
}
