// Package filehandler handles the media side of detection: sniffing what a
// downloaded file actually is, turning still images into classifier input,
// and running ffmpeg decode sessions that stream video frames to disk.
package filehandler

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const (
	MIMEOctetStream = "application/octet-stream"
	MIMESVG         = "image/svg+xml"

	// svgCheckLimit caps how much of an unknown file is read to look for
	// an <svg> root element.
	svgCheckLimit = 1 << 20
)

// FileType is the sniffed type of a file. Ext is empty when unknown.
type FileType struct {
	MIME string
	Ext  string
}

var (
	typeOctetStream = FileType{MIME: MIMEOctetStream}
	typeSVG         = FileType{MIME: MIMESVG, Ext: "svg"}
)

// Category names a group of MIME types that share handling.
type Category string

const (
	// CategorySafeFile is every type that is safe to serve back to a browser.
	CategorySafeFile Category = "safe-file"

	CategoryConvertibleImage                 Category = "convertible-image"
	CategoryAnimationConvertibleImage        Category = "animation-convertible-image"
	CategoryConvertibleImageWithBMP          Category = "convertible-image-with-bmp"
	CategoryAnimationConvertibleImageWithBMP Category = "animation-convertible-image-with-bmp"
)

var categories = map[Category][]string{
	CategorySafeFile: {
		"image/png", "image/gif", "image/jpeg", "image/webp", "image/avif",
		"image/apng", "image/bmp", "image/tiff", "image/x-icon",
		"audio/opus", "video/ogg", "audio/ogg", "application/ogg",
		"video/quicktime", "video/mp4", "audio/mp4", "video/x-m4v", "audio/x-m4a",
		"video/3gpp", "video/3gpp2",
		"video/mpeg", "audio/mpeg",
		"video/webm", "audio/webm",
		"audio/aac",
		"audio/x-flac", "audio/flac",
		"audio/vnd.wave", "audio/wav",
	},
	CategoryConvertibleImage: {
		"image/jpeg", "image/tiff", "image/png", "image/gif", "image/apng",
		"image/vnd.mozilla.apng", "image/webp", "image/avif", "image/svg+xml",
	},
	CategoryAnimationConvertibleImage: {
		"image/jpeg", "image/tiff", "image/png", "image/gif", "image/webp",
		"image/avif", "image/svg+xml",
	},
	CategoryConvertibleImageWithBMP: {
		"image/jpeg", "image/tiff", "image/png", "image/gif", "image/apng",
		"image/vnd.mozilla.apng", "image/webp", "image/avif", "image/svg+xml",
		"image/x-icon", "image/bmp",
	},
	CategoryAnimationConvertibleImageWithBMP: {
		"image/jpeg", "image/tiff", "image/png", "image/gif", "image/webp",
		"image/avif", "image/svg+xml", "image/x-icon", "image/bmp",
	},
}

// IsMimeImage reports whether mime belongs to the category.
func IsMimeImage(mime string, category Category) bool {
	for _, m := range categories[category] {
		if m == mime {
			return true
		}
	}
	return false
}

// IsVideoLike reports whether mime should go down the frame-decoding path.
func IsVideoLike(mime string) bool {
	return mime == "image/apng" || strings.HasPrefix(mime, "video/")
}

// DetectType sniffs the file's content. Empty files, unknown content, and
// types outside the safe list all come back as application/octet-stream.
func DetectType(path string) (FileType, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileType{}, fmt.Errorf("failed to stat file: %w", err)
	}

	log.Debug().
		Str("operation", "fileInfo:detectType").
		Int64("fileSize", info.Size()).
		Msg("Starting file type detection")

	if info.Size() == 0 {
		log.Warn().
			Str("operation", "fileInfo:detectType").
			Str("result", MIMEOctetStream).
			Msg("Empty file detected")
		return typeOctetStream, nil
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return FileType{}, fmt.Errorf("failed to detect file type: %w", err)
	}
	detected := mt.String()
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	if canon, ok := canonicalMIME[detected]; ok {
		detected = canon
	}

	if detected == MIMESVG {
		return typeSVG, nil
	}

	// Unknown or generic text/XML content may still be an SVG document.
	if mt.Is("text/xml") || mt.Is("application/xml") || mt.Is("text/plain") || mt.Is(MIMEOctetStream) {
		if checkSVG(path, info.Size()) {
			log.Info().
				Str("operation", "fileInfo:detectType").
				Str("originalMime", detected).
				Str("result", MIMESVG).
				Msg("File type detected as SVG")
			return typeSVG, nil
		}
		if mt.Is(MIMEOctetStream) || mt.Is("text/plain") {
			log.Info().
				Str("operation", "fileInfo:detectType").
				Str("result", MIMEOctetStream).
				Int64("fileSize", info.Size()).
				Msg("File type unknown")
			return typeOctetStream, nil
		}
	}

	if !IsMimeImage(detected, CategorySafeFile) {
		log.Info().
			Str("operation", "fileInfo:detectType").
			Str("detectedMime", detected).
			Str("result", MIMEOctetStream).
			Msg("File type not in safe-file list")
		return typeOctetStream, nil
	}

	result := FileType{MIME: fixMIME(detected), Ext: strings.TrimPrefix(mt.Extension(), ".")}
	log.Info().
		Str("operation", "fileInfo:detectType").
		Str("detectedMime", detected).
		Str("result", result.MIME).
		Str("ext", result.Ext).
		Msg("File type detected")
	return result, nil
}

func checkSVG(path string, size int64) bool {
	if size > svgCheckLimit {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("operation", "fileInfo:checkSvg").Msg("SVG check failed")
		return false
	}
	return isSVG(data)
}

// isSVG looks for an <svg> root element after any XML prolog, comments,
// and doctype.
func isSVG(data []byte) bool {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	for {
		data = bytes.TrimLeft(data, " \t\r\n")
		switch {
		case bytes.HasPrefix(data, []byte("<?")):
			end := bytes.Index(data, []byte("?>"))
			if end < 0 {
				return false
			}
			data = data[end+2:]
		case bytes.HasPrefix(data, []byte("<!--")):
			end := bytes.Index(data, []byte("-->"))
			if end < 0 {
				return false
			}
			data = data[end+3:]
		case bytes.HasPrefix(data, []byte("<!")):
			end := bytes.IndexByte(data, '>')
			if end < 0 {
				return false
			}
			data = data[end+1:]
		default:
			if !bytes.HasPrefix(data, []byte("<svg")) || len(data) < 5 {
				return false
			}
			c := data[4]
			return c == ' ' || c == '>' || c == '\t' || c == '\n' || c == '\r' || c == '/'
		}
	}
}

// canonicalMIME maps the sniffer's names onto the ones the category
// lists use.
var canonicalMIME = map[string]string{
	"image/vnd.mozilla.apng":   "image/apng",
	"image/vnd.microsoft.icon": "image/x-icon",
	"audio/x-wav":              "audio/wav",
	"audio/wave":               "audio/wav",
}

func fixMIME(mime string) string {
	switch mime {
	case "audio/x-flac":
		return "audio/flac"
	case "audio/vnd.wave":
		return "audio/wav"
	}
	return mime
}
