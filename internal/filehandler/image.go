package filehandler

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	ico "github.com/biessek/golang-ico"
	"github.com/evanoberholster/imagemeta"
	"github.com/gen2brain/avif"
	"github.com/rs/zerolog/log"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultFrameSize is the square edge length the classifier expects.
const DefaultFrameSize = 299

// maxSVGScale caps how far past the output size an SVG is rendered.
const maxSVGScale = 8

// flattenBackground is 18% grey. Transparent pixels are composited onto it.
var flattenBackground = color.RGBA{R: 119, G: 119, B: 119, A: 255}

// decoders maps the MIME types image.Decode cannot sniff on its own to
// their decoders.
var decoders = map[string]func(io.Reader) (image.Image, error){
	"image/x-icon": ico.Decode,
	"image/avif":   avif.Decode,
}

// ImageOptions controls PrepareImage.
type ImageOptions struct {
	// Size is the output edge length. Zero means DefaultFrameSize.
	Size int
}

// PrepareImage turns a still image into classifier input: decoded (first
// frame for animations), rotated upright per EXIF, flattened onto grey,
// scaled to cover Size x Size and centre-cropped, and encoded as PNG.
// Every supported format is decoded in process.
func PrepareImage(ctx context.Context, path, mime string, opts ImageOptions) ([]byte, error) {
	size := opts.Size
	if size <= 0 {
		size = DefaultFrameSize
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("operation", "detect:sensitivity").
		Str("file", filepath.Base(path)).
		Str("mime", mime).
		Int("size", size).
		Msg("Preparing image for classification")

	var (
		img image.Image
		err error
	)
	if mime == MIMESVG {
		img, err = rasterizeSVG(path, size)
	} else {
		img, err = decodeFile(path, decoders[mime])
	}
	if err != nil {
		return nil, err
	}

	img = applyOrientation(img, readOrientation(path))

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: flattenBackground}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, coverRect(img.Bounds(), size, size), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}

	log.Debug().
		Str("file", filepath.Base(path)).
		Int("srcWidth", img.Bounds().Dx()).
		Int("srcHeight", img.Bounds().Dy()).
		Int("outputSize", buf.Len()).
		Msg("Image prepared")

	return buf.Bytes(), nil
}

// coverRect returns the centred part of b with the aspect ratio of w x h,
// so that scaling it fills the target with nothing stretched.
func coverRect(b image.Rectangle, w, h int) image.Rectangle {
	sw, sh := b.Dx(), b.Dy()
	if sw <= 0 || sh <= 0 || w <= 0 || h <= 0 {
		return b
	}
	if sw*h > sh*w {
		cw := max(sh*w/h, 1)
		x0 := b.Min.X + (sw-cw)/2
		return image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	}
	ch := max(sw*h/w, 1)
	y0 := b.Min.Y + (sh-ch)/2
	return image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
}

// decodeFile decodes path with decode, or with whichever registered format
// matches when decode is nil.
func decodeFile(path string, decode func(io.Reader) (image.Image, error)) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	if decode != nil {
		img, err := decode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		return img, nil
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	log.Debug().Str("format", format).Msg("Decoded image")
	return img, nil
}

// rasterizeSVG renders an SVG document so that its shorter side is size
// pixels. Documents without a usable viewBox render as size x size.
func rasterizeSVG(path string, size int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	icon, err := oksvg.ReadIconStream(f, oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}

	w, h := float64(size), float64(size)
	if vw, vh := icon.ViewBox.W, icon.ViewBox.H; vw > 0 && vh > 0 {
		scale := float64(size) / math.Min(vw, vh)
		w = math.Min(math.Round(vw*scale), float64(size*maxSVGScale))
		h = math.Min(math.Round(vh*scale), float64(size*maxSVGScale))
	}
	iw, ih := max(int(w), 1), max(int(h), 1)

	img := image.NewRGBA(image.Rect(0, 0, iw, ih))
	icon.SetTarget(0, 0, float64(iw), float64(ih))
	scanner := rasterx.NewScannerGV(iw, ih, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(iw, ih, scanner), 1)

	log.Debug().
		Str("file", filepath.Base(path)).
		Int("width", iw).
		Int("height", ih).
		Msg("Rasterized SVG")
	return img, nil
}

// readOrientation returns the EXIF orientation (1-8), or 1 when the file
// has none.
func readOrientation(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 1
	}
	defer f.Close()

	exifData, err := imagemeta.Decode(f)
	if err != nil {
		return 1
	}
	o := int(exifData.Orientation)
	if o < 1 || o > 8 {
		return 1
	}
	return o
}

// applyOrientation returns img transformed so that it displays upright.
func applyOrientation(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	swap := orientation >= 5
	dw, dh := w, h
	if swap {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch orientation {
			case 2: // mirror horizontal
				dx, dy = w-1-x, y
			case 3: // rotate 180
				dx, dy = w-1-x, h-1-y
			case 4: // mirror vertical
				dx, dy = x, h-1-y
			case 5: // transpose
				dx, dy = y, x
			case 6: // rotate 90 CW
				dx, dy = h-1-y, x
			case 7: // transverse
				dx, dy = h-1-y, w-1-x
			case 8: // rotate 270 CW
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
