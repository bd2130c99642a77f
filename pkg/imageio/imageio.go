// Package imageio loads radiographs into float images and writes them back.
//
// FITS files go through astrogo/fitsio with BSCALE and BZERO applied. Other
// formats (TIFF, PNG, JPEG) are decoded with bild's imgio and converted to
// grey values without rescaling, so 16-bit detector counts survive.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/astrogo/fitsio"
	_ "golang.org/x/image/tiff"

	"bbscatter/internal/models"
)

// Load reads the image at path, choosing the decoder from the extension.
func Load(path string) (*models.Image, error) {
	if isFITS(path) {
		return LoadFITS(path)
	}
	img, err := imgio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return FromImage(img), nil
}

func isFITS(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fits", ".fit", ".fts":
		return true
	}
	return false
}

// LoadFITS reads the primary HDU of a FITS file as a rows x cols image.
// NAXIS1 is the column count and NAXIS2 the row count.
func LoadFITS(path string) (*models.Image, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer r.Close()

	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read FITS file %s: %w", path, err)
	}
	defer f.Close()

	hdu, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%s: primary HDU is not an image", path)
	}
	hdr := hdu.Header()
	axes := hdr.Axes()
	if len(axes) != 2 {
		return nil, fmt.Errorf("%s: expected a 2D image, got %d axes", path, len(axes))
	}
	cols, rows := axes[0], axes[1]
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%s: empty image %dx%d", path, cols, rows)
	}

	data, err := readFITSData(hdu, hdr.Bitpix(), rows*cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	bzero := cardFloat(hdr, "BZERO", 0)
	bscale := cardFloat(hdr, "BSCALE", 1)
	for i := range data {
		data[i] = bzero + bscale*data[i]
	}
	return models.NewImageFromData(rows, cols, data)
}

// readFITSData decodes the n raw pixel values for the given BITPIX.
func readFITSData(hdu fitsio.Image, bitpix, n int) ([]float64, error) {
	switch bitpix {
	case 8:
		return readRaw[uint8](hdu, n)
	case 16:
		return readRaw[int16](hdu, n)
	case 32:
		return readRaw[int32](hdu, n)
	case 64:
		return readRaw[int64](hdu, n)
	case -32:
		return readRaw[float32](hdu, n)
	case -64:
		return readRaw[float64](hdu, n)
	default:
		return nil, fmt.Errorf("unsupported BITPIX %d", bitpix)
	}
}

// readRaw reads n values of type T. fitsio resizes the destination within
// its capacity, so the slice is allocated up front.
func readRaw[T number](hdu fitsio.Image, n int) ([]float64, error) {
	raw := make([]T, n)
	if err := hdu.Read(&raw); err != nil {
		return nil, err
	}
	return convert(raw), nil
}

type number interface {
	~uint8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

func convert[T number](raw []T) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}
	return out
}

// cardFloat returns the numeric value of a header card, or def when the card
// is missing or not numeric.
func cardFloat(hdr *fitsio.Header, key string, def float64) float64 {
	card := hdr.Get(key)
	if card == nil {
		return def
	}
	switch v := card.Value.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	case float32:
		return float64(v)
	default:
		return def
	}
}

// SaveFITS writes img as a single 64-bit float primary HDU.
func SaveFITS(path string, img *models.Image) error {
	if img.Empty() {
		return fmt.Errorf("save %s: empty image", path)
	}
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer w.Close()

	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("failed to create FITS file %s: %w", path, err)
	}

	hdu := fitsio.NewImage(-64, []int{img.Cols, img.Rows})
	defer hdu.Close()
	data := make([]float64, len(img.Data))
	copy(data, img.Data)
	if err := hdu.Write(&data); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := f.Write(hdu); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to finish %s: %w", path, err)
	}
	return w.Close()
}

// FromImage converts any decoded image to grey float values. 8-bit and
// 16-bit grey images keep their raw values; everything else goes through
// the 16-bit grey color model.
func FromImage(src image.Image) *models.Image {
	b := src.Bounds()
	out := models.NewImage(b.Dy(), b.Dx())

	switch img := src.(type) {
	case *image.Gray16:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out.Set(y-b.Min.Y, x-b.Min.X, float64(img.Gray16At(x, y).Y))
			}
		}
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out.Set(y-b.Min.Y, x-b.Min.X, float64(img.GrayAt(x, y).Y))
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.Gray16Model.Convert(src.At(x, y)).(color.Gray16)
				out.Set(y-b.Min.Y, x-b.Min.X, float64(g.Y))
			}
		}
	}
	return out
}
