package acquire

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

const (
	coverSize     = 320
	coverMaxBytes = 200 * 1024
)

// prepareCover turns the downloaded thumbnail at srcPath into a square
// 320x320 JPEG at dstPath. Transparent and paletted sources are flattened
// onto white first since JPEG has no alpha channel.
func prepareCover(srcPath, dstPath string) error {
	img, err := decodeImage(srcPath)
	if err != nil {
		return err
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return fmt.Errorf("empty image %s", srcPath)
	}

	flat := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(flat, flat.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, bounds.Min, draw.Over)

	square := cropSquare(flat)
	m := resize.Resize(coverSize, coverSize, square, resize.Lanczos3)

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create cover file: %w", err)
	}
	if err := jpeg.Encode(out, m, &jpeg.Options{Quality: 85}); err != nil {
		_ = out.Close()
		return err
	}
	if stat, err := out.Stat(); err == nil && stat.Size() > coverMaxBytes {
		if _, err := out.Seek(0, io.SeekStart); err != nil {
			_ = out.Close()
			return err
		}
		if err := out.Truncate(0); err != nil {
			_ = out.Close()
			return err
		}
		if err := jpeg.Encode(out, m, &jpeg.Options{Quality: 60}); err != nil {
			_ = out.Close()
			return err
		}
	}
	return out.Close()
}

// cropSquare keeps the centre of img. Video thumbnails are letterboxed 16:9
// frames, the centre square is where the artwork sits.
func cropSquare(img *image.RGBA) image.Image {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	return img.SubImage(image.Rect(x0, y0, x0+side, y0+side))
}

func decodeImage(filePath string) (image.Image, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("image decode error %s: %w", filePath, err)
	}
	return img, nil
}
