package imaging

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const (
	// analysisLongEdge is the long-edge size images are downscaled to before
	// the vision call. Charts stay legible at this size and the upstream
	// payload shrinks considerably.
	analysisLongEdge = 1200
	analysisQuality  = 70

	// thumbnailWidth is the width of stored history thumbnails.
	thumbnailWidth   = 200
	thumbnailQuality = 60
)

// Normalize re-encodes an uploaded image for the vision call: decoded,
// downscaled to at most 1200px on the long edge, and re-encoded as JPEG.
// If the image cannot be decoded the original data URI is returned
// unchanged; the vision model sees whatever the client sent.
func Normalize(d *DataURI) string {
	img, err := decode(d)
	if err != nil {
		return d.Full
	}

	resized := scaleToLongEdge(img, analysisLongEdge)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: analysisQuality}); err != nil {
		return d.Full
	}
	return EncodeJPEGDataURI(buf.Bytes())
}

// Thumbnail renders a small JPEG preview for history storage. It returns
// nil when the image cannot be decoded; history entries then simply have
// no thumbnail.
func Thumbnail(d *DataURI) []byte {
	img, err := decode(d)
	if err != nil {
		return nil
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil
	}

	width := thumbnailWidth
	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}
	if bounds.Dx() < width {
		width = bounds.Dx()
		height = bounds.Dy()
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil
	}
	return buf.Bytes()
}

func decode(d *DataURI) (image.Image, error) {
	r := bytes.NewReader(d.Payload)
	switch d.MIMEType {
	case "image/png":
		return png.Decode(r)
	case "image/jpeg":
		return jpeg.Decode(r)
	case "image/gif":
		return gif.Decode(r)
	case "image/webp":
		return webp.Decode(r)
	}
	img, _, err := image.Decode(r)
	return img, err
}

func scaleToLongEdge(img image.Image, longEdge int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= longEdge && h <= longEdge {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = longEdge
		nh = h * longEdge / w
	} else {
		nh = longEdge
		nw = w * longEdge / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}
