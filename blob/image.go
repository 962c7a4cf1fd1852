////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package blob

import (
	"bytes"
	"image"
	"image/jpeg"

	// Decoders for uploaded pictures
	_ "image/gif"
	_ "image/png"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// JPEGContentType is the content type of every prepared image.
const JPEGContentType = "image/jpeg"

// ErrInvalidImage is returned for data that does not decode as an image.
var ErrInvalidImage = errors.New("invalid image")

// PrepareImage decodes a JPEG, PNG or GIF image, shrinks it to fit within
// maxDimension pixels on each side and encodes it as a JPEG. Images already
// small enough keep their size.
func PrepareImage(data []byte, maxDimension uint, quality int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.WithMessagef(ErrInvalidImage, "%v", err)
	}

	bounds := img.Bounds()
	if maxDimension > 0 && (uint(bounds.Dx()) > maxDimension ||
		uint(bounds.Dy()) > maxDimension) {
		img = resize.Thumbnail(maxDimension, maxDimension, img, resize.Lanczos3)
		jww.DEBUG.Printf("Resized %s image from %dx%d to %dx%d", format,
			bounds.Dx(), bounds.Dy(), img.Bounds().Dx(), img.Bounds().Dy())
	}

	var buf bytes.Buffer
	err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode image")
	}
	return buf.Bytes(), nil
}
