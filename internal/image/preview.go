// Package image fetches candidate images through the media server and
// downscales them for constrained clients.
package image

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Preview is an image ready to be served.
type Preview struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	// Scaled is false when the source already fit and is passed through.
	Scaled bool
}

// jpegQuality trades detail for transfer size on slow clients.
const jpegQuality = 80

// Downscale fits data inside maxWidth x maxHeight, keeping the aspect
// ratio. Sources that fit are returned as they are. WebP has no encoder
// here, so a WebP source always comes back as JPEG; PNG stays PNG so logos
// keep their transparency. A bound of zero or less leaves that axis free.
func Downscale(data []byte, maxWidth, maxHeight int) (*Preview, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading image header: %w", err)
	}
	w, h := fit(cfg.Width, cfg.Height, maxWidth, maxHeight)
	if w == cfg.Width && h == cfg.Height && format != "webp" {
		return &Preview{Data: data, ContentType: "image/" + format, Width: w, Height: h}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", format, err)
	}
	var out image.Image = src
	if w != cfg.Width || h != cfg.Height {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	contentType := "image/jpeg"
	if format == "png" {
		contentType = "image/png"
		err = png.Encode(&buf, out)
	} else {
		err = jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("encoding preview: %w", err)
	}
	return &Preview{
		Data:        buf.Bytes(),
		ContentType: contentType,
		Width:       w,
		Height:      h,
		Scaled:      w != cfg.Width || h != cfg.Height,
	}, nil
}

// fit returns the largest size inside maxW x maxH with the aspect ratio of
// w x h, never smaller than one pixel per side.
func fit(w, h, maxW, maxH int) (int, int) {
	if maxW <= 0 {
		maxW = w
	}
	if maxH <= 0 {
		maxH = h
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	// Compare maxW/w against maxH/h without floats.
	if maxW*h <= maxH*w {
		return maxW, max((h*maxW+w/2)/w, 1)
	}
	return max((w*maxH+h/2)/h, 1), maxH
}
