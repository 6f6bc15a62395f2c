package invoice

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"
)

// Logos holds absolute URLs for HTML output and public paths for the PDF.
type Logos struct {
	BrandURL  string
	StampURL  string
	BrandPath string
	StampPath string
}

func ResolveLogos(brand, stamp, siteURL string) Logos {
	if brand == "" {
		brand = "/wander-logo.png"
	}
	if stamp == "" {
		stamp = "/wander-stamps-logo.png"
	}
	return Logos{
		BrandURL:  absoluteURL(brand, siteURL),
		StampURL:  absoluteURL(stamp, siteURL),
		BrandPath: publicPath(brand),
		StampPath: publicPath(stamp),
	}
}

func absoluteURL(path, siteURL string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return siteURL + publicPath(path)
}

func publicPath(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

const maxLogoEdge = 600

// loadLogoPNG reads a logo from the public directory and re-encodes it as a
// PNG no larger than maxLogoEdge. Remote logos are not embedded.
func loadLogoPNG(publicDir, path string) ([]byte, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	full := filepath.Join(publicDir, filepath.FromSlash(strings.TrimLeft(path, "/")))
	raw, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}

	var img image.Image
	if strings.EqualFold(filepath.Ext(full), ".webp") {
		img, err = webp.Decode(bytes.NewReader(raw), &decoder.Options{})
	} else {
		img, err = imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, fmt.Errorf("decode logo %s: %w", path, err)
	}

	b := img.Bounds()
	if b.Dx() > maxLogoEdge || b.Dy() > maxLogoEdge {
		img = imaging.Fit(img, maxLogoEdge, maxLogoEdge, imaging.Lanczos)
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.PNG); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
