package invoice

import (
	_ "embed"
	"os"

	"github.com/gofiber/fiber/v2/log"
)

const pdfFontFamily = "DejaVuSans"

// DejaVu Sans covers the rupee sign, so the PDF prints amounts exactly as
// the HTML invoice does.
var (
	//go:embed fonts/DejaVuSans.ttf
	dejaVuSans []byte
	//go:embed fonts/DejaVuSans-Bold.ttf
	dejaVuSansBold []byte
)

// fontFaces returns the regular and bold TTF data. A configured font file
// replaces both faces.
func (r *Renderer) fontFaces() (regular, bold []byte) {
	if r.fontPath == "" {
		return dejaVuSans, dejaVuSansBold
	}
	data, err := os.ReadFile(r.fontPath)
	if err != nil {
		log.Warnf("[Invoice] PDF font %s unreadable, using DejaVu Sans: %v", r.fontPath, err)
		return dejaVuSans, dejaVuSansBold
	}
	return data, data
}
