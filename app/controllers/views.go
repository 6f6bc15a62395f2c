package controllers

import (
	"time"

	"github.com/gofiber/template/html/v2"

	"github.com/wandernook/wandernook/internal/pkg/invoice"
)

// ViewEngine loads the server rendered admin pages from dir.
func ViewEngine(dir string, loc *time.Location) *html.Engine {
	engine := html.New(dir, ".html")
	engine.AddFunc("amount", invoice.FormatCurrencyASCII)
	engine.AddFunc("date", func(t time.Time) string {
		return invoice.FormatDate(&t, loc)
	})
	return engine
}
