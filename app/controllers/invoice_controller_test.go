package controllers

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandernook/wandernook/internal/pkg/config"
)

func get(t *testing.T, app *fiber.App, target string) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestInvoicePages(t *testing.T) {
	h := newAutopayHarness(t, testRazorpayConfig())
	subID := h.create(t, config.PlanAnnualAutopay)
	h.gateway.capture("pay_P1", subID, 230000, "captured")
	status, body := h.verify(t, config.PlanAnnualAutopay, "pay_P1", subID, proof("pay_P1", subID))
	require.Equal(t, fiber.StatusOK, status, body)

	issued := body["invoice"].(map[string]any)
	token := issued["publicToken"].(string)
	number := issued["invoiceNumber"].(string)

	t.Run("page", func(t *testing.T) {
		resp, page := get(t, h.app, "/invoice/"+token)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")
		assert.Equal(t, "private, no-store", resp.Header.Get(fiber.HeaderCacheControl))
		assert.Contains(t, string(page), number)
		assert.Contains(t, string(page), "Download PDF")
	})

	t.Run("print", func(t *testing.T) {
		resp, page := get(t, h.app, "/invoice/"+token+"/print")
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, string(page), "window.print()")
	})

	t.Run("pdf", func(t *testing.T) {
		resp, pdf := get(t, h.app, "/invoice/"+token+"/pdf")
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
		assert.Equal(t, "inline; filename=invoice-"+token+".pdf", resp.Header.Get(fiber.HeaderContentDisposition))
		assert.Equal(t, "private, no-store", resp.Header.Get(fiber.HeaderCacheControl))
		assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	})

	for _, path := range []string{"/invoice/nope", "/invoice/nope/print", "/invoice/nope/pdf"} {
		resp, text := get(t, h.app, path)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, path)
		assert.Equal(t, "Invoice not found", string(text))
		assert.Equal(t, "private, no-store", resp.Header.Get(fiber.HeaderCacheControl))
	}
}
