package invoice

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/gofiber/fiber/v2/log"
)

const (
	pdfPageWidth  = 595.28
	pdfPageHeight = 841.89
	pdfLeftWidth  = 215.0
	pdfRightStart = pdfLeftWidth + 24
)

type rgb struct{ r, g, b int }

var (
	colorSidebar  = rgb{5, 5, 5}
	colorWhite    = rgb{255, 255, 255}
	colorGold     = rgb{251, 191, 36}
	colorLabel    = rgb{199, 210, 254}
	colorSideText = rgb{229, 231, 235}
	colorBorder   = rgb{214, 220, 229}
	colorBrand    = rgb{22, 59, 122}
	colorSlate    = rgb{51, 65, 85}
	colorMuted    = rgb{71, 85, 105}
	colorInk      = rgb{15, 23, 42}
	colorHeadFill = rgb{241, 245, 249}
	colorTotal    = rgb{234, 242, 255}
	colorTotalInk = rgb{15, 51, 105}
)

type pdfWriter struct {
	pdf    *fpdf.Fpdf
	family string
	tr     func(string) string
}

func (w *pdfWriter) font(style string, size float64, c rgb) {
	w.pdf.SetFont(w.family, style, size)
	w.pdf.SetTextColor(c.r, c.g, c.b)
}

func (w *pdfWriter) text(x, y, width float64, s, align string) {
	w.pdf.SetXY(x, y)
	w.pdf.CellFormat(width, 14, w.tr(s), "", 0, align, false, 0, "")
}

func (w *pdfWriter) lines(x, y, width float64, lines []string, lineHeight float64) {
	w.pdf.SetXY(x, y)
	w.pdf.MultiCell(width, lineHeight, w.tr(strings.Join(lines, "\n")), "", "L", false)
}

func (w *pdfWriter) box(x, y, width, height float64, fill *rgb) {
	w.pdf.SetDrawColor(colorBorder.r, colorBorder.g, colorBorder.b)
	style := "D"
	if fill != nil {
		w.pdf.SetFillColor(fill.r, fill.g, fill.b)
		style = "FD"
	}
	w.pdf.Rect(x, y, width, height, style)
}

// RenderPDF draws the A4 invoice: a dark issuer sidebar on the left and the
// invoice details on the right.
func (r *Renderer) RenderPDF(in TemplateInput) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Invoice "+in.InvoiceNumber, true)
	pdf.SetAuthor(r.company.CompanyName, true)

	w := &pdfWriter{pdf: pdf, family: pdfFontFamily, tr: func(s string) string { return s }}
	amount := FormatCurrency(in.AmountPaise, in.Currency)
	regular, bold := r.fontFaces()
	pdf.AddUTF8FontFromBytes(pdfFontFamily, "", regular)
	pdf.AddUTF8FontFromBytes(pdfFontFamily, "B", bold)
	if !pdf.Ok() {
		log.Errorf("[Invoice] PDF font rejected, falling back to Helvetica: %v", pdf.Error())
		pdf.ClearError()
		w.family = "Helvetica"
		w.tr = pdf.UnicodeTranslatorFromDescriptor("")
		amount = FormatCurrencyASCII(in.AmountPaise, in.Currency)
	}
	pdf.AddPage()

	r.drawSidebar(w)
	r.drawHeader(w, in)
	r.drawParties(w, in)
	r.drawItems(w, in, amount)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawSidebar(w *pdfWriter) {
	pdf := w.pdf
	pdf.SetFillColor(colorSidebar.r, colorSidebar.g, colorSidebar.b)
	pdf.Rect(0, 0, pdfLeftWidth, pdfPageHeight, "F")

	w.font("B", 28, colorWhite)
	w.text(28, 34, pdfLeftWidth-56, "INVOICE", "C")

	r.placeLogo(w, r.logos.StampPath, 48, 86, 120, 120)

	w.font("B", 18, colorGold)
	w.text(26, 216, pdfLeftWidth-52, orDash(r.company.TradeName), "C")

	c := r.company
	sections := []struct {
		label string
		lines []string
		next  float64
	}{
		{"Address", c.AddressLines, 82},
		{"Email ID", []string{c.Email}, 48},
		{"Contact Number", []string{c.Phone}, 48},
		{"Company Name", []string{c.CompanyName}, 46},
		{"Trade Name", []string{c.TradeName}, 46},
		{"GST Number", []string{c.GSTNumber}, 46},
		{"Bank Details", []string{
			"Name of Bank: " + c.BankName,
			"Name of Branch: " + c.BankBranch,
			"Account No.: " + c.BankAccountNumber,
			"Account Type: " + c.BankAccountType,
			"IFSC Code: " + c.BankIFSC,
		}, 90},
	}

	y := 258.0
	for _, s := range sections {
		w.font("B", 10, colorLabel)
		w.text(26, y, pdfLeftWidth-52, strings.ToUpper(s.label), "L")
		w.font("", 10.5, colorSideText)
		w.lines(26, y+14, pdfLeftWidth-52, nonEmpty(s.lines), 13)
		y += s.next
	}
}

func (r *Renderer) drawHeader(w *pdfWriter, in TemplateInput) {
	w.box(pdfRightStart, 30, pdfPageWidth-pdfRightStart-24, 120, nil)

	w.font("B", 24, colorBrand)
	w.text(pdfRightStart+14, 42, 200, "Tax Invoice", "L")

	w.font("", 11, colorSlate)
	w.text(pdfRightStart+14, 76, 200, "Invoice No: "+orDash(in.InvoiceNumber), "L")
	w.text(pdfRightStart+14, 93, 200, "Issue Date: "+FormatDate(&in.IssuedAt, r.loc), "L")
	w.text(pdfRightStart+14, 110, 200, "Payment Date: "+FormatDate(paymentDate(in), r.loc), "L")

	r.placeLogo(w, r.logos.BrandPath, pdfPageWidth-220, 44, 180, 80)
}

func (r *Renderer) drawParties(w *pdfWriter, in TemplateInput) {
	boxWidth := (pdfPageWidth - pdfRightStart - 30 - 14) / 2
	const boxY = 166.0

	draw := func(x float64, title string, lines []string) {
		w.box(x, boxY, boxWidth, 132, nil)
		w.font("B", 10, colorMuted)
		w.text(x+10, boxY+6, boxWidth-18, strings.ToUpper(title), "L")
		w.font("", 10.5, colorInk)
		w.lines(x+10, boxY+24, boxWidth-18, lines, 13)
	}

	draw(pdfRightStart, "Billed To", []string{
		orDash(in.Customer.FullName),
		orDash(in.Customer.Email),
		orDash(in.Customer.Phone),
		orDash(in.Customer.Address()),
	})

	ref := []string{
		fmt.Sprintf("%s (%s)", orDash(in.PlanLabel), orDash(in.BillingCycle)),
		"Period: " + r.period(in),
		"Payment ID: " + orDash(in.RazorpayPaymentID),
		"Subscription ID: " + orDash(in.RazorpaySubscriptionID),
	}
	if in.RazorpayInvoiceID != "" {
		ref = append(ref, "Invoice ID: "+in.RazorpayInvoiceID)
	}
	draw(pdfRightStart+boxWidth+14, "Payment Reference", ref)
}

func (r *Renderer) drawItems(w *pdfWriter, in TemplateInput, amount string) {
	tableX := pdfRightStart
	tableY := 318.0
	tableWidth := pdfPageWidth - pdfRightStart - 24

	w.box(tableX, tableY, tableWidth, 28, &colorHeadFill)
	w.font("B", 9.5, colorSlate)
	w.text(tableX+8, tableY+7, 120, "DESCRIPTION", "L")
	w.text(tableX+tableWidth-220, tableY+7, 90, "PERIOD", "L")
	w.text(tableX+tableWidth-110, tableY+7, 92, "AMOUNT", "R")

	w.box(tableX, tableY+28, tableWidth, 42, nil)
	w.font("", 10.5, colorInk)
	w.lines(tableX+8, tableY+36, tableWidth-240, []string{orDash(in.PlanLabel) + " subscription charge"}, 13)
	w.lines(tableX+tableWidth-220, tableY+36, 100, []string{r.period(in)}, 13)
	w.text(tableX+tableWidth-110, tableY+40, 92, amount, "R")

	summaryX := tableX + tableWidth - 250
	summaryY := tableY + 90
	w.box(summaryX, summaryY, 250, 24, nil)
	w.box(summaryX, summaryY+24, 250, 28, &colorTotal)

	w.font("", 10.5, colorInk)
	w.text(summaryX+10, summaryY+5, 100, "Subtotal", "L")
	w.text(summaryX+120, summaryY+5, 120, amount, "R")

	w.font("B", 11.5, colorTotalInk)
	w.text(summaryX+10, summaryY+31, 100, "Total Paid", "L")
	w.text(summaryX+120, summaryY+31, 120, amount, "R")

	w.font("", 9.5, colorMuted)
	w.lines(tableX, summaryY+66, tableWidth, []string{
		fmt.Sprintf("This is a computer-generated invoice. GST Number: %s.", orDash(r.company.GSTNumber)),
	}, 12)
}

// placeLogo embeds a local logo fitted into the w x h box. Missing or
// unreadable logos are skipped.
func (r *Renderer) placeLogo(w *pdfWriter, path string, x, y, maxW, maxH float64) {
	data, err := loadLogoPNG(r.publicDir, path)
	if err != nil {
		log.Debugf("[Invoice] logo %s not embedded: %v", path, err)
		return
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	info := w.pdf.RegisterImageOptionsReader(path, opts, bytes.NewReader(data))
	if info == nil || !w.pdf.Ok() {
		log.Warnf("[Invoice] logo %s rejected: %v", path, w.pdf.Error())
		w.pdf.ClearError()
		return
	}
	iw, ih := info.Width(), info.Height()
	if iw <= 0 || ih <= 0 {
		return
	}
	scale := maxW / iw
	if ih*scale > maxH {
		scale = maxH / ih
	}
	w.pdf.ImageOptions(path, x, y, iw*scale, ih*scale, false, opts, 0, "")
}

func orDash(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return "-"
	}
	return v
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
