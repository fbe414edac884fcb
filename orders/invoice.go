package orders

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"storefront/models"
	"storefront/utils"
)

// RenderInvoice draws a one-page PDF invoice with a QR code linking to the order.
func RenderInvoice(o *models.Order, orderURL string) ([]byte, error) {
	qrPNG, err := qrcode.Encode(orderURL, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Invoice")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, "Order: "+o.ID.Hex())
	pdf.Ln(6)
	pdf.Cell(0, 7, "Date: "+o.CreatedAt.Format("2006-01-02"))
	pdf.Ln(6)
	if o.User != nil && o.User.Name != "" {
		pdf.Cell(0, 7, fmt.Sprintf("Customer: %s <%s>", o.User.Name, o.User.Email))
		pdf.Ln(6)
	}
	addr := o.ShippingAddress
	pdf.Cell(0, 7, "Ship to: "+strings.Join([]string{addr.Address, addr.City, addr.PostalCode, addr.Country}, ", "))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(100, 8, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 8, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	for _, item := range o.OrderItems {
		pdf.CellFormat(100, 7, item.Name, "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", item.Qty), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", item.Price), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", item.Price*float64(item.Qty)), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	totals := []struct {
		label  string
		amount float64
	}{
		{"Items", o.ItemsPrice},
		{"Shipping", o.ShippingPrice},
		{"Tax", o.TaxPrice},
		{"Total", o.TotalPrice},
	}
	for _, t := range totals {
		pdf.CellFormat(150, 7, t.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", t.amount), "", 1, "R", false, 0, "")
	}

	status := "UNPAID"
	if o.IsPaid {
		status = "PAID"
	}
	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Status: "+status)

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 12, 35, 35, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Invoice handles GET /api/orders/:id/invoice
func (s *Service) Invoice(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := s.load(ctx, r, ps.ByName("id"))
	if err != nil {
		return err
	}
	list := []models.Order{*o}
	s.reconciler.Reconcile(ctx, list)
	s.populate(ctx, list)

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	orderURL := fmt.Sprintf("%s://%s/api/orders/%s", scheme, r.Host, o.ID.Hex())

	data, err := RenderInvoice(&list[0], orderURL)
	if err != nil {
		return utils.Internal("Failed to generate invoice", err)
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=invoice-"+o.ID.Hex()+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	return nil
}
