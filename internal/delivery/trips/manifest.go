package trips

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/depot-ops/depot-ops/internal/sales/orders"
	"github.com/depot-ops/depot-ops/internal/shared"
	"github.com/depot-ops/depot-ops/web"
)

// ManifestEntry is one stop on the driver sheet.
type ManifestEntry struct {
	Seq          int           `json:"seq"`
	OrderID      string        `json:"order_id"`
	Customer     string        `json:"customer"`
	Address      string        `json:"address"`
	WhatsApp     string        `json:"whatsapp"`
	WhatsAppLink string        `json:"whatsapp_link,omitempty"`
	Branch       string        `json:"branch"`
	Items        []orders.Item `json:"items"`
	Total        string        `json:"total"`
	Payment      string        `json:"payment"`
}

// Manifest is the printable sheet of a trip's visible orders in roster order.
type Manifest struct {
	Trip        Trip            `json:"trip"`
	Entries     []ManifestEntry `json:"entries"`
	GrandTotal  string          `json:"grand_total"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Manifest builds the driver sheet for tripID. Orders the actor cannot see,
// or that no longer exist, are left out.
func (s *Service) Manifest(ctx context.Context, actor shared.Actor, tripID string) (*Manifest, error) {
	trip, err := s.GetTrip(ctx, actor, tripID)
	if err != nil {
		return nil, err
	}
	m := &Manifest{Trip: *trip, Entries: []ManifestEntry{}, GeneratedAt: s.now()}
	grand := decimal.Zero
	for _, id := range trip.OrderIDs {
		o, err := s.catalog.Get(ctx, actor, id)
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("manifest: load order %s: %w", id, err)
		}
		payment := "Belum bayar"
		if o.PaymentStatus == orders.PaymentPaid {
			payment = "Lunas"
		}
		m.Entries = append(m.Entries, ManifestEntry{
			Seq:          len(m.Entries) + 1,
			OrderID:      o.ID,
			Customer:     o.CustomerName,
			Address:      o.CustomerAddress,
			WhatsApp:     o.CustomerWhatsApp,
			WhatsAppLink: WhatsAppLink(o.CustomerWhatsApp),
			Branch:       o.Branch,
			Items:        o.Items,
			Total:        FormatRupiah(o.TotalAmount),
			Payment:      payment,
		})
		if o.PaymentStatus != orders.PaymentPaid {
			grand = grand.Add(o.TotalAmount)
		}
	}
	m.GrandTotal = FormatRupiah(grand)
	return m, nil
}

var rupiahPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah renders an amount as whole rupiah with Indonesian digit grouping.
func FormatRupiah(amount decimal.Decimal) string {
	n := amount.Round(0).IntPart()
	if n < 0 {
		return "-Rp " + rupiahPrinter.Sprintf("%d", -n)
	}
	return "Rp " + rupiahPrinter.Sprintf("%d", n)
}

// WhatsAppLink turns a local or international phone number into a wa.me link.
// It returns "" when no digits are present.
func WhatsAppLink(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "0"):
		digits = "62" + digits[1:]
	case strings.HasPrefix(digits, "8"):
		digits = "62" + digits
	}
	return "https://wa.me/" + digits
}

// PDFRenderer converts an HTML document to PDF.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// ManifestRenderer renders manifests as HTML and, through a PDFRenderer, as PDF.
type ManifestRenderer struct {
	tpl *template.Template
	pdf PDFRenderer
}

// NewManifestRenderer parses the embedded manifest template. pdf may be nil
// when no PDF backend is configured.
func NewManifestRenderer(pdf PDFRenderer) (*ManifestRenderer, error) {
	funcs := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
		"formatDateTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
	}
	tpl, err := template.New("trip_manifest.html").Funcs(funcs).ParseFS(web.Templates, "templates/trip_manifest.html")
	if err != nil {
		return nil, fmt.Errorf("parse manifest template: %w", err)
	}
	return &ManifestRenderer{tpl: tpl, pdf: pdf}, nil
}

// HTML writes the manifest document to w.
func (r *ManifestRenderer) HTML(w io.Writer, m *Manifest) error {
	return r.tpl.Execute(w, m)
}

// ErrPDFUnavailable means no PDF backend is configured.
var ErrPDFUnavailable = errors.New("pdf renderer not configured")

// PDF renders the manifest through the PDF backend.
func (r *ManifestRenderer) PDF(ctx context.Context, m *Manifest) ([]byte, error) {
	if r.pdf == nil {
		return nil, ErrPDFUnavailable
	}
	var buf bytes.Buffer
	if err := r.HTML(&buf, m); err != nil {
		return nil, fmt.Errorf("render manifest html: %w", err)
	}
	return r.pdf.RenderHTML(ctx, buf.String())
}

// ManifestFilename returns a download name such as "trip-3.pdf".
func ManifestFilename(t Trip) string {
	name := strings.ToLower(strings.Join(strings.Fields(t.Name), "-"))
	if name == "" {
		name = "trip"
	}
	return name + ".pdf"
}
