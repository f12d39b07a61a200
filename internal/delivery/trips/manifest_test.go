package trips

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depot-ops/depot-ops/internal/sales/orders"
)

type stubPDF struct {
	html string
	err  error
}

func (s *stubPDF) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	s.html = html
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-1.7"), nil
}

func TestFormatRupiah(t *testing.T) {
	assert.Equal(t, "Rp 34.000", FormatRupiah(decimal.NewFromInt(34000)))
	assert.Equal(t, "Rp 1.250.000", FormatRupiah(decimal.NewFromInt(1250000)))
	assert.Equal(t, "Rp 0", FormatRupiah(decimal.Zero))
	assert.Equal(t, "-Rp 500", FormatRupiah(decimal.NewFromInt(-500)))
}

func TestWhatsAppLink(t *testing.T) {
	assert.Equal(t, "https://wa.me/628123456789", WhatsAppLink("0812-3456-789"))
	assert.Equal(t, "https://wa.me/628123456789", WhatsAppLink("+62 812 3456 789"))
	assert.Equal(t, "https://wa.me/628123456789", WhatsAppLink("8123456789"))
	assert.Empty(t, WhatsAppLink("-"))
}

func TestManifestFilename(t *testing.T) {
	assert.Equal(t, "trip-3.pdf", ManifestFilename(Trip{Name: "Trip 3"}))
	assert.Equal(t, "trip.pdf", ManifestFilename(Trip{}))
}

func TestManifestListsVisibleOrdersInRosterOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ModeShared)
	trip, err := f.svc.CreateTrip(ctx, kemangOp, "")
	require.NoError(t, err)
	first := f.addOrder("Kemang", 34000)
	other := f.addOrder("Depok", 12000)
	paid := f.addOrder("Kemang", 19000)
	f.order(paid).PaymentStatus = orders.PaymentPaid
	_, err = f.svc.AssignOrder(ctx, kemangOp, first, trip.ID)
	require.NoError(t, err)
	_, err = f.svc.AssignOrder(ctx, depokOp, other, trip.ID)
	require.NoError(t, err)
	_, err = f.svc.AssignOrder(ctx, kemangOp, paid, trip.ID)
	require.NoError(t, err)
	f.store.trips[trip.ID].OrderIDs = append(f.store.trips[trip.ID].OrderIDs, uuid.NewString())

	m, err := f.svc.Manifest(ctx, kemangOp, trip.ID)
	require.NoError(t, err)
	require.Len(t, m.Entries, 2)
	assert.Equal(t, first, m.Entries[0].OrderID)
	assert.Equal(t, 1, m.Entries[0].Seq)
	assert.Equal(t, "Rp 34.000", m.Entries[0].Total)
	assert.Equal(t, "Belum bayar", m.Entries[0].Payment)
	assert.Equal(t, "https://wa.me/628123456789", m.Entries[0].WhatsAppLink)
	assert.Equal(t, paid, m.Entries[1].OrderID)
	assert.Equal(t, 2, m.Entries[1].Seq)
	assert.Equal(t, "Lunas", m.Entries[1].Payment)
	assert.Equal(t, "Rp 34.000", m.GrandTotal)

	full, err := f.svc.Manifest(ctx, admin, trip.ID)
	require.NoError(t, err)
	assert.Len(t, full.Entries, 3)
	assert.Equal(t, "Rp 46.000", full.GrandTotal)
}

func TestManifestRenderer(t *testing.T) {
	pdf := &stubPDF{}
	renderer, err := NewManifestRenderer(pdf)
	require.NoError(t, err)

	m := &Manifest{
		Trip:    Trip{Name: "Trip 3", Driver: "Pak Joko", Branch: "Shared"},
		Entries: []ManifestEntry{{
			Seq:          1,
			Customer:     "Warung <Bu Tini>",
			Address:      "Jl. Kemang 4",
			WhatsApp:     "0812",
			WhatsAppLink: "https://wa.me/62812",
			Items:        []orders.Item{{Product: "Isi Ulang 19L", Quantity: 3}},
			Total:        "Rp 34.000",
			Payment:      "Belum bayar",
		}},
		GrandTotal: "Rp 34.000",
	}

	var buf bytes.Buffer
	require.NoError(t, renderer.HTML(&buf, m))
	html := buf.String()
	assert.Contains(t, html, "Trip 3")
	assert.Contains(t, html, "Pak Joko")
	assert.Contains(t, html, "Warung &lt;Bu Tini&gt;")
	assert.Contains(t, html, "3 x Isi Ulang 19L")
	assert.Contains(t, html, `href="https://wa.me/62812"`)

	out, err := renderer.PDF(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), out)
	assert.Contains(t, pdf.html, "Rp 34.000")

	pdf.err = errors.New("gotenberg down")
	_, err = renderer.PDF(context.Background(), m)
	assert.Error(t, err)

	bare, err := NewManifestRenderer(nil)
	require.NoError(t, err)
	_, err = bare.PDF(context.Background(), m)
	assert.ErrorIs(t, err, ErrPDFUnavailable)
}
