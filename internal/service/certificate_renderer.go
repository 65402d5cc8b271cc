package service

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/go-pdf/fpdf"
	"github.com/golang/freetype/truetype"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// CertificateData 渲染证书所需的内容
type CertificateData struct {
	ID            string
	RecipientName string
	CourseName    string
	Complexity    string
	IssuedAt      time.Time
	VerifyURL     string
}

// CertificateRenderer 生成证书 PDF
type CertificateRenderer interface {
	Render(data CertificateData) ([]byte, error)
}

// A4 横向，150 DPI
const (
	certWidth  = 1754
	certHeight = 1240
	qrSize     = 260
)

var (
	certBackground = color.NRGBA{R: 0xFB, G: 0xF8, B: 0xF1, A: 0xFF}
	certAccent     = color.NRGBA{R: 0x1F, G: 0x4E, B: 0x79, A: 0xFF}
	certText       = color.NRGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xFF}
	certMuted      = color.NRGBA{R: 0x6B, G: 0x6B, B: 0x6B, A: 0xFF}
)

type fontSet struct {
	title   font.Face
	name    font.Face
	course  font.Face
	body    font.Face
	caption font.Face
}

type PDFCertificateRenderer struct {
	fonts fontSet
}

func newFace(ttf []byte, size float64) (font.Face, error) {
	parsed, err := truetype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsed, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}

// NewPDFCertificateRenderer 使用内置的 Go 字体，不依赖系统字体文件
func NewPDFCertificateRenderer() (*PDFCertificateRenderer, error) {
	var fs fontSet
	var err error
	if fs.title, err = newFace(gobold.TTF, 96); err != nil {
		return nil, err
	}
	if fs.name, err = newFace(gobold.TTF, 80); err != nil {
		return nil, err
	}
	if fs.course, err = newFace(gobold.TTF, 52); err != nil {
		return nil, err
	}
	if fs.body, err = newFace(goregular.TTF, 38); err != nil {
		return nil, err
	}
	if fs.caption, err = newFace(goregular.TTF, 26); err != nil {
		return nil, err
	}
	return &PDFCertificateRenderer{fonts: fs}, nil
}

func (r *PDFCertificateRenderer) Render(data CertificateData) ([]byte, error) {
	img, err := r.renderPNG(data)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Certificate "+data.ID, true)
	pdf.SetAuthor("ucode", true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("certificate", opts, bytes.NewReader(img))
	w, h := pdf.GetPageSize()
	pdf.ImageOptions("certificate", 0, 0, w, h, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFCertificateRenderer) renderPNG(data CertificateData) ([]byte, error) {
	dc := gg.NewContext(certWidth, certHeight)

	dc.SetColor(certBackground)
	dc.DrawRectangle(0, 0, certWidth, certHeight)
	dc.Fill()

	// 边框
	dc.SetColor(certAccent)
	dc.SetLineWidth(14)
	dc.DrawRectangle(40, 40, certWidth-80, certHeight-80)
	dc.Stroke()
	dc.SetLineWidth(3)
	dc.DrawRectangle(70, 70, certWidth-140, certHeight-140)
	dc.Stroke()

	cx := float64(certWidth) / 2

	dc.SetFontFace(r.fonts.title)
	dc.SetColor(certAccent)
	dc.DrawStringAnchored("CERTIFICATE OF COMPLETION", cx, 240, 0.5, 0.5)

	dc.SetFontFace(r.fonts.body)
	dc.SetColor(certMuted)
	dc.DrawStringAnchored("This certifies that", cx, 380, 0.5, 0.5)

	dc.SetFontFace(r.fonts.name)
	dc.SetColor(certText)
	dc.DrawStringAnchored(data.RecipientName, cx, 490, 0.5, 0.5)

	dc.SetFontFace(r.fonts.body)
	dc.SetColor(certMuted)
	dc.DrawStringAnchored("has successfully completed the course", cx, 600, 0.5, 0.5)

	dc.SetFontFace(r.fonts.course)
	dc.SetColor(certAccent)
	lines := dc.WordWrap(data.CourseName, certWidth-500)
	y := 700.0
	for _, line := range lines {
		dc.DrawStringAnchored(line, cx, y, 0.5, 0.5)
		y += 70
	}

	if data.Complexity != "" {
		dc.SetFontFace(r.fonts.caption)
		dc.SetColor(certMuted)
		dc.DrawStringAnchored("Level: "+strings.ToUpper(data.Complexity[:1])+data.Complexity[1:], cx, y+10, 0.5, 0.5)
	}

	dc.SetFontFace(r.fonts.caption)
	dc.SetColor(certText)
	dc.DrawString("Issued: "+data.IssuedAt.Format("January 2, 2006"), 160, certHeight-220)
	dc.DrawString("Certificate ID: "+data.ID, 160, certHeight-170)
	if data.VerifyURL != "" {
		dc.SetColor(certMuted)
		dc.DrawString(data.VerifyURL, 160, certHeight-120)
	}

	if data.VerifyURL != "" {
		qr, err := qrcode.New(data.VerifyURL, qrcode.Medium)
		if err != nil {
			return nil, fmt.Errorf("failed to build QR code: %w", err)
		}
		qr.DisableBorder = true
		dc.DrawImage(qr.Image(qrSize), certWidth-160-qrSize, certHeight-140-qrSize)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
