package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Field is a labelled value printed in the letter body table.
type Field struct {
	Label string
	Value string
}

// SignatureSlot is one party's signature area. A nil Signature renders a
// blank underline; Failed marks a signature that could not be processed and
// renders a placeholder label instead of aborting the letter.
type SignatureSlot struct {
	Role       string
	SignerName string
	SignedAt   *time.Time
	Signature  Signature
	Failed     bool
}

// Letter is the structured input to the renderer: everything the layout
// needs, nothing about where the data came from.
type Letter struct {
	Institution string
	Faculty     string
	Code        string
	Title       string
	Intro       string
	Fields      []Field
	Body        []string
	Slots       []SignatureSlot
}

// LetterRenderer produces official training letters as PDF bytes.
type LetterRenderer struct{}

// NewLetterRenderer constructs a renderer.
func NewLetterRenderer() *LetterRenderer {
	return &LetterRenderer{}
}

// Render lays out the letter and returns the PDF bytes. Rendering has no
// partial-result semantics: any output error discards the attempt.
func (r *LetterRenderer) Render(letter Letter) ([]byte, error) {
	if letter.Code == "" || letter.Title == "" {
		return nil, fmt.Errorf("letter requires code and title")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	if letter.Institution != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 7, letter.Institution, "", 1, "C", false, 0, "")
	}
	if letter.Faculty != "" {
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 6, letter.Faculty, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("%s - %s", letter.Code, letter.Title), "T", 1, "C", false, 0, "")
	pdf.Ln(4)

	if letter.Intro != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, letter.Intro, "", "L", false)
		pdf.Ln(3)
	}

	if len(letter.Fields) > 0 {
		pdf.SetFont("Arial", "", 10)
		for _, field := range letter.Fields {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(55, 7, field.Label, "", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(5, 7, ":", "", 0, "C", false, 0, "")
			pdf.MultiCell(0, 7, field.Value, "", "L", false)
		}
		pdf.Ln(3)
	}

	for _, paragraph := range letter.Body {
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, paragraph, "", "L", false)
		pdf.Ln(2)
	}

	if len(letter.Slots) > 0 {
		pdf.Ln(6)
		for i, slot := range letter.Slots {
			r.renderSlot(pdf, slot, i)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render letter %s: %w", letter.Code, err)
	}
	return buf.Bytes(), nil
}

func (r *LetterRenderer) renderSlot(pdf *gofpdf.Fpdf, slot SignatureSlot, index int) {
	x := pdf.GetX()
	y := pdf.GetY()

	switch {
	case slot.Failed:
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(70, 8, "(signature unavailable)", "", 1, "L", false, 0, "")
	case slot.Signature == nil:
		pdf.Ln(10)
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(70, 5, "______________________________", "", 1, "L", false, 0, "")
	default:
		placement := slot.Signature.Placement()
		pdf.Ln(placement.Spacing)
		slot.Signature.apply(pdf, fmt.Sprintf("sig-%s-%d", slot.Role, index), x, y+placement.Spacing)
		pdf.SetY(y + placement.Spacing + placement.Height + 2)
	}

	pdf.SetFont("Arial", "B", 10)
	name := slot.SignerName
	if name == "" {
		name = "Name:"
	}
	pdf.CellFormat(70, 6, name, "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	label := slot.Role
	if slot.SignedAt != nil {
		label = fmt.Sprintf("%s, %s", slot.Role, slot.SignedAt.Format("02 Jan 2006"))
	}
	pdf.CellFormat(70, 5, label, "", 1, "L", false, 0, "")
	pdf.Ln(6)
}
