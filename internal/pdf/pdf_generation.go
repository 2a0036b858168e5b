package pdf

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Generator is an interface so handlers can be tested without rendering.
type Generator interface {
	Roster(w io.Writer, data RosterData) error
}

// RosterGenerator renders the admin member roster.
type RosterGenerator struct {
	FontPath string // optional TTF for non-Latin names, e.g. assets/fonts/NotoSansJP-Regular.ttf
	fontName string
}

type RosterRow struct {
	Email          string
	DisplayName    string
	Role           string
	GraduationYear *int
	Department     *string
	CreatedAt      time.Time
}

type RosterData struct {
	Title       string
	GeneratedAt time.Time
	GeneratedBy string
	Rows        []RosterRow
}

func NewRosterGenerator(fontPath string) *RosterGenerator {
	g := &RosterGenerator{FontPath: fontPath, fontName: "Helvetica"}
	if fontPath != "" {
		g.fontName = "Roster"
	}
	return g
}

var rosterColumns = []struct {
	title string
	width float64
}{
	{"Name", 50},
	{"Email", 72},
	{"Role", 22},
	{"Class of", 20},
	{"Department", 58},
	{"Joined", 25},
}

func (g *RosterGenerator) Roster(w io.Writer, data RosterData) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	title := data.Title
	if title == "" {
		title = "Member roster"
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor("OB/OG portal", false)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	if g.FontPath != "" {
		pdf.AddUTF8Font(g.fontName, "", g.FontPath)
		pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
	}

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(g.fontName, "", 9)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.SetHeaderFunc(func() {
		pdf.SetFont(g.fontName, "B", 10)
		for _, c := range rosterColumns {
			pdf.CellFormat(c.width, 7, c.title, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	})
	pdf.SetFillColor(230, 230, 230)

	pdf.AddPage()
	pdf.SetFont(g.fontName, "", 9)
	for _, r := range data.Rows {
		cells := []string{
			g.text(pdf, r.DisplayName),
			g.text(pdf, r.Email),
			r.Role,
			yearText(r.GraduationYear),
			g.text(pdf, deref(r.Department)),
			r.CreatedAt.Format("2006-01-02"),
		}
		for i, c := range rosterColumns {
			pdf.CellFormat(c.width, 6, cells[i], "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont(g.fontName, "", 9)
	summary := fmt.Sprintf("%d members. Generated %s", len(data.Rows), data.GeneratedAt.Format("2006-01-02 15:04 MST"))
	if data.GeneratedBy != "" {
		summary += " by " + data.GeneratedBy
	}
	pdf.CellFormat(0, 6, g.text(pdf, summary), "", 1, "L", false, 0, "")

	if pdf.Err() {
		return fmt.Errorf("render roster: %w", pdf.Error())
	}
	return pdf.Output(w)
}

// text maps UTF-8 to cp1252 when falling back to the core fonts.
func (g *RosterGenerator) text(pdf *gofpdf.Fpdf, s string) string {
	if g.FontPath != "" {
		return s
	}
	return pdf.UnicodeTranslatorFromDescriptor("")(s)
}

func yearText(y *int) string {
	if y == nil {
		return ""
	}
	return strconv.Itoa(*y)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
