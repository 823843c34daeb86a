package synth

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

var (
	linkRe      = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	emphasisRe  = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	numberedRe  = regexp.MustCompile(`^(\d+)[.)]\s+`)
	tableRuleRe = regexp.MustCompile(`^\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?$`)
)

// WritePDF renders markdown as a plain A4 document: headings get a larger
// bold face, list items are indented, table rows become tab-separated lines
// and links stay clickable. It is not a full markdown layout engine.
func WritePDF(markdown, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 11)

	sc := bufio.NewScanner(strings.NewReader(markdown))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		switch {
		case s == "":
			pdf.Ln(4)
		case strings.HasPrefix(s, "#"):
			level := len(s) - len(strings.TrimLeft(s, "#"))
			text := strings.TrimSpace(s[level:])
			if text == "" {
				continue
			}
			size := 16.0
			switch {
			case level == 2:
				size = 14
			case level >= 3:
				size = 12
			}
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "B", size)
			pdf.MultiCell(0, size*0.5, tr(plain(text)), "", "L", false)
			pdf.SetFont("Helvetica", "", 11)
		case tableRuleRe.MatchString(s):
			// markdown table separator row
		case strings.HasPrefix(s, "|"):
			cells := strings.Split(strings.Trim(s, "|"), "|")
			for i := range cells {
				cells[i] = strings.TrimSpace(cells[i])
			}
			pdf.MultiCell(0, 5, tr(plain(strings.Join(cells, "    "))), "", "L", false)
		case strings.HasPrefix(s, "- ") || strings.HasPrefix(s, "* "):
			pdf.SetX(pdf.GetX() + 4)
			writeInline(pdf, tr, "• "+s[2:])
		case numberedRe.MatchString(s):
			pdf.SetX(pdf.GetX() + 4)
			writeInline(pdf, tr, s)
		default:
			writeInline(pdf, tr, s)
		}
	}
	if err := sc.Err(); err != nil {
		pdf.Close()
		return err
	}
	return pdf.OutputFileAndClose(outPath)
}

// writeInline writes one paragraph, turning [text](url) into links.
func writeInline(pdf *gofpdf.Fpdf, tr func(string) string, s string) {
	matches := linkRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		pdf.MultiCell(0, 5, tr(plain(s)), "", "L", false)
		return
	}
	pos := 0
	for _, m := range matches {
		if m[0] > pos {
			pdf.Write(5, tr(plain(s[pos:m[0]])))
		}
		text, href := s[m[2]:m[3]], s[m[4]:m[5]]
		if strings.HasPrefix(href, "#") {
			pdf.Write(5, tr(plain(text)))
		} else {
			pdf.WriteLinkString(5, tr(plain(text)), href)
		}
		pos = m[1]
	}
	if pos < len(s) {
		pdf.Write(5, tr(plain(s[pos:])))
	}
	pdf.Ln(6)
}

// plain drops bold markers and inline code ticks.
func plain(s string) string {
	s = emphasisRe.ReplaceAllString(s, "$1$2")
	return strings.ReplaceAll(s, "`", "")
}
