package parser

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// ---------------------------------------------------------------------------
// Registry tests
// ---------------------------------------------------------------------------

func TestRegistryBuiltInParsers(t *testing.T) {
	reg := NewRegistry()

	formats := []struct {
		format     string
		wantParser string
	}{
		{"md", "*parser.TextParser"},
		{"txt", "*parser.TextParser"},
		{"rst", "*parser.TextParser"},
		{"pdf", "*parser.PDFParser"},
		{"xlsx", "*parser.XLSXParser"},
		{"docx", "*parser.DOCXParser"},
		{"pptx", "*parser.PPTXParser"},
	}

	for _, tt := range formats {
		t.Run(tt.format, func(t *testing.T) {
			p, err := reg.Get(tt.format)
			if err != nil {
				t.Fatalf("Get(%q) returned error: %v", tt.format, err)
			}
			found := false
			for _, f := range p.SupportedFormats() {
				if f == tt.format {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("parser for %q does not list it in SupportedFormats(): %v",
					tt.format, p.SupportedFormats())
			}
		})
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()

	for _, format := range []string{"csv", "json", "html", "doc", ""} {
		t.Run("format_"+format, func(t *testing.T) {
			p, err := reg.Get(format)
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("Get(%q) error = %v, want ErrUnsupportedFormat", format, err)
			}
			if p != nil {
				t.Errorf("Get(%q) expected nil parser", format)
			}
		})
	}
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()
	if reg.Supports("notes.org") {
		t.Fatal("org should not be supported before registration")
	}
	reg.Register("ORG", &TextParser{})
	if !reg.Supports("notes.org") {
		t.Error("org should be supported after registration")
	}
}

func TestSupportsIsCaseInsensitive(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		path string
		want bool
	}{
		{"README.MD", true},
		{"/a/b/guide.Md", true},
		{"report.PDF", true},
		{"archive.tar.gz", false},
		{"Makefile", false},
	}
	for _, tt := range tests {
		if got := reg.Supports(tt.path); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSupportedFormatsSorted(t *testing.T) {
	got := strings.Join(NewRegistry().SupportedFormats(), ",")
	if got != "docx,md,pdf,pptx,rst,txt,xlsx" {
		t.Errorf("SupportedFormats = %s", got)
	}
}

// ---------------------------------------------------------------------------
// Readers
// ---------------------------------------------------------------------------

func TestLoadText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.md")
	content := "# Intro\nHello world\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := NewRegistry().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != content {
		t.Errorf("Load = %q, want %q", got, content)
	}
}

func TestLoadUnsupported(t *testing.T) {
	_, err := NewRegistry().Load(context.Background(), "/tmp/data.csv")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Load error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewRegistry().Load(context.Background(), filepath.Join(t.TempDir(), "gone.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, ErrUnsupportedFormat) {
		t.Error("missing file must not be reported as unsupported")
	}
}

func TestPDFParserRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (&PDFParser{}).Parse(context.Background(), path); err == nil {
		t.Error("expected error for invalid PDF")
	}
}

func TestXLSXParser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")

	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Name")
	f.SetCellValue("Sheet1", "B1", "Port")
	f.SetCellValue("Sheet1", "A2", "api")
	f.SetCellValue("Sheet1", "B2", 8080)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	res, err := (&XLSXParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "# Sheet1\n| Name | Port |\n| api | 8080 |\n"
	if res.Text != want {
		t.Errorf("Text = %q, want %q", res.Text, want)
	}
	if res.Pages != 1 {
		t.Errorf("Pages = %d, want 1", res.Pages)
	}
}

func writeDocx(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(out)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	out.Close()
	return path
}

func TestDOCXParser(t *testing.T) {
	path := writeDocx(t,
		`<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Setup</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Install the </w:t></w:r><w:r><w:t>tool.</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>  </w:t></w:r></w:p>`+
			`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>k</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>v</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`)

	res, err := (&DOCXParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "## Setup\n\nInstall the tool.\n\n| k | v |"
	if res.Text != want {
		t.Errorf("Text = %q, want %q", res.Text, want)
	}
}

func TestDOCXParserKeepsDocumentOrder(t *testing.T) {
	path := writeDocx(t,
		`<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Pricing</w:t></w:r></w:p>`+
			`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>basic</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>10</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`+
			`<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Support</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Mail us.</w:t></w:r></w:p>`+
			`<w:sectPr><w:pgSz w:w="11906"/></w:sectPr>`)

	res, err := (&DOCXParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "# Pricing\n\n| basic | 10 |\n\n# Support\n\nMail us."
	if res.Text != want {
		t.Errorf("Text = %q, want %q", res.Text, want)
	}
}

func TestDOCXParserMissingDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	out, _ := os.Create(path)
	zw := zip.NewWriter(out)
	zw.Close()
	out.Close()

	if _, err := (&DOCXParser{}).Parse(context.Background(), path); err == nil {
		t.Error("expected error for DOCX without word/document.xml")
	}
}

func TestHeadingLevel(t *testing.T) {
	tests := []struct {
		style string
		want  int
	}{
		{"", 0},
		{"Normal", 0},
		{"Title", 1},
		{"Heading1", 1},
		{"heading3", 3},
		{"Heading", 1},
	}
	for _, tt := range tests {
		para := docxPara{}
		if tt.style != "" {
			para.PPr = &docxParaPr{PStyle: &docxPStyle{Val: tt.style}}
		}
		if got := headingLevel(para); got != tt.want {
			t.Errorf("headingLevel(%q) = %d, want %d", tt.style, got, tt.want)
		}
	}
}

func writeZip(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	zw := zip.NewWriter(out)
	for fname, content := range files {
		w, err := zw.Create(fname)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func pptxSlideXML(paras ...string) string {
	var sb strings.Builder
	sb.WriteString(`<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" ` +
		`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><p:cSld><p:spTree><p:sp><p:txBody>`)
	for _, para := range paras {
		sb.WriteString(`<a:p><a:r><a:t>` + para + `</a:t></a:r></a:p>`)
	}
	sb.WriteString(`</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
	return sb.String()
}

func TestPPTXParser(t *testing.T) {
	path := writeZip(t, "deck.pptx", map[string]string{
		"ppt/slides/slide10.xml":           pptxSlideXML("Closing"),
		"ppt/slides/slide2.xml":            pptxSlideXML("Install", "Run make install"),
		"ppt/slides/slide1.xml":            pptxSlideXML("Overview"),
		"ppt/slides/slide3.xml":            pptxSlideXML(" "),
		"ppt/slides/_rels/slide1.xml.rels": "<Relationships/>",
	})

	res, err := (&PPTXParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "# Slide 1\n\nOverview\n\n# Slide 2\n\nInstall\nRun make install\n\n# Slide 10\n\nClosing"
	if res.Text != want {
		t.Errorf("Text = %q, want %q", res.Text, want)
	}
	if res.Pages != 4 {
		t.Errorf("Pages = %d, want 4", res.Pages)
	}
}

func TestSlideNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"ppt/slides/slide1.xml", 1},
		{"ppt/slides/slide12.xml", 12},
		{"ppt/slides/_rels/slide1.xml.rels", 0},
		{"ppt/slideLayouts/slideLayout1.xml", 0},
		{"ppt/slides/slideX.xml", 0},
	}
	for _, tt := range tests {
		if got := slideNumber(tt.name); got != tt.want {
			t.Errorf("slideNumber(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}
