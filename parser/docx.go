package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCXParser reads word/document.xml. Heading and Title styled paragraphs
// become markdown headings; tables are rendered as pipe rows where they
// appear.
type DOCXParser struct{}

func (p *DOCXParser) SupportedFormats() []string { return []string{"docx"} }

func (p *DOCXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("word/document.xml not found in DOCX")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("opening document.xml: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	text, err := docxPlainText(data)
	if err != nil {
		return nil, fmt.Errorf("parsing DOCX XML: %w", err)
	}
	return &ParseResult{Text: text, Method: "native"}, nil
}

type docxPara struct {
	PPr  *docxParaPr `xml:"pPr"`
	Runs []docxRun   `xml:"r"`
}

type docxParaPr struct {
	PStyle *docxPStyle `xml:"pStyle"`
}

type docxPStyle struct {
	Val string `xml:"val,attr"`
}

type docxRun struct {
	Text []docxRunText `xml:"t"`
}

type docxRunText struct {
	Content string `xml:",chardata"`
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paras []docxPara `xml:"p"`
}

// docxPlainText walks the children of w:body in document order, so a table
// stays under the heading that precedes it.
func docxPlainText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	inBody := false
	var blocks []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if !inBody {
				inBody = el.Name.Local == "body"
				continue
			}
			switch el.Name.Local {
			case "p":
				var para docxPara
				if err := dec.DecodeElement(&para, &el); err != nil {
					return "", err
				}
				if text := paraBlock(para); text != "" {
					blocks = append(blocks, text)
				}
			case "tbl":
				var tbl docxTable
				if err := dec.DecodeElement(&tbl, &el); err != nil {
					return "", err
				}
				if text := tableBlock(tbl); text != "" {
					blocks = append(blocks, text)
				}
			default:
				if err := dec.Skip(); err != nil {
					return "", err
				}
			}
		case xml.EndElement:
			if inBody && el.Name.Local == "body" {
				return strings.Join(blocks, "\n\n"), nil
			}
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}

func paraBlock(para docxPara) string {
	text := strings.TrimSpace(paraText(para))
	if text == "" {
		return ""
	}
	if level := headingLevel(para); level > 0 {
		text = strings.Repeat("#", level) + " " + text
	}
	return text
}

func tableBlock(tbl docxTable) string {
	rows := make([]string, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			parts := make([]string, 0, len(cell.Paras))
			for _, p := range cell.Paras {
				parts = append(parts, paraText(p))
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
	}
	return strings.Join(rows, "\n")
}

func paraText(para docxPara) string {
	var b strings.Builder
	for _, run := range para.Runs {
		for _, t := range run.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

// headingLevel returns 1-6 for Title/HeadingN styled paragraphs, 0 otherwise.
func headingLevel(para docxPara) int {
	if para.PPr == nil || para.PPr.PStyle == nil {
		return 0
	}
	style := strings.ToLower(para.PPr.PStyle.Val)
	switch {
	case strings.HasPrefix(style, "title"):
		return 1
	case strings.HasPrefix(style, "heading"):
		level := 1
		for i := 1; i <= 6; i++ {
			if strings.Contains(style, fmt.Sprintf("%d", i)) {
				level = i
				break
			}
		}
		return level
	}
	return 0
}
