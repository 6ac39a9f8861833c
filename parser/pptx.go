package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// PPTXParser reads the text frames of each slide. Every slide becomes a
// "# Slide N" heading followed by one line per paragraph.
type PPTXParser struct{}

func (p *PPTXParser) SupportedFormats() []string { return []string{"pptx"} }

func (p *PPTXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening PPTX: %w", err)
	}
	defer r.Close()

	slides := make(map[int]*zip.File)
	for _, f := range r.File {
		if n := slideNumber(f.Name); n > 0 {
			slides[n] = f
		}
	}

	nums := make([]int, 0, len(slides))
	for n := range slides {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var blocks []string
	for _, num := range nums {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readZipFile(slides[num])
		if err != nil {
			slog.Debug("pptx: skipping unreadable slide", "file", path, "slide", num, "error", err)
			continue
		}
		text := slideText(data)
		if text == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("# Slide %d\n\n%s", num, text))
	}

	return &ParseResult{
		Text:   strings.Join(blocks, "\n\n"),
		Method: "native",
		Pages:  len(nums),
	}, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type pptxSlide struct {
	CSld struct {
		SpTree struct {
			SPs []pptxShape `xml:"sp"`
		} `xml:"spTree"`
	} `xml:"cSld"`
}

type pptxShape struct {
	TxBody *struct {
		Paras []struct {
			Runs []struct {
				Text string `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"txBody"`
}

func slideText(data []byte) string {
	var slide pptxSlide
	if err := xml.Unmarshal(data, &slide); err != nil {
		return ""
	}

	var lines []string
	for _, sp := range slide.CSld.SpTree.SPs {
		if sp.TxBody == nil {
			continue
		}
		for _, para := range sp.TxBody.Paras {
			var line strings.Builder
			for _, run := range para.Runs {
				line.WriteString(run.Text)
			}
			if t := strings.TrimSpace(line.String()); t != "" {
				lines = append(lines, t)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// slideNumber returns N for "ppt/slides/slideN.xml" and 0 otherwise.
func slideNumber(name string) int {
	rest, ok := strings.CutPrefix(name, "ppt/slides/slide")
	if !ok {
		return 0
	}
	rest, ok = strings.CutSuffix(rest, ".xml")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0
	}
	return n
}
