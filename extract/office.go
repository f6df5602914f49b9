package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// readDOCX returns the body paragraphs of a Word document joined by "\n".
// Paragraphs inside tables are skipped.
func readDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	rc, err := openMember(&zr.Reader, "word/document.xml")
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var (
		paragraphs []string
		current    strings.Builder
		inPara     bool
		inText     bool
		inProps    bool
		tableDepth int
	)

	dec := xml.NewDecoder(rc)
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
			switch el.Name.Local {
			case "tbl":
				tableDepth++
			case "p":
				if tableDepth == 0 {
					inPara = true
					current.Reset()
				}
			case "pPr":
				inProps = true
			case "t":
				inText = inPara
			case "tab":
				if inPara && !inProps {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inPara {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "tbl":
				tableDepth--
			case "p":
				if inPara && tableDepth == 0 {
					paragraphs = append(paragraphs, current.String())
					inPara = false
				}
			case "pPr":
				inProps = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(el)
			}
		}
	}

	return strings.Join(paragraphs, "\n"), nil
}

type pptxSlide struct {
	Shapes []pptxShape `xml:"cSld>spTree>sp"`
}

type pptxShape struct {
	Paragraphs []pptxParagraph `xml:"txBody>p"`
}

// pptxParagraph keeps child elements in document order so runs and line
// breaks interleave correctly.
type pptxParagraph struct {
	Children []struct {
		XMLName xml.Name
		Text    string `xml:"t"`
	} `xml:",any"`
}

func (p pptxParagraph) text() string {
	var b strings.Builder
	for _, c := range p.Children {
		switch c.XMLName.Local {
		case "r", "fld":
			b.WriteString(c.Text)
		case "br":
			b.WriteByte('\v')
		}
	}
	return b.String()
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// readPPTX returns the text of every shape on every slide, slides in numeric
// order, each shape's text followed by "\n".
func readPPTX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	type slideFile struct {
		num  int
		file *zip.File
	}
	var slides []slideFile
	for _, f := range zr.File {
		m := slideName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slideFile{num: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var b strings.Builder
	for _, s := range slides {
		slide, err := decodeSlide(s.file)
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.num, err)
		}
		for _, shape := range slide.Shapes {
			lines := make([]string, len(shape.Paragraphs))
			for i, p := range shape.Paragraphs {
				lines[i] = p.text()
			}
			b.WriteString(strings.Join(lines, "\n"))
			b.WriteString("\n")
		}
	}

	return b.String(), nil
}

func decodeSlide(f *zip.File) (*pptxSlide, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var slide pptxSlide
	if err := xml.NewDecoder(rc).Decode(&slide); err != nil {
		return nil, err
	}
	return &slide, nil
}

func openMember(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}
