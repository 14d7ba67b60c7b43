// Package office extracts text from Office Open XML packages: Word
// documents, PowerPoint decks and Excel workbooks.
package office

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// maxPartSize caps how much of one package part is decompressed.
const maxPartSize = 64 << 20

// Extractor handles docx, pptx and xlsx documents.
type Extractor struct{}

// New creates a new Office extractor.
func New() *Extractor {
	return &Extractor{}
}

// FileTypes returns the file types this extractor handles.
func (e *Extractor) FileTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypeDOCX, domain.FileTypePPTX, domain.FileTypeXLSX}
}

// Extract reads the package and returns its text. Decks produce
// slides_text; documents and workbooks produce extracted_text.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document, data []byte) (*domain.Extraction, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.Permanent(fmt.Errorf("%w: %s is not a valid %s package: %w",
			domain.ErrInvalidInput, doc.Key, doc.FileType, err))
	}
	pkg := &pkg{files: make(map[string]*zip.File, len(reader.File))}
	for _, f := range reader.File {
		pkg.files[f.Name] = f
	}

	var (
		text         string
		artifactType = domain.ArtifactExtractedText
	)
	switch doc.FileType {
	case domain.FileTypeDOCX:
		text, err = pkg.document()
	case domain.FileTypePPTX:
		artifactType = domain.ArtifactSlidesText
		text, err = pkg.slides(ctx)
	case domain.FileTypeXLSX:
		text, err = pkg.workbook(ctx)
	default:
		return nil, domain.Permanent(fmt.Errorf("%w: office extractor cannot read %q", domain.ErrUnsupportedType, doc.FileType))
	}
	if err != nil {
		return nil, err
	}

	return &domain.Extraction{ArtifactType: artifactType, Text: text}, nil
}

type pkg struct {
	files map[string]*zip.File
}

func (p *pkg) open(name string) ([]byte, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, domain.Permanent(fmt.Errorf("%w: package part %s is missing", domain.ErrInvalidInput, name))
	}
	rc, err := f.Open()
	if err != nil {
		return nil, domain.Permanent(fmt.Errorf("%w: open %s: %w", domain.ErrInvalidInput, name, err))
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, maxPartSize))
	if err != nil {
		return nil, domain.Permanent(fmt.Errorf("%w: read %s: %w", domain.ErrInvalidInput, name, err))
	}
	return content, nil
}

// numbered returns parts matching pattern ordered by their first
// captured number, e.g. slide2.xml before slide10.xml.
func (p *pkg) numbered(pattern *regexp.Regexp) []string {
	type part struct {
		name string
		n    int
	}
	var parts []part
	for name := range p.files {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		parts = append(parts, part{name: name, n: n})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].n < parts[j].n })

	names := make([]string, len(parts))
	for i, pt := range parts {
		names[i] = pt.name
	}
	return names
}

func (p *pkg) document() (string, error) {
	content, err := p.open("word/document.xml")
	if err != nil {
		return "", err
	}
	text, err := paragraphText(content)
	if err != nil {
		return "", domain.Permanent(fmt.Errorf("%w: word/document.xml: %w", domain.ErrInvalidInput, err))
	}
	return text, nil
}

var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func (p *pkg) slides(ctx context.Context) (string, error) {
	names := p.numbered(slidePart)
	if len(names) == 0 {
		return "", domain.Permanent(fmt.Errorf("%w: presentation has no slides", domain.ErrInvalidInput))
	}

	blocks := make([]string, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		content, err := p.open(name)
		if err != nil {
			return "", err
		}
		text, err := paragraphText(content)
		if err != nil {
			return "", domain.Permanent(fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, name, err))
		}
		blocks = append(blocks, fmt.Sprintf("Slide %d\n%s", i+1, text))
	}
	return strings.Join(blocks, "\n\n"), nil
}

// paragraphText collects <t> runs, ending a line at each </p>. The local
// names are shared by WordprocessingML (w:) and DrawingML (a:).
func paragraphText(content []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var (
		out    strings.Builder
		line   strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				line.WriteByte('\t')
			case "br":
				line.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(line.String()); s != "" {
					out.WriteString(s)
					out.WriteByte('\n')
				}
				line.Reset()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	if s := strings.TrimSpace(line.String()); s != "" {
		out.WriteString(s)
	}
	return strings.TrimSpace(out.String()), nil
}

var sheetPart = regexp.MustCompile(`^xl/worksheets/sheet(\d+)\.xml$`)

func (p *pkg) workbook(ctx context.Context) (string, error) {
	var shared []string
	if _, ok := p.files["xl/sharedStrings.xml"]; ok {
		content, err := p.open("xl/sharedStrings.xml")
		if err != nil {
			return "", err
		}
		if shared, err = sharedStrings(content); err != nil {
			return "", domain.Permanent(fmt.Errorf("%w: xl/sharedStrings.xml: %w", domain.ErrInvalidInput, err))
		}
	}

	names := p.numbered(sheetPart)
	if len(names) == 0 {
		return "", domain.Permanent(fmt.Errorf("%w: workbook has no sheets", domain.ErrInvalidInput))
	}

	blocks := make([]string, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		content, err := p.open(name)
		if err != nil {
			return "", err
		}
		rows, err := sheetRows(content, shared)
		if err != nil {
			return "", domain.Permanent(fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, name, err))
		}
		if rows == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Sheet %d\n%s", i+1, rows))
	}
	return strings.Join(blocks, "\n\n"), nil
}

// sharedStrings reads the workbook string table. Rich text entries are
// the concatenation of their runs.
func sharedStrings(content []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var (
		out    []string
		cur    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				cur.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "si":
				out = append(out, cur.String())
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
}

// sheetRows renders non-empty rows with tab-separated cell values.
func sheetRows(content []byte, shared []string) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var (
		lines    []string
		cells    []string
		value    strings.Builder
		cellType string
		inValue  bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return strings.Join(lines, "\n"), nil
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				cells = cells[:0]
			case "c":
				cellType = attr(t, "t")
				value.Reset()
			case "v", "t":
				inValue = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "v", "t":
				inValue = false
			case "c":
				cells = append(cells, cellValue(value.String(), cellType, shared))
			case "row":
				if row := strings.TrimRight(strings.Join(cells, "\t"), "\t"); strings.TrimSpace(row) != "" {
					lines = append(lines, row)
				}
			}
		case xml.CharData:
			if inValue {
				value.Write(t)
			}
		}
	}
}

func cellValue(raw, cellType string, shared []string) string {
	if cellType != "s" {
		return strings.TrimSpace(raw)
	}
	i, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || i < 0 || i >= len(shared) {
		return ""
	}
	return strings.TrimSpace(shared[i])
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
