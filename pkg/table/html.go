package table

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

// HTMLOptions configures the HTML codec
type HTMLOptions struct {
	// Caption is rendered as the table caption when set
	Caption string
	// Class is set on the table element when set
	Class string
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func textCell(a atom.Atom, text string) *html.Node {
	cell := element(a)
	cell.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return cell
}

// encodeHTML renders the table as a single <table> element
func (t *Table) encodeHTML(w io.Writer, opts HTMLOptions) (int, error) {
	c, err := t.src.open()
	if err != nil {
		return 0, err
	}
	defer c.Close()

	var attrs []html.Attribute
	if opts.Class != "" {
		attrs = append(attrs, html.Attribute{Key: "class", Val: opts.Class})
	}
	tbl := element(atom.Table, attrs...)
	if opts.Caption != "" {
		tbl.AppendChild(textCell(atom.Caption, opts.Caption))
	}

	thead := element(atom.Thead)
	tr := element(atom.Tr)
	for _, h := range c.Header() {
		tr.AppendChild(textCell(atom.Th, h))
	}
	thead.AppendChild(tr)
	tbl.AppendChild(thead)

	tbody := element(atom.Tbody)
	n := 0
	for {
		row, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		tr := element(atom.Tr)
		for _, v := range row {
			tr.AppendChild(textCell(atom.Td, ToString(v)))
		}
		tbody.AppendChild(tr)
		n++
	}
	tbl.AppendChild(tbody)

	if err := html.Render(w, tbl); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to render html")
	}
	return n, nil
}

// ToHTML writes the table as an HTML <table>. An empty path writes a temp
// file. The written path is returned.
func (t *Table) ToHTML(path string, opts HTMLOptions) (string, error) {
	var rows int
	out, err := writeFile(path, ".html", false, func(w io.Writer) error {
		var err error
		rows, err = t.encodeHTML(w, opts)
		return err
	})
	if err != nil {
		return "", err
	}
	wrote("html", out, rows)
	return out, nil
}

// ToHTMLString renders the table as HTML text
func (t *Table) ToHTMLString(opts HTMLOptions) (string, error) {
	var buf bytes.Buffer
	if _, err := t.encodeHTML(&buf, opts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FromHTML returns a table that reads the first <table> of an HTML file or
// URL. The first row supplies the header; values are strings.
func FromHTML(path string) (*Table, error) {
	if err := checkLocal(path); err != nil {
		return nil, err
	}
	return &Table{src: sourceFunc(func() (cursor, error) {
		in, err := openInput(path)
		if err != nil {
			return nil, err
		}
		defer in.Close()
		header, rows, err := decodeHTML(in)
		if err != nil {
			return nil, err
		}
		c, _ := (&memSource{header: header, rows: rows}).open()
		return counted("html", c), nil
	})}, nil
}

// FromHTMLString parses HTML text held in memory
func FromHTMLString(s string) (*Table, error) {
	header, rows, err := decodeHTML(strings.NewReader(s))
	if err != nil {
		return nil, err
	}
	return FromRows(header, rows)
}

func decodeHTML(r io.Reader) ([]string, [][]any, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, nil, formatError("html", err)
	}
	tbl := findElement(doc, atom.Table)
	if tbl == nil {
		return nil, nil, errors.New(errors.ErrorTypeValue, "html input has no table")
	}

	var lines [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Tr:
				var cells []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.DataAtom == atom.Td || cell.DataAtom == atom.Th) {
						cells = append(cells, strings.TrimSpace(textOf(cell)))
					}
				}
				lines = append(lines, cells)
			case atom.Table:
				// nested tables belong to their cell
			default:
				walk(c)
			}
		}
	}
	walk(tbl)

	if len(lines) == 0 {
		return nil, nil, errors.New(errors.ErrorTypeValue, "html table has no rows")
	}
	header := lines[0]
	if err := checkUnique(header); err != nil {
		return nil, nil, err
	}
	rows := make([][]any, len(lines)-1)
	for i, line := range lines[1:] {
		row := make([]any, len(header))
		for j := range row {
			if j < len(line) {
				row[j] = line[j]
			} else {
				row[j] = ""
			}
		}
		rows[i] = row
	}
	return header, rows, nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
