package sitemap

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/morikuni/failure/v2"
)

// Parser turns sitemap XML into a Document.
type Parser interface {
	Parse(xmlText string) (Document, error)
}

// XMLParser parses sitemaps with encoding/xml.
type XMLParser struct{}

var _ Parser = XMLParser{}

// Parse reads every <url> element of xmlText in document order.
//
// The whole document must be well-formed; otherwise an ErrMalformedXML
// failure is returned with an empty Document. A <url> without <loc> is
// skipped.
func (XMLParser) Parse(xmlText string) (Document, error) {
	dec := xml.NewDecoder(strings.NewReader(xmlText))
	dec.Strict = true

	var (
		doc     = Document{Entries: []Entry{}}
		sawRoot bool
		closed  bool
		depth   int
		scopes  []map[string]bool
		current *Entry
		urlAt   int
		field   *string
		text    strings.Builder
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Document{Entries: []Entry{}}, malformed(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if closed {
				return Document{Entries: []Entry{}}, malformed(errors.New("content after root element"))
			}
			scopes = append(scopes, declared(t.Attr))
			if err := checkNames(t, scopes); err != nil {
				return Document{Entries: []Entry{}}, malformed(err)
			}
			depth++
			sawRoot = true
			name := t.Name.Local
			if name == "url" && current == nil {
				current = &Entry{}
				urlAt = depth
				continue
			}
			if current == nil || field != nil || depth != urlAt+1 {
				continue
			}
			switch name {
			case "loc":
				field = fieldOnce(&current.Location)
			case "lastmod":
				field = fieldOnce(&current.LastModified)
			case "changefreq":
				field = fieldOnce(&current.ChangeFrequency)
			case "priority":
				field = fieldOnce(&current.Priority)
			}
			text.Reset()
		case xml.CharData:
			if depth == 0 && len(strings.TrimSpace(string(t))) > 0 {
				return Document{Entries: []Entry{}}, malformed(errors.New("text outside root element"))
			}
			if field != nil {
				text.Write(t)
			}
		case xml.EndElement:
			if field != nil && depth == urlAt+1 {
				*field = strings.TrimSpace(text.String())
				field = nil
			}
			if current != nil && depth == urlAt {
				if current.Location != "" {
					doc.Entries = append(doc.Entries, *current)
				}
				current = nil
			}
			depth--
			scopes = scopes[:len(scopes)-1]
			if depth == 0 {
				closed = true
			}
		}
	}

	if !sawRoot {
		return Document{Entries: []Entry{}}, malformed(errors.New("no root element"))
	}
	return doc, nil
}

// declared returns the namespace names bound by the xmlns attributes of
// an element.
func declared(attrs []xml.Attr) map[string]bool {
	var ns map[string]bool
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			if ns == nil {
				ns = make(map[string]bool)
			}
			ns[a.Value] = true
		}
	}
	return ns
}

// checkNames rejects element and attribute names whose prefix has no
// binding in scope. The decoder leaves such a prefix in Name.Space.
func checkNames(t xml.StartElement, scopes []map[string]bool) error {
	bound := func(space string) bool {
		if space == "" || space == xmlNamespace {
			return true
		}
		for i := len(scopes) - 1; i >= 0; i-- {
			if scopes[i][space] {
				return true
			}
		}
		return false
	}
	if !bound(t.Name.Space) {
		return fmt.Errorf("unbound prefix %q on <%s>", t.Name.Space, t.Name.Local)
	}
	for _, a := range t.Attr {
		if a.Name.Space == "xmlns" {
			continue
		}
		if !bound(a.Name.Space) {
			return fmt.Errorf("unbound prefix %q on attribute %s", a.Name.Space, a.Name.Local)
		}
	}
	return nil
}

const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// fieldOnce returns dst when it has not been filled yet, so the first
// occurrence of a child element wins.
func fieldOnce(dst *string) *string {
	if *dst != "" {
		return nil
	}
	return dst
}

func malformed(err error) error {
	return failure.Wrap(err, failure.WithCode(ErrMalformedXML),
		failure.Message("Invalid XML format in sitemap"),
	)
}

// Parse parses xmlText with the default XMLParser.
func Parse(xmlText string) (Document, error) {
	return XMLParser{}.Parse(xmlText)
}
