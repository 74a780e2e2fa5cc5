package ingest

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/sjawhar/panner/internal/content"
)

// wisdomBooks are the KJV books kept by ParseKJV, matched as line prefixes.
var wisdomBooks = []string{"Proverbs", "Ecclesiastes", "Song of Solomon"}

// Result is the outcome of parsing one source.
type Result struct {
	Units   []content.TextUnit
	Dropped int
}

// ParseKJV reads the plain-text KJV ("Book c:v<TAB>text" per line) and keeps
// the wisdom books.
func ParseKJV(r io.Reader) (Result, error) {
	var res Result

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		book := wisdomBook(line)
		if book == "" {
			continue
		}

		unit, ok := splitKJVLine(line, book)
		if !ok {
			res.Dropped++
			continue
		}
		res.Units = append(res.Units, unit)
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("scan kjv: %w", err)
	}
	return res, nil
}

func wisdomBook(line string) string {
	for _, b := range wisdomBooks {
		if strings.HasPrefix(line, b+" ") {
			return b
		}
	}
	return ""
}

func splitKJVLine(line, book string) (content.TextUnit, bool) {
	split := strings.IndexByte(line, '\t')
	if split == -1 {
		idx := len(book) + 1
		for idx < len(line) && (isDigit(line[idx]) || line[idx] == ':') {
			idx++
		}
		split = idx
	}
	if split >= len(line) {
		return content.TextUnit{}, false
	}

	unit := content.TextUnit{
		Reference: strings.TrimSpace(line[:split]),
		Text:      strings.TrimSpace(line[split:]),
		Group:     book,
	}
	if unit.Reference == book || !unit.Valid() {
		return content.TextUnit{}, false
	}
	return unit, true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

var (
	verseMarker = regexp.MustCompile(`(\d{1,2}):(\d{1,3})`)
	verseLead   = regexp.MustCompile(`^\.?\s+`)
)

// ParseSirach extracts "c:v text" runs from the Sirach HTML page. A verse
// runs until the next chapter:verse marker.
func ParseSirach(r io.Reader) (Result, error) {
	var res Result

	raw, err := htmlText(r)
	if err != nil {
		return res, fmt.Errorf("extract sirach text: %w", err)
	}

	markers := verseMarker.FindAllStringSubmatchIndex(raw, -1)
	for i, m := range markers {
		lead := verseLead.FindStringIndex(raw[m[1]:])
		if lead == nil {
			continue
		}

		start := m[1] + lead[1]
		end := len(raw)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		if start > end {
			continue
		}

		text := strings.TrimSpace(raw[start:end])
		if len(text) <= 5 {
			res.Dropped++
			continue
		}
		res.Units = append(res.Units, content.TextUnit{
			Text:      text,
			Reference: fmt.Sprintf("Sirach %s:%s", raw[m[2]:m[3]], raw[m[4]:m[5]]),
			Group:     "Sirach",
		})
	}
	return res, nil
}

// htmlText returns the visible text of an HTML document with whitespace
// collapsed to single spaces.
func htmlText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var b strings.Builder
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			return strings.Join(strings.Fields(b.String()), " "), nil
		case html.StartTagToken:
			if name, _ := z.TagName(); isHiddenTag(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isHiddenTag(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isHiddenTag(name []byte) bool {
	switch string(name) {
	case "script", "style", "head":
		return true
	}
	return false
}

// ParseFeed turns RSS/Atom items into units grouped by feed title.
func ParseFeed(r io.Reader) (Result, error) {
	var res Result

	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return res, fmt.Errorf("parse feed: %w", err)
	}

	group := strings.TrimSpace(feed.Title)
	if group == "" {
		group = "Feed"
	}

	for _, item := range feed.Items {
		body := item.Description
		if strings.TrimSpace(body) == "" {
			body = item.Content
		}
		text, err := htmlText(strings.NewReader(body))
		if err != nil {
			res.Dropped++
			continue
		}

		unit := content.TextUnit{
			Text:      text,
			Reference: strings.TrimSpace(item.Title),
			Group:     group,
		}
		if !unit.Valid() {
			res.Dropped++
			continue
		}
		res.Units = append(res.Units, unit)
	}
	return res, nil
}
