package htmlutil

import (
	"bytes"
	"strings"
	"unicode"

	"fmcsa-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	// cells use <br> between lines of an address
	if node.Type == html.ElementNode && node.Data == "br" {
		buffer.WriteByte(' ')
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// Text is the whitespace normalized text of every node in the selection.
func Text(sel *goquery.Selection) string {
	var buffer bytes.Buffer
	for _, n := range sel.Nodes {
		getTextRecursive(n, &buffer)
		buffer.WriteByte(' ')
	}
	return textutil.NormalizeWhitespace(removeNonPrintable(buffer.String()))
}

// FormValues collects the name and value of every input inside a form.
func FormValues(form *goquery.Selection) map[string]string {
	values := map[string]string{}
	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := input.Attr("value")
		values[name] = value
	})
	return values
}

// Cells returns the text of every th and td directly inside a table row.
func Cells(row *goquery.Selection) []string {
	var out []string
	row.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
		out = append(out, Text(cell))
	})
	return out
}
