package webfetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const DefaultMinWords = 50

// Verification is the content gate verdict for one URL.
type Verification struct {
	Valid      bool   `json:"valid"`
	WordCount  int    `json:"word_count,omitempty"`
	HTTPStatus int    `json:"http_status,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Verifier struct {
	client   *http.Client
	opts     Options
	minWords int
}

func NewVerifier(timeout time.Duration, minWords int, o Options) *Verifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if minWords <= 0 {
		minWords = DefaultMinWords
	}
	o.Timeout = timeout
	return &Verifier{client: newHTTPClient(o), opts: o, minWords: minWords}
}

// Verify fetches rawURL and checks it carries at least minWords words of
// visible text. Errors are folded into the verdict.
func (v *Verifier) Verify(ctx context.Context, rawURL string) Verification {
	res, err := get(ctx, v.client, v.opts, rawURL)
	if err != nil {
		return Verification{Error: err.Error()}
	}
	if res.Status < 200 || res.Status >= 300 {
		return Verification{HTTPStatus: res.Status, Error: fmt.Sprintf("HTTP %d", res.Status)}
	}
	text, err := VisibleText(res.Body)
	if err != nil {
		return Verification{HTTPStatus: res.Status, Error: err.Error()}
	}
	n := CountWords(text)
	if n < v.minWords {
		return Verification{WordCount: n, HTTPStatus: res.Status, Error: fmt.Sprintf("%d words (minimum %d)", n, v.minWords)}
	}
	return Verification{Valid: true, WordCount: n, HTTPStatus: res.Status}
}

// VisibleText drops script, style and page chrome blocks and returns the
// remaining text nodes separated by single spaces.
func VisibleText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, header, footer").Remove()

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " "), nil
}

// CountWords counts whitespace separated tokens longer than two characters.
func CountWords(text string) int {
	n := 0
	for _, tok := range strings.Fields(text) {
		if utf8.RuneCountInString(tok) > 2 {
			n++
		}
	}
	return n
}
