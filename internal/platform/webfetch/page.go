package webfetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// Page is the readable content of a source as seen by the validation grader.
type Page struct {
	URL       string
	Title     string
	Text      string
	WordCount int
}

type PageReader struct {
	client *http.Client
	opts   Options
}

func NewPageReader(timeout time.Duration, o Options) *PageReader {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	o.Timeout = timeout
	return &PageReader{client: newHTTPClient(o), opts: o}
}

// Read fetches rawURL and extracts its main article. Pages readability cannot
// parse fall back to the plain visible text.
func (r *PageReader) Read(ctx context.Context, rawURL string) (*Page, error) {
	res, err := get(ctx, r.client, r.opts, rawURL)
	if err != nil {
		return nil, err
	}
	if res.Status < 200 || res.Status >= 300 {
		return nil, fmt.Errorf("HTTP %d", res.Status)
	}
	page := &Page{URL: res.FinalURL}
	base, _ := url.Parse(res.FinalURL)
	article, aerr := readability.FromReader(bytes.NewReader(res.Body), base)
	if aerr == nil {
		page.Title = strings.TrimSpace(article.Title)
		page.Text = strings.Join(strings.Fields(article.TextContent), " ")
	}
	if page.Text == "" {
		text, err := VisibleText(res.Body)
		if err != nil {
			return nil, err
		}
		page.Text = text
	}
	page.WordCount = CountWords(page.Text)
	return page, nil
}
