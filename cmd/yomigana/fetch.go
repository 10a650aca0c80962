package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/japaniel/yomigana/pkg/furigana"
)

// maxBodySize caps fetched HTML so an untrusted URL cannot exhaust memory.
const maxBodySize = 10 * 1024 * 1024

type article struct {
	Title string
	Text  string
}

func fetchHTML(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	// Some news sites block requests without a browser-like agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.8,en;q=0.5")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", rawURL, resp.Status)
	}
	if resp.ContentLength > maxBodySize {
		return nil, fmt.Errorf("content length %d exceeds limit of %d bytes", resp.ContentLength, maxBodySize)
	}
	// Read one byte past the limit to tell a full body from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxBodySize)
	}
	return body, nil
}

// extractArticle pulls the main text out of an HTML page. Ruby readings
// are rewritten to inline notation first so they survive extraction as
// 漢字(かんじ) instead of being glued onto the base text.
func extractArticle(html []byte, pageURL string) (article, error) {
	u := &url.URL{Scheme: "file", Path: "/"}
	if pageURL != "" {
		var err error
		if u, err = url.Parse(pageURL); err != nil {
			return article{}, err
		}
	}
	a, err := readability.FromReader(bytes.NewReader(furigana.RubyToNotation(html)), u)
	if err != nil {
		return article{}, fmt.Errorf("extract article: %w", err)
	}
	return article{Title: a.Title, Text: a.TextContent}, nil
}
