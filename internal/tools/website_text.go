package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

var WebsiteTextSpec = Specification{
	Name:        "website_text",
	Description: "Get the text content of a website by stripping all non-text tags and trimming whitespace.",
	Inputs: InputSchema{
		Type: "object",
		Properties: map[string]ParameterObject{
			"url": {
				Type:        "string",
				Description: "The URL of the website to retrieve the text content from.",
			},
		},
		Required: []string{"url"},
	},
}

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

const maxWebsiteBytes = 5 << 20

var (
	skipTags = map[string]bool{
		"script": true, "style": true, "noscript": true, "head": true,
		"iframe": true, "svg": true, "canvas": true, "template": true,
	}
	blockTags = map[string]bool{
		"p": true, "div": true, "li": true, "section": true, "article": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"header": true, "footer": true, "nav": true, "br": true, "ul": true, "ol": true,
	}
)

type websiteTextTool struct {
	Base
	client httpDoer
}

// NewWebsiteText returns the factory of the website_text tool. A nil client
// uses an http.Client with a 10 second timeout.
func NewWebsiteText(client httpDoer) Factory {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return func(b Base) Tool {
		return &websiteTextTool{Base: b, client: client}
	}
}

func (w *websiteTextTool) Execute(ctx context.Context, args Args) Response {
	text, err := w.fetch(ctx, args.String("url"))
	if err != nil {
		return Response{Message: fmt.Sprintf("failed to get website text: %v", err)}
	}
	if text == "" {
		return Response{Message: "the website contains no text"}
	}
	return Response{Message: text}
}

func (w *websiteTextTool) fetch(ctx context.Context, urlStr string) (string, error) {
	u, err := url.ParseRequestURI(urlStr)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; agentloop)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}
	ctype := resp.Header.Get("Content-Type")
	if ctype != "" &&
		!strings.Contains(ctype, "text/html") &&
		!strings.Contains(ctype, "application/xhtml+xml") &&
		!strings.Contains(ctype, "text/plain") {
		return "", fmt.Errorf("unsupported content-type: %s", ctype)
	}

	var r io.Reader = io.LimitReader(resp.Body, maxWebsiteBytes)
	if ur, err := charset.NewReader(r, ctype); err == nil {
		r = ur
	}
	return htmlText(r)
}

// htmlText returns the visible text of an html document, one block per line.
func htmlText(r io.Reader) (string, error) {
	tokenizer := html.NewTokenizer(r)
	skipDepth := 0
	var text strings.Builder
	writeNL := func() {
		s := text.String()
		if len(s) > 0 && s[len(s)-1] != '\n' {
			text.WriteByte('\n')
		}
	}
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				out := strings.TrimSpace(text.String())
				for strings.Contains(out, "\n\n\n") {
					out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
				}
				return out, nil
			}
			return "", fmt.Errorf("tokenizer error: %w", tokenizer.Err())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tag := strings.ToLower(string(name))
			if skipTags[tag] {
				if tt == html.StartTagToken {
					skipDepth++
				} else if tt == html.EndTagToken && skipDepth > 0 {
					skipDepth--
				}
			}
			if blockTags[tag] {
				writeNL()
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			fields := bytes.Fields(tokenizer.Text())
			if len(fields) == 0 {
				continue
			}
			text.Write(bytes.Join(fields, []byte(" ")))
			text.WriteByte('\n')
		}
	}
}
