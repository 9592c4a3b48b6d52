package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const webfetchDescription = `Fetches content from a URL and returns it in the requested format.

Usage:
- The URL must be fully formed and start with http:// or https://
- This tool is read-only and does not modify any files
- Responses over 5MB are rejected
- Use format "markdown" for readable content, "text" for plain text, "html" for raw HTML`

const (
	maxFetchSize        = 5 * 1024 * 1024
	defaultFetchTimeout = 30 * time.Second
	maxFetchTimeout     = 120 * time.Second
)

// WebFetchTool retrieves web pages for the model.
type WebFetchTool struct {
	client *http.Client
}

// WebFetchInput represents the input for the webfetch tool.
type WebFetchInput struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Timeout int    `json:"timeout,omitempty"` // seconds
}

// NewWebFetchTool creates a new webfetch tool.
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{
		client: &http.Client{Timeout: maxFetchTimeout},
	}
}

func (t *WebFetchTool) ID() string          { return "webfetch" }
func (t *WebFetchTool) Description() string { return webfetchDescription }

func (t *WebFetchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "The URL to fetch content from"
			},
			"format": {
				"type": "string",
				"enum": ["text", "markdown", "html"],
				"description": "The format to return the content in"
			},
			"timeout": {
				"type": "integer",
				"description": "Optional timeout in seconds (max 120)"
			}
		},
		"required": ["url", "format"]
	}`)
}

func (t *WebFetchTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params WebFetchInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "invalid input: " + err.Error()}
	}
	if !strings.HasPrefix(params.URL, "http://") && !strings.HasPrefix(params.URL, "https://") {
		return nil, &Error{ToolName: t.ID(), Message: "URL must start with http:// or https://"}
	}
	if params.Format != "text" && params.Format != "markdown" && params.Format != "html" {
		return nil, &Error{ToolName: t.ID(), Message: "format must be 'text', 'markdown', or 'html'"}
	}

	timeout := defaultFetchTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Second
		if timeout > maxFetchTimeout {
			timeout = maxFetchTimeout
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, params.URL, nil)
	if err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "cannot build request: " + err.Error()}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	switch params.Format {
	case "markdown":
		req.Header.Set("Accept", "text/markdown;q=1.0, text/x-markdown;q=0.9, text/plain;q=0.8, text/html;q=0.7, */*;q=0.1")
	case "text":
		req.Header.Set("Accept", "text/plain;q=1.0, text/markdown;q=0.9, text/html;q=0.8, */*;q=0.1")
	case "html":
		req.Header.Set("Accept", "text/html;q=1.0, application/xhtml+xml;q=0.9, text/plain;q=0.8, */*;q=0.1")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{ToolName: t.ID(), Message: fmt.Sprintf("request exceeded %s", timeout)}
		}
		return nil, &Error{ToolName: t.ID(), Message: "request failed: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{ToolName: t.ID(), Message: fmt.Sprintf("request failed with status %d", resp.StatusCode)}
	}
	if resp.ContentLength > maxFetchSize {
		return nil, &Error{ToolName: t.ID(), Message: "response too large (exceeds 5MB limit)"}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize+1))
	if err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "cannot read response: " + err.Error()}
	}
	if len(body) > maxFetchSize {
		return nil, &Error{ToolName: t.ID(), Message: "response too large (exceeds 5MB limit)"}
	}

	content := string(body)
	contentType := resp.Header.Get("Content-Type")

	output := content
	switch params.Format {
	case "markdown":
		if strings.Contains(contentType, "text/html") {
			output, err = htmlToMarkdown(content)
			if err != nil {
				return nil, &Error{ToolName: t.ID(), Message: "cannot convert HTML to markdown: " + err.Error()}
			}
		}
	case "text":
		if strings.Contains(contentType, "text/html") {
			output, err = htmlToText(content)
			if err != nil {
				return nil, &Error{ToolName: t.ID(), Message: "cannot extract text from HTML: " + err.Error()}
			}
		}
	}

	return &Result{
		Output: output,
		Metadata: map[string]any{
			"url":          params.URL,
			"content_type": contentType,
			"bytes":        len(body),
		},
	}, nil
}

func (t *WebFetchTool) FormatStart(input map[string]any) string {
	url, _ := input["url"].(string)
	return "webfetch: " + url
}

// htmlToText strips markup and non-content elements, leaving page text.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	return strings.TrimSpace(doc.Text()), nil
}

func htmlToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("script", "style", "meta", "link")
	return converter.ConvertString(html)
}
