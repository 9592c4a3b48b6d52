package tool

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const samplePage = `<html><head><title>t</title><script>var x=1;</script></head>
<body><h1>Heading</h1><p>Some <em>body</em> text.</p></body></html>`

func webServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(samplePage))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("just text"))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebFetch_Text(t *testing.T) {
	srv := webServer(t)
	wf := NewWebFetchTool()

	res, err := execTool(t, wf, nil, WebFetchInput{URL: srv.URL + "/page", Format: "text"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Output, "Heading") || !strings.Contains(res.Output, "body text") {
		t.Errorf("output = %q", res.Output)
	}
	if strings.Contains(res.Output, "var x=1") {
		t.Error("script content must be stripped")
	}
}

func TestWebFetch_Markdown(t *testing.T) {
	srv := webServer(t)
	wf := NewWebFetchTool()

	res, err := execTool(t, wf, nil, WebFetchInput{URL: srv.URL + "/page", Format: "markdown"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Output, "# Heading") {
		t.Errorf("expected atx heading, got %q", res.Output)
	}
	if !strings.Contains(res.Output, "*body*") {
		t.Errorf("expected emphasis marker, got %q", res.Output)
	}
}

func TestWebFetch_HTMLPassthrough(t *testing.T) {
	srv := webServer(t)
	wf := NewWebFetchTool()

	res, err := execTool(t, wf, nil, WebFetchInput{URL: srv.URL + "/page", Format: "html"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Output, "<h1>Heading</h1>") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestWebFetch_NonHTMLReturnsRaw(t *testing.T) {
	srv := webServer(t)
	wf := NewWebFetchTool()

	res, err := execTool(t, wf, nil, WebFetchInput{URL: srv.URL + "/plain", Format: "markdown"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != "just text" {
		t.Errorf("output = %q", res.Output)
	}
}

func TestWebFetch_RejectsBadInput(t *testing.T) {
	srv := webServer(t)
	wf := NewWebFetchTool()

	cases := []WebFetchInput{
		{URL: "ftp://example.com/file", Format: "text"},
		{URL: srv.URL + "/page", Format: "pdf"},
	}
	for _, in := range cases {
		_, err := execTool(t, wf, nil, in)
		var toolErr *Error
		if !errors.As(err, &toolErr) {
			t.Errorf("input %+v: expected tool Error, got %v", in, err)
		}
	}
}

func TestWebFetch_NonSuccessStatus(t *testing.T) {
	srv := webServer(t)
	wf := NewWebFetchTool()

	_, err := execTool(t, wf, nil, WebFetchInput{URL: srv.URL + "/missing", Format: "text"})
	var toolErr *Error
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected tool Error, got %v", err)
	}
	if !strings.Contains(toolErr.Message, "404") {
		t.Errorf("message = %q", toolErr.Message)
	}
}
