package llm

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wolo-ai/wolo/internal/logging"
)

// DebugRecorder captures raw request/response traffic for troubleshooting.
// Two sinks, independently optional: a single append-only file receiving
// one timestamped record per call, and a directory receiving one file per
// call with the serialized input, the raw SSE stream, and a trailer.
// A nil recorder is valid and records nothing.
type DebugRecorder struct {
	mu   sync.Mutex
	file string
	dir  string
	seq  int
}

// NewDebugRecorder builds a recorder. Empty paths disable that sink.
func NewDebugRecorder(file, dir string) *DebugRecorder {
	if file == "" && dir == "" {
		return nil
	}
	return &DebugRecorder{file: file, dir: dir}
}

// requestRecord tracks one call. Nil-safe like its parent.
type requestRecord struct {
	parent  *DebugRecorder
	started time.Time
	reqBody []byte
	headers string
	perReq  *os.File
	raw     strings.Builder
}

func (d *DebugRecorder) begin(reqBody []byte, headers http.Header) *requestRecord {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	rec := &requestRecord{
		parent:  d,
		started: time.Now(),
		reqBody: reqBody,
		headers: redactHeaders(headers),
	}

	if d.dir != "" {
		if err := os.MkdirAll(d.dir, 0o755); err == nil {
			name := fmt.Sprintf("%s_%03d.log", rec.started.Format("20060102_150405"), seq)
			f, err := os.Create(filepath.Join(d.dir, name))
			if err == nil {
				rec.perReq = f
				fmt.Fprintf(f, "=== request %s ===\n%s\n%s\n=== stream ===\n", rec.started.Format(time.RFC3339), rec.headers, reqBody)
			} else {
				logging.Warn().Err(err).Msg("cannot create llm debug file")
			}
		}
	}
	return rec
}

func (r *requestRecord) rawLine(line string) {
	if r == nil {
		return
	}
	r.raw.WriteString(line)
	r.raw.WriteByte('\n')
	if r.perReq != nil {
		fmt.Fprintln(r.perReq, line)
	}
}

func (r *requestRecord) finish(finishReason string, callErr error) {
	if r == nil {
		return
	}
	if r.perReq != nil {
		fmt.Fprintf(r.perReq, "=== trailer ===\nfinish_reason=%s err=%v duration=%s\n",
			finishReason, callErr, time.Since(r.started).Round(time.Millisecond))
		r.perReq.Close()
	}
	if r.parent.file == "" {
		return
	}

	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()
	f, err := os.OpenFile(r.parent.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logging.Warn().Err(err).Msg("cannot open llm debug log")
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "--- %s finish_reason=%s err=%v\nheaders: %s\nrequest: %s\nresponse:\n%s\n",
		r.started.Format(time.RFC3339), finishReason, callErr, r.headers, r.reqBody, r.raw.String())
}

// redactHeaders renders headers with authorization values masked.
func redactHeaders(h http.Header) string {
	var sb strings.Builder
	for name, values := range h {
		for _, v := range values {
			if strings.EqualFold(name, "Authorization") {
				v = "Bearer ***"
			}
			fmt.Fprintf(&sb, "%s: %s; ", name, v)
		}
	}
	return strings.TrimSuffix(sb.String(), "; ")
}
