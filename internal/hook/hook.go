// Package hook serves preprocessing hooks to a build host over a stream of
// newline-delimited JSON messages.
package hook

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/phobologic/remotefn/internal/transform"
)

// DefaultCacheSize is the number of markup results kept.
const DefaultCacheSize = 1024

const maxMessage = 64 << 20

// Request is one hook invocation.
type Request struct {
	ID       int64  `json:"id"`
	Hook     string `json:"hook"`
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

// Response answers the request with the same ID.
type Response struct {
	ID    int64  `json:"id"`
	Code  string `json:"code"`
	Error string `json:"error,omitempty"`
}

// Handler implements the hooks.
type Handler interface {
	Markup(transform.Input) transform.Output
	Script(transform.Input) transform.Output
	Style(transform.Input) transform.Output
}

// Server answers hook requests one at a time.
type Server struct {
	h     Handler
	cache *lru.Cache[string, string]
	log   zerolog.Logger
}

// NewServer returns a server dispatching to h, caching up to size markup
// results keyed by file name and content.
func NewServer(h Handler, size int, log zerolog.Logger) (*Server, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	return &Server{h: h, cache: cache, log: log}, nil
}

// Serve reads requests from r and writes responses to w until r is exhausted
// or ctx is done. A malformed request gets an error response; it does not
// stop the server.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxMessage)
	enc := json.NewEncoder(w)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := enc.Encode(s.handle(line)); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}

func (s *Server) handle(line []byte) Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.Warn().Err(err).Msg("malformed hook request")
		return Response{Error: fmt.Sprintf("malformed request: %v", err)}
	}
	resp := Response{ID: req.ID}
	in := transform.Input{Content: req.Content, Filename: req.Filename}

	switch req.Hook {
	case "markup":
		key := cacheKey(req.Filename, req.Content)
		if code, ok := s.cache.Get(key); ok {
			s.log.Debug().Str("doc", req.Filename).Msg("markup cache hit")
			resp.Code = code
			return resp
		}
		resp.Code = s.h.Markup(in).Code
		s.cache.Add(key, resp.Code)
	case "script":
		resp.Code = s.h.Script(in).Code
	case "style":
		resp.Code = s.h.Style(in).Code
	default:
		resp.Error = fmt.Sprintf("unknown hook %q", req.Hook)
		resp.Code = req.Content
	}
	return resp
}

func cacheKey(filename, content string) string {
	h := sha256.New()
	h.Write([]byte(filename))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}
