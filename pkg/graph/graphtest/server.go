// Package graphtest runs an in-memory fake of the Graph API endpoints the
// service calls.
package graphtest

import (
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"pagedesk/pkg/graph"
)

// Sent is one message received by the fake send endpoint.
type Sent struct {
	Token     string
	Recipient map[string]string
	Text      string
}

// Server is a fake Graph API bound to an in-memory listener.
type Server struct {
	mu       sync.Mutex
	profiles map[string]graph.UserProfile
	sent     []Sent
	status   int
	delay    time.Duration
	calls    int

	ln  *fasthttputil.InmemoryListener
	srv *fasthttp.Server
}

// New starts a fake server that is shut down when t finishes.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{profiles: map[string]graph.UserProfile{}, ln: fasthttputil.NewInmemoryListener()}
	s.srv = &fasthttp.Server{Handler: s.handle}
	go func() { _ = s.srv.Serve(s.ln) }()
	t.Cleanup(func() {
		_ = s.srv.Shutdown()
		_ = s.ln.Close()
	})
	return s
}

// Options returns client options that route to this server.
func (s *Server) Options() graph.Options {
	return graph.Options{
		BaseURL: "http://graph.test",
		Version: graph.DefaultVersion,
		Timeout: time.Second,
		Dial:    func(string) (net.Conn, error) { return s.ln.Dial() },
	}
}

// Client returns a graph client wired to this server.
func (s *Server) Client() *graph.Client { return graph.New(s.Options()) }

// AddProfile registers a user node.
func (s *Server) AddProfile(p graph.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// FailWith makes every request answer with status.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Delay makes every request wait d before answering.
func (s *Server) Delay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Sent returns the messages received so far.
func (s *Server) Sent() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sent, len(s.sent))
	copy(out, s.sent)
	return out
}

// Calls returns the number of requests served.
func (s *Server) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	s.mu.Lock()
	s.calls++
	status, delay := s.status, s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if status != 0 {
		writeError(ctx, status, "forced failure")
		return
	}

	path := strings.TrimPrefix(string(ctx.Path()), "/"+graph.DefaultVersion)
	token := string(ctx.QueryArgs().Peek("access_token"))
	switch {
	case string(ctx.Method()) == fasthttp.MethodPost && path == "/me/messages":
		var body struct {
			Recipient map[string]string `json:"recipient"`
			Message   struct {
				Text string `json:"text"`
			} `json:"message"`
		}
		if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "bad body")
			return
		}
		s.mu.Lock()
		s.sent = append(s.sent, Sent{Token: token, Recipient: body.Recipient, Text: body.Message.Text})
		n := len(s.sent)
		s.mu.Unlock()
		recipient := body.Recipient["id"]
		writeJSON(ctx, map[string]string{"recipient_id": recipient, "message_id": "mid.sent." + strconv.Itoa(n)})
	case string(ctx.Method()) == fasthttp.MethodGet:
		id := strings.TrimPrefix(path, "/")
		s.mu.Lock()
		p, ok := s.profiles[id]
		s.mu.Unlock()
		if !ok {
			writeError(ctx, fasthttp.StatusNotFound, "unknown user")
			return
		}
		writeJSON(ctx, p)
	default:
		writeError(ctx, fasthttp.StatusNotFound, "no route")
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	ctx.SetContentType("application/json")
	_ = json.NewEncoder(ctx).Encode(v)
}

func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	ctx.SetStatusCode(status)
	writeJSON(ctx, map[string]any{"error": map[string]any{"message": msg, "type": "OAuthException", "code": 100}})
}
