package cmd

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/valyala/fasthttp"
)

// dial overrides how connections are made; tests route to an in-memory listener.
var dial fasthttp.DialFunc

type response struct {
	Status int
	Body   []byte
}

func (r response) ok() bool { return r.Status >= 200 && r.Status < 300 }

// errorf renders a non-2xx response, preferring the server's error field.
func (r response) errorf() error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(r.Body, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", r.Status, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", r.Status, string(r.Body))
}

func do(s *Settings, method, path string, headers map[string]string, body []byte) (response, error) {
	c := &fasthttp.Client{Name: "pagedeskctl", Dial: dial}
	if dial == nil {
		c.Dial = func(addr string) (net.Conn, error) { return fasthttp.DialTimeout(addr, s.Timeout) }
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.Addr + path)
	req.Header.SetMethod(method)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.SetBody(body)
	}
	if err := c.DoTimeout(req, resp, s.Timeout); err != nil {
		return response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return response{Status: resp.StatusCode(), Body: append([]byte(nil), resp.Body()...)}, nil
}

func adminHeaders(s *Settings) (map[string]string, error) {
	if s.AdminKey == "" {
		return nil, fmt.Errorf("admin key required: pass --admin-key or set admin_key in the settings file")
	}
	return map[string]string{"X-API-Key": s.AdminKey}, nil
}
