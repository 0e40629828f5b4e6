package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"pagedesk/pkg/telemetry"
)

const (
	DefaultBaseURL = "https://graph.facebook.com"
	DefaultVersion = "v18.0"
	DefaultTimeout = 5 * time.Second
)

var (
	// ErrNoToken is returned when a call needs a page access token and none was given.
	ErrNoToken = errors.New("graph: missing access token")
	// ErrInvalidID is returned for node ids that are not a single path segment
	// of letters, digits, '_' or '-'.
	ErrInvalidID = errors.New("graph: invalid node id")
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Version string
	Timeout time.Duration
	// Dial overrides how connections are made; tests use an in-memory listener.
	Dial fasthttp.DialFunc
}

// Client talks to the Graph API over fasthttp.
type Client struct {
	base    string
	version string
	timeout time.Duration
	hc      *fasthttp.Client
}

// UserProfile is the subset of a user node the service reads.
type UserProfile struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ProfilePic string `json:"profile_pic"`
}

// SendResult is the response of a send call.
type SendResult struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

// APIError is a non-2xx Graph response.
type APIError struct {
	Status    int
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("graph: status %d", e.Status)
	}
	return fmt.Sprintf("graph: status %d: %s", e.Status, e.Message)
}

// New builds a Client, filling defaults for empty options.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	hc := &fasthttp.Client{
		Name:                "pagedesk",
		ReadTimeout:         opts.Timeout,
		WriteTimeout:        opts.Timeout,
		MaxIdleConnDuration: 90 * time.Second,
		Dial:                opts.Dial,
	}
	return &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		version: strings.Trim(opts.Version, "/"),
		timeout: opts.Timeout,
		hc:      hc,
	}
}

// GetProfile fetches the display fields of a page-scoped user id.
func (c *Client) GetProfile(ctx context.Context, userID, token string) (UserProfile, error) {
	tr := telemetry.Track("graph.get_profile")
	defer tr.Finish()

	if token == "" {
		return UserProfile{}, ErrNoToken
	}
	if !validNodeID(userID) {
		return UserProfile{}, fmt.Errorf("get profile %q: %w", userID, ErrInvalidID)
	}
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Add("fields", "first_name,last_name,profile_pic")
	args.Add("access_token", token)

	var out UserProfile
	if err := c.do(ctx, fasthttp.MethodGet, "/"+userID, args, nil, &out); err != nil {
		return UserProfile{}, fmt.Errorf("get profile %s: %w", userID, err)
	}
	if out.ID == "" {
		out.ID = userID
	}
	return out, nil
}

type sendRequest struct {
	Recipient map[string]string `json:"recipient"`
	Message   struct {
		Text string `json:"text"`
	} `json:"message"`
}

// SendMessage sends a text message to a page-scoped user id.
func (c *Client) SendMessage(ctx context.Context, token, recipientID, text string) (SendResult, error) {
	return c.send(ctx, token, map[string]string{"id": recipientID}, text)
}

// SendOneTimeNotification sends text using a one-time notification token.
func (c *Client) SendOneTimeNotification(ctx context.Context, token, otnToken, text string) (SendResult, error) {
	return c.send(ctx, token, map[string]string{"one_time_notif_token": otnToken}, text)
}

func (c *Client) send(ctx context.Context, token string, recipient map[string]string, text string) (SendResult, error) {
	tr := telemetry.Track("graph.send")
	defer tr.Finish()

	if token == "" {
		return SendResult{}, ErrNoToken
	}
	var body sendRequest
	body.Recipient = recipient
	body.Message.Text = text
	payload, err := json.Marshal(body)
	if err != nil {
		return SendResult{}, err
	}

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Add("access_token", token)

	var out SendResult
	if err := c.do(ctx, fasthttp.MethodPost, "/me/messages", args, payload, &out); err != nil {
		return SendResult{}, fmt.Errorf("send message: %w", err)
	}
	return out, nil
}

// validNodeID reports whether id can be placed in a request path as is.
func validNodeID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

func (c *Client) do(ctx context.Context, method, path string, args *fasthttp.Args, body []byte, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	release := func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}

	uri := c.base + "/" + c.version + path
	if args != nil && args.Len() > 0 {
		uri += "?" + args.String()
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	// DoDeadline does not watch ctx; the call runs aside so cancellation
	// returns at once. req and resp stay with it until it finishes.
	errc := make(chan error, 1)
	go func() { errc <- c.hc.DoDeadline(req, resp, deadline) }()
	select {
	case err := <-errc:
		defer release()
		if err != nil {
			return err
		}
	case <-ctx.Done():
		go func() {
			<-errc
			release()
		}()
		return ctx.Err()
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		apiErr := &APIError{Status: status}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(resp.Body(), &envelope) == nil && envelope.Error != nil {
			envelope.Error.Status = status
			apiErr = envelope.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
