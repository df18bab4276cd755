// Package roomapi talks to the authoritative room service over HTTP.
package roomapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/zxckotee/pvp-arena/internal/session"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

const maxErrorBody = 64 << 10

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("room service %d: %s (%s)", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("room service %d: %s", e.Status, e.Message)
}

// Refused reports whether the service understood the request and declined it.
func (e *APIError) Refused() bool {
	return e.Status == http.StatusConflict || e.Status == http.StatusUnprocessableEntity
}

type Client struct {
	base  *url.URL
	token string
	http  *http.Client
	log   *zap.Logger
	group singleflight.Group
}

var _ session.RoomService = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithToken(token string) Option { return func(c *Client) { c.token = token } }

func WithLogger(log *zap.Logger) Option { return func(c *Client) { c.log = log } }

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse service url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported service url scheme %q", u.Scheme)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 5 * time.Second},
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("roomapi")
	return c, nil
}

func (c *Client) ListRooms(ctx context.Context) ([]types.RoomSummary, error) {
	var out []types.RoomSummary
	err := c.get(ctx, "/rooms", nil, &out)
	return out, err
}

func (c *Client) GetRoomDetails(ctx context.Context, roomID string) (types.RoomDetails, error) {
	var out types.RoomDetails
	err := c.get(ctx, "/rooms/"+url.PathEscape(roomID), nil, &out)
	return out, err
}

func (c *Client) GetRoomState(ctx context.Context, roomID string, lastActionID int64) (types.RoomState, error) {
	var out types.RoomState
	q := url.Values{"lastActionId": {strconv.FormatInt(lastActionID, 10)}}
	err := c.get(ctx, "/rooms/"+url.PathEscape(roomID)+"/state", q, &out)
	return out, err
}

// PerformAction submits one action. A rules rejection comes back as an
// unsuccessful result, not an error.
func (c *Client) PerformAction(ctx context.Context, roomID string, req types.ActionRequest) (types.ActionResult, error) {
	var out types.ActionResult
	err := c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/actions", nil, req, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Refused() {
		return types.ActionResult{Success: false, Error: apiErr.Message}, nil
	}
	return out, err
}

// JoinRoom asks for (team, position). A refused seat is an unsuccessful result.
func (c *Client) JoinRoom(ctx context.Context, roomID string, team, position int) (types.JoinResult, error) {
	var out types.JoinResult
	body := types.JoinRequest{Team: team, Position: position}
	err := c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/join", nil, body, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Refused() {
		c.log.Debug("join refused", zap.String("room", roomID), zap.String("reason", apiErr.Message))
		return types.JoinResult{Success: false}, nil
	}
	return out, err
}

func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/leave", nil, nil, nil)
}

func (c *Client) DismissRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/dismiss", nil, nil, nil)
}

func (c *Client) CreateRoom(ctx context.Context, mode types.Mode) (string, error) {
	var out types.CreateRoomResponse
	if err := c.do(ctx, http.MethodPost, "/rooms", nil, types.CreateRoomRequest{Mode: mode}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Techniques fetches the technique catalog. It satisfies catalog.Loader.
func (c *Client) Techniques(ctx context.Context) (types.TechniqueCatalog, error) {
	var out types.TechniqueCatalog
	err := c.get(ctx, "/techniques", nil, &out)
	return out, err
}

func (c *Client) Load(ctx context.Context) (types.TechniqueCatalog, error) { return c.Techniques(ctx) }

// get shares one in-flight request between identical concurrent calls.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	key := path + "?" + q.Encode()
	v, err, shared := c.group.Do(key, func() (any, error) {
		var raw json.RawMessage
		if err := c.do(ctx, http.MethodGet, path, q, nil, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	})
	if shared {
		c.log.Debug("shared request", zap.String("path", path))
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(v.(json.RawMessage), out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := *c.base
	u.Path += path
	u.RawQuery = q.Encode()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er types.ErrorResponse
	if json.Unmarshal(b, &er) == nil && er.Error != "" {
		apiErr.Message, apiErr.Detail = er.Error, er.Detail
	} else if s := strings.TrimSpace(string(b)); s != "" {
		apiErr.Detail = s
	}
	return apiErr
}
