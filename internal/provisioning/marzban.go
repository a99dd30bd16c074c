package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lvlrf/radpanel/internal/clock"
	"go.uber.org/zap"
)

// tokens are issued for an hour; refresh well before that.
const tokenLifetime = 50 * time.Minute

type MarzbanConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// marzbanClient is a token-caching REST client for the Marzban panel API.
// Safe for concurrent use.
type marzbanClient struct {
	baseURL  string
	username string
	password string
	client   *http.Client
	clock    clock.Clock
	log      *zap.Logger

	mu           sync.Mutex
	token        string
	tokenExpires time.Time
}

func NewMarzbanClient(cfg MarzbanConfig, clk clock.Clock, log *zap.Logger) Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &marzbanClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: timeout},
		clock:    clk,
		log:      log.Named("provisioning.marzban"),
	}
}

func (c *marzbanClient) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.token != "" && now.Before(c.tokenExpires) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/admin/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: authentication failed: status %d: %s", ErrUnavailable, resp.StatusCode, body)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", ErrUnavailable, err)
	}

	c.token = out.AccessToken
	c.tokenExpires = now.Add(tokenLifetime)
	return c.token, nil
}

func (c *marzbanClient) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	return resp, nil
}

// marzbanUser mirrors the panel's user payload.
type marzbanUser struct {
	Username        string `json:"username"`
	Status          string `json:"status"`
	Expire          *int64 `json:"expire"`
	DataLimit       int64  `json:"data_limit"`
	UsedTraffic     int64  `json:"used_traffic"`
	SubscriptionURL string `json:"subscription_url"`
	Note            string `json:"note"`
}

func (u marzbanUser) toRecord() *Record {
	rec := &Record{
		Username:        u.Username,
		Status:          Status(u.Status),
		DataLimit:       u.DataLimit,
		UsedTraffic:     u.UsedTraffic,
		SubscriptionURL: u.SubscriptionURL,
		Note:            u.Note,
	}
	if u.Expire != nil && *u.Expire > 0 {
		t := time.Unix(*u.Expire, 0).UTC()
		rec.ExpireAt = &t
	}
	return rec
}

func (c *marzbanClient) Exists(ctx context.Context, username string) (bool, error) {
	_, err := c.Get(ctx, username)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (c *marzbanClient) Create(ctx context.Context, req CreateRequest) (*Record, error) {
	var expire *int64
	status := string(StatusActive)
	if req.OnHold {
		status = string(StatusOnHold)
	} else {
		ts := c.clock.Now().Add(time.Duration(req.Days) * 24 * time.Hour).Unix()
		expire = &ts
	}

	payload := map[string]any{
		"username":                  req.Username,
		"proxies":                   map[string]any{},
		"inbounds":                  map[string]any{},
		"expire":                    expire,
		"data_limit":                GBToBytes(req.QuotaGB),
		"data_limit_reset_strategy": "no_reset",
		"status":                    status,
		"note":                      req.Note,
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/user", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var u marzbanUser
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
			return nil, fmt.Errorf("decode create response: %w", err)
		}
		return u.toRecord(), nil
	case http.StatusConflict:
		return nil, ErrUsernameTaken
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: create user: status %d: %s", ErrUnavailable, resp.StatusCode, body)
	}
}

func (c *marzbanClient) Get(ctx context.Context, username string) (*Record, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/user/"+url.PathEscape(username), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var u marzbanUser
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		return u.toRecord(), nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: get user: status %d: %s", ErrUnavailable, resp.StatusCode, body)
	}
}

func (c *marzbanClient) Disable(ctx context.Context, username string) error {
	return c.setStatus(ctx, username, StatusDisabled)
}

func (c *marzbanClient) Enable(ctx context.Context, username string) error {
	return c.setStatus(ctx, username, StatusActive)
}

func (c *marzbanClient) setStatus(ctx context.Context, username string, status Status) error {
	resp, err := c.do(ctx, http.MethodPut, "/api/user/"+url.PathEscape(username), map[string]any{
		"status": string(status),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: set status %s: status %d: %s", ErrUnavailable, status, resp.StatusCode, body)
	}
}

func (c *marzbanClient) Delete(ctx context.Context, username string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/user/"+url.PathEscape(username), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound:
		// Deleting a user that is already gone is a success.
		return nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: delete user: status %d: %s", ErrUnavailable, resp.StatusCode, body)
	}
}
