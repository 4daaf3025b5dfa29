// Package wx talks to the WeChat mini-program API. Only the code to
// session exchange is implemented; everything downstream works with the
// opaque open id it returns.
package wx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const sessionURL = "https://api.weixin.qq.com/sns/jscode2session"

// ErrInvalidCode is returned when the login code was already used or
// never valid. Callers should ask the client for a fresh one.
var ErrInvalidCode = errors.New("wx: invalid login code")

// ErrBusy is returned when the WeChat side reports transient overload,
// either the platform itself or a per-user rate limit.
var ErrBusy = errors.New("wx: service busy, retry later")

// Client exchanges mini-program login codes for session identifiers.
type Client struct {
	AppID  string
	Secret string
	HTTP   *http.Client
}

func NewClient(appID, secret string) *Client {
	return &Client{
		AppID:  appID,
		Secret: secret,
		HTTP:   &http.Client{Timeout: 5 * time.Second},
	}
}

type sessionResp struct {
	OpenID     string `json:"openid"`
	UnionID    string `json:"unionid"`
	SessionKey string `json:"session_key"`
	ErrCode    int    `json:"errcode"`
	ErrMsg     string `json:"errmsg"`
}

// Exchange resolves a login code into the user's open id and, when the
// account is bound to an open platform, the union id.
func (c *Client) Exchange(ctx context.Context, code string) (string, string, error) {
	q := url.Values{}
	q.Set("appid", c.AppID)
	q.Set("secret", c.Secret)
	q.Set("js_code", code)
	q.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sessionURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var body sessionResp
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("wx: decode session response: %w", err)
	}

	switch body.ErrCode {
	case 0:
		return body.OpenID, body.UnionID, nil
	case -1, 45011:
		return "", "", ErrBusy
	case 40029:
		return "", "", ErrInvalidCode
	default:
		return "", "", fmt.Errorf("wx: code exchange failed: %s (%d)", body.ErrMsg, body.ErrCode)
	}
}
