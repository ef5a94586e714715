package brightcove

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sac2665/apex-transcriber-backend/internal/config"
	"github.com/sac2665/apex-transcriber-backend/internal/logger"
	"github.com/sac2665/apex-transcriber-backend/internal/types"
)

// ErrAuth means the credential exchange was rejected. Fatal to the run,
// never retried.
var ErrAuth = errors.New("brightcove auth failed")

// acceptedContainers is the set of playable container formats.
var acceptedContainers = map[string]bool{
	"MP4": true,
	"MOV": true,
}

type Client struct {
	httpClient   *http.Client
	oauthURL     string
	cmsURL       string
	accountID    string
	clientID     string
	clientSecret string
}

func New(cfg *config.Config) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 12 * time.Second},
		oauthURL:     cfg.OAuthURL,
		cmsURL:       strings.TrimRight(cfg.CMSAPIURL, "/"),
		accountID:    cfg.AccountID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// AcquireToken performs a client-credentials exchange and returns a
// short-lived bearer token. One shot, no retry; tokens are never cached
// and never logged.
func (c *Client) AcquireToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "token request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Wrapf(ErrAuth, "status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", errors.Wrap(ErrAuth, "decode token response")
	}
	if tr.AccessToken == "" {
		return "", errors.Wrap(ErrAuth, "empty access_token")
	}
	return tr.AccessToken, nil
}

// ResolveSource looks up the video's source descriptors and picks the
// first one, in API order, whose container is MP4 or MOV. A nil source
// with nil error means no acceptable rendition exists; that is a normal
// outcome, not a fault.
func (c *Client) ResolveSource(ctx context.Context, videoID, token string) (*types.MediaSource, error) {
	log := logger.New().WithField("module", "brightcove").WithField("video_id", videoID)

	endpoint := fmt.Sprintf("%s/accounts/%s/videos/%s/sources", c.cmsURL, c.accountID, url.PathEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build sources request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "sources request")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("sources lookup status %d: %s", resp.StatusCode, string(body))
	}

	var sources []types.MediaSource
	if err := json.Unmarshal(body, &sources); err != nil {
		return nil, errors.Wrap(err, "decode sources")
	}

	for _, s := range sources {
		if acceptedContainers[s.Container] {
			log.WithField("container", s.Container).Info("selected media source")
			return &s, nil
		}
	}
	log.WithField("sources", len(sources)).Info("no MP4/MOV source available")
	return nil, nil
}
