package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.atarashiiapp.com/2"

// Client implements [Service] over the list service's HTTP/JSON API.
type Client struct {
	baseURL    string
	username   string
	password   string
	bearer     bool
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewClient creates a client from the [remote] config section. httpClient may
// be nil; a client with the configured timeout is used then.
func NewClient(cfg shared.RemoteConfig, httpClient *http.Client, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, fmt.Errorf("%w: remote.username is required", shared.ErrMissingConfig)
	}
	if cfg.AccessToken == "" && cfg.Password == "" {
		return nil, fmt.Errorf("%w: remote.password or remote.access_token is required", shared.ErrMissingConfig)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout()}
	}

	c := &Client{
		baseURL:    baseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
		logger:     shared.WithLogger(logger, "component", "remote"),
	}

	if cfg.AccessToken != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
		authed := oauth2.NewClient(ctx, src)
		authed.Timeout = httpClient.Timeout
		c.httpClient = authed
		c.bearer = true
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	c.limiter = rate.NewLimiter(limit, 1)
	return c, nil
}

func (c *Client) Name() string { return "MyAnimeList" }

// PullList fetches the user's anime or manga list.
func (c *Client) PullList(ctx context.Context, kind models.Kind) ([]*models.ListEntry, error) {
	switch kind {
	case models.KindAnime:
		var resp animeList
		if err := c.do(ctx, http.MethodGet, "/animelist/"+url.PathEscape(c.username), nil, &resp); err != nil {
			return nil, err
		}
		entries := make([]*models.ListEntry, 0, len(resp.Anime))
		for _, a := range resp.Anime {
			entries = append(entries, a.toEntry())
		}
		return entries, nil
	case models.KindManga:
		var resp mangaList
		if err := c.do(ctx, http.MethodGet, "/mangalist/"+url.PathEscape(c.username), nil, &resp); err != nil {
			return nil, err
		}
		entries := make([]*models.ListEntry, 0, len(resp.Manga))
		for _, m := range resp.Manga {
			entries = append(entries, m.toEntry())
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("%w: unknown list kind %q", shared.ErrInvalidArgument, kind)
	}
}

// PushEntry adds a LocalOnly entry or updates a PendingPush one. Only user
// fields are sent.
func (c *Client) PushEntry(ctx context.Context, e *models.ListEntry, state models.SyncState) error {
	id := strconv.FormatInt(e.RecordID, 10)
	form := url.Values{}
	form.Set("status", e.MyStatus)
	form.Set("score", strconv.Itoa(e.MyScore))

	var collection, item, idField string
	switch e.Kind {
	case models.KindAnime:
		collection, item, idField = "animelist", "anime", "anime_id"
		form.Set("episodes", strconv.Itoa(e.EpisodesWatched))
	case models.KindManga:
		collection, item, idField = "mangalist", "manga", "manga_id"
		form.Set("chapters", strconv.Itoa(e.ChaptersRead))
		form.Set("volumes", strconv.Itoa(e.VolumesRead))
	default:
		return fmt.Errorf("%w: unknown list kind %q", shared.ErrInvalidArgument, e.Kind)
	}

	switch state {
	case models.LocalOnly:
		form.Set(idField, id)
		return c.do(ctx, http.MethodPost, fmt.Sprintf("/%s/%s", collection, item), form, nil)
	case models.PendingPush:
		return c.do(ctx, http.MethodPut, fmt.Sprintf("/%s/%s/%s", collection, item, id), form, nil)
	default:
		return fmt.Errorf("%w: %s entry %d is %s, nothing to push", shared.ErrInvalidArgument, e.Kind, e.RecordID, state)
	}
}

// Friends fetches the user's friend list.
func (c *Client) Friends(ctx context.Context) ([]*models.Friend, error) {
	var resp []friendRecord
	if err := c.do(ctx, http.MethodGet, "/friends/"+url.PathEscape(c.username), nil, &resp); err != nil {
		return nil, err
	}
	friends := make([]*models.Friend, 0, len(resp))
	for _, f := range resp {
		if f.Name == "" {
			continue
		}
		friends = append(friends, f.toFriend())
	}
	return friends, nil
}

// Profile fetches the user's profile summary.
func (c *Client) Profile(ctx context.Context) (*models.Profile, error) {
	var resp profileRecord
	if err := c.do(ctx, http.MethodGet, "/profile/"+url.PathEscape(c.username), nil, &resp); err != nil {
		return nil, err
	}
	return resp.toProfile(c.username), nil
}

// do performs one paced, authenticated request and decodes a JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if !c.bearer {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", shared.ErrRemoteUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("remote request", "method", method, "path", path, "status", resp.StatusCode)

	if err := statusError(resp); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// statusError maps a non-2xx response onto the remote error sentinels.
func statusError(resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(snippet))

	switch {
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: status %d %s", shared.ErrRemoteUnavailable, code, msg)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", shared.ErrNotAuthenticated, code)
	default:
		return fmt.Errorf("%w: status %d %s", shared.ErrAPIRequest, code, msg)
	}
}
