package lostark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"kadan/internal/models"
)

// ErrUnavailable covers every non-success status and malformed payload
// returned by the profile site or the open API.
var ErrUnavailable = errors.New("lostark: profile service unavailable")

var profileLinkRe = regexp.MustCompile(`^https://profile\.onstove\.com/ko/(\d+)/?$`)

type Config struct {
	APIToken       string        `env:"API_TOKEN" envDefault:""`
	ProfileBaseURL string        `env:"PROFILE_BASE_URL" envDefault:"https://lostark.game.onstove.com"`
	APIBaseURL     string        `env:"API_BASE_URL" envDefault:"https://developer-lostark.game.onstove.com"`
	Timeout        time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
}

type Client struct {
	http        *http.Client
	profileBase string
	apiBase     string
	token       string
}

func NewClient(cfg *Config) *Client {
	return &Client{
		http:        &http.Client{Timeout: cfg.Timeout},
		profileBase: strings.TrimRight(cfg.ProfileBaseURL, "/"),
		apiBase:     strings.TrimRight(cfg.APIBaseURL, "/"),
		token:       cfg.APIToken,
	}
}

// ParseProfileLink extracts the numeric account reference from a
// https://profile.onstove.com/ko/<digits> link.
func ParseProfileLink(link string) (string, bool) {
	m := profileLinkRe.FindStringSubmatch(strings.TrimSpace(link))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ResolveAccountRef maps the public memberNo to the site's encrypted member id.
func (c *Client) ResolveAccountRef(ctx context.Context, accountRef string) (string, error) {
	form := url.Values{"memberNo": {accountRef}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.profileBase+"/board/IsCharacterList", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: character list status %d", ErrUnavailable, resp.StatusCode)
	}

	var payload struct {
		EncryptMemberNo string `json:"encryptMemberNo"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode character list: %v", ErrUnavailable, err)
	}
	if payload.EncryptMemberNo == "" {
		return "", fmt.Errorf("%w: empty encryptMemberNo", ErrUnavailable)
	}
	return payload.EncryptMemberNo, nil
}

// CurrentMainCharacter follows the profile redirect and returns the decoded
// last path segment, which is the character the account currently shows.
func (c *Client) CurrentMainCharacter(ctx context.Context, externalID string) (string, error) {
	target := c.profileBase + "/Profile/Member?id=" + url.QueryEscape(externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: profile status %d", ErrUnavailable, resp.StatusCode)
	}

	final := resp.Request.URL
	if final.Path == "/Profile/Member" {
		return "", fmt.Errorf("%w: profile did not redirect", ErrUnavailable)
	}

	escaped := final.EscapedPath()
	segment := escaped[strings.LastIndex(escaped, "/")+1:]
	name, err := url.PathUnescape(segment)
	if err != nil || name == "" {
		return "", fmt.Errorf("%w: bad profile path %q", ErrUnavailable, escaped)
	}
	return name, nil
}

// Roster returns every character on the account owning characterName.
func (c *Client) Roster(ctx context.Context, characterName string) ([]models.Character, error) {
	target := c.apiBase + "/characters/" + url.PathEscape(characterName) + "/siblings"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: siblings status %d", ErrUnavailable, resp.StatusCode)
	}

	var roster []models.Character
	if err := json.NewDecoder(resp.Body).Decode(&roster); err != nil {
		return nil, fmt.Errorf("%w: decode siblings: %v", ErrUnavailable, err)
	}
	return roster, nil
}

// LookupRosterByNickname is Roster keyed by any character name, used where no
// account reference is known.
func (c *Client) LookupRosterByNickname(ctx context.Context, nickname string) ([]models.Character, error) {
	return c.Roster(ctx, nickname)
}
