package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fucho777/rakuten-price-monitor/internal/apperr"
	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

const threadsAPIBase = "https://graph.threads.net/v1.0"

// Threads posts alerts via the Threads Graph API. Publishing is two-step:
// create a media container, then publish it.
type Threads struct {
	accessToken string
	userID      string
	baseURL     string
	httpClient  *http.Client
}

// NewThreads builds the collaborator. An empty token or user ID turns every
// post into a Validation error so the platform is skipped.
func NewThreads(accessToken, userID string) *Threads {
	return &Threads{
		accessToken: accessToken,
		userID:      userID,
		baseURL:     threadsAPIBase,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements Publisher.
func (t *Threads) Name() string { return "threads" }

// Publish implements Publisher. Returns the published media ID.
func (t *Threads) Publish(ctx context.Context, rec model.ChangeRecord) (string, error) {
	if t.accessToken == "" || t.userID == "" {
		return "", apperr.Newf(apperr.Validation, "publisher.Threads", "threads credentials are not configured")
	}

	containerID, err := t.createContainer(ctx, FormatMessage(rec, false))
	if err != nil {
		return "", err
	}
	return t.publishContainer(ctx, containerID)
}

func (t *Threads) createContainer(ctx context.Context, text string) (string, error) {
	params := url.Values{}
	params.Set("media_type", "TEXT")
	params.Set("text", text)
	params.Set("access_token", t.accessToken)

	endpoint := fmt.Sprintf("%s/%s/threads", t.baseURL, t.userID)
	id, err := t.postForm(ctx, endpoint, params)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (t *Threads) publishContainer(ctx context.Context, containerID string) (string, error) {
	params := url.Values{}
	params.Set("creation_id", containerID)
	params.Set("access_token", t.accessToken)

	endpoint := fmt.Sprintf("%s/%s/threads_publish", t.baseURL, t.userID)
	return t.postForm(ctx, endpoint, params)
}

func (t *Threads) postForm(ctx context.Context, endpoint string, params url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return "", apperr.New(apperr.Transient, "publisher.Threads", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", apperr.New(apperr.Transient, "publisher.Threads", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", apperr.Newf(apperr.Transient, "publisher.Threads", "api returned %d: %s", resp.StatusCode, body)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", apperr.New(apperr.Transient, "publisher.Threads", err)
	}
	if result.ID == "" {
		return "", apperr.Newf(apperr.Transient, "publisher.Threads", "api response missing id: %s", body)
	}
	return result.ID, nil
}
