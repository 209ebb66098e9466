package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/fucho777/rakuten-price-monitor/internal/apperr"
	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

const twitterCreateTweetURL = "https://api.twitter.com/2/tweets"

// TwitterCredentials are the OAuth1 user-context keys for the v2 API.
type TwitterCredentials struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
}

func (c TwitterCredentials) complete() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

// Twitter posts change alerts as tweets via the v2 create-tweet endpoint.
type Twitter struct {
	httpClient *http.Client
	baseURL    string
}

// NewTwitter builds the collaborator. Missing credentials are a Validation
// error at post time, so a deployment without Twitter keys simply skips the
// platform.
func NewTwitter(creds TwitterCredentials) *Twitter {
	t := &Twitter{baseURL: twitterCreateTweetURL}
	if !creds.complete() {
		return t
	}
	cfg := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	t.httpClient = cfg.Client(oauth1.NoContext, token)
	t.httpClient.Timeout = 30 * time.Second
	return t
}

// Name implements Publisher.
func (t *Twitter) Name() string { return "twitter" }

// Publish implements Publisher. Returns the tweet ID on success.
func (t *Twitter) Publish(ctx context.Context, rec model.ChangeRecord) (string, error) {
	if t.httpClient == nil {
		return "", apperr.Newf(apperr.Validation, "publisher.Twitter", "twitter credentials are not configured")
	}

	payload, err := json.Marshal(map[string]string{"text": FormatMessage(rec, true)})
	if err != nil {
		return "", apperr.New(apperr.Transient, "publisher.Twitter", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", apperr.New(apperr.Transient, "publisher.Twitter", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", apperr.New(apperr.Transient, "publisher.Twitter", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", apperr.Newf(apperr.Transient, "publisher.Twitter", "create tweet returned %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", apperr.New(apperr.Transient, "publisher.Twitter", err)
	}
	return result.Data.ID, nil
}
