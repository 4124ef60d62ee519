package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/luoli523/x-monitor/internal/models"
)

const (
	xClientTimeout = 20 * time.Second

	// The tweets endpoint accepts max_results between 5 and 100.
	minMaxResults     = 5
	defaultMaxResults = 100
)

// XClient reads identities and posts from the X API v2 with an app-only
// bearer token.
type XClient struct {
	baseURL    string
	token      string
	maxResults int
	client     *http.Client
	log        *slog.Logger
}

func NewXClient(baseURL, token string, maxResults int, log *slog.Logger) *XClient {
	switch {
	case maxResults <= 0 || maxResults > defaultMaxResults:
		maxResults = defaultMaxResults
	case maxResults < minMaxResults:
		maxResults = minMaxResults
	}

	return &XClient{
		baseURL:    baseURL,
		token:      token,
		maxResults: maxResults,
		client:     &http.Client{Timeout: xClientTimeout},
		log:        log,
	}
}

type xUser struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	Description string `json:"description"`
}

type xTweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		LikeCount       int64 `json:"like_count"`
		RetweetCount    int64 `json:"retweet_count"`
		ReplyCount      int64 `json:"reply_count"`
		ImpressionCount int64 `json:"impression_count"`
	} `json:"public_metrics"`
	ReferencedTweets []struct {
		Type string `json:"type"`
	} `json:"referenced_tweets"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
}

type xMedia struct {
	MediaKey        string `json:"media_key"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
}

type xUserResponse struct {
	Data *xUser `json:"data"`
}

type xTweetsResponse struct {
	Data     []xTweet `json:"data"`
	Includes struct {
		Media []xMedia `json:"media"`
	} `json:"includes"`
}

func (c *XClient) LookupIdentity(
	ctx context.Context,
	handle string,
) (*models.Identity, error) {
	endpoint := fmt.Sprintf("%s/2/users/by/username/%s", c.baseURL, url.PathEscape(handle))

	params := url.Values{}
	params.Set("user.fields", "id,name,description")

	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var resp xUserResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode user response: %w", err)
	}

	if resp.Data == nil || resp.Data.ID == "" {
		return nil, fmt.Errorf("%w: @%s", ErrNotFound, handle)
	}

	return &models.Identity{
		ID:          resp.Data.ID,
		DisplayName: resp.Data.Name,
		Description: resp.Data.Description,
	}, nil
}

func (c *XClient) ListPosts(
	ctx context.Context,
	account models.Account,
	since time.Time,
) ([]models.Post, error) {
	accountID := account.AccountID
	if accountID == "" {
		identity, err := c.LookupIdentity(ctx, account.Handle)
		if err != nil {
			return nil, fmt.Errorf("resolve account ID: %w", err)
		}
		accountID = identity.ID
	}

	endpoint := fmt.Sprintf("%s/2/users/%s/tweets", c.baseURL, url.PathEscape(accountID))

	params := url.Values{}
	params.Set("start_time", since.UTC().Format(time.RFC3339))
	params.Set("max_results", strconv.Itoa(c.maxResults))
	params.Set("tweet.fields", "created_at,public_metrics,referenced_tweets,attachments")
	params.Set("expansions", "attachments.media_keys")
	params.Set("media.fields", "url,preview_image_url")

	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var resp xTweetsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode tweets response: %w", err)
	}

	mediaByKey := make(map[string]string, len(resp.Includes.Media))
	for _, m := range resp.Includes.Media {
		mediaURL := m.URL
		if mediaURL == "" {
			mediaURL = m.PreviewImageURL
		}
		if mediaURL != "" {
			mediaByKey[m.MediaKey] = mediaURL
		}
	}

	posts := make([]models.Post, 0, len(resp.Data))
	for _, tweet := range resp.Data {
		post, ok := c.parseTweet(ctx, account, tweet, mediaByKey)
		if !ok {
			continue
		}

		posts = append(posts, post)
	}

	return posts, nil
}

func (c *XClient) parseTweet(
	ctx context.Context,
	account models.Account,
	tweet xTweet,
	mediaByKey map[string]string,
) (models.Post, bool) {
	createdAt, err := time.Parse(time.RFC3339, tweet.CreatedAt)
	if err != nil {
		c.log.WarnContext(ctx, "Skipping tweet with unparsable created_at",
			"error", err,
			"handle", account.Handle,
			"tweetID", tweet.ID)

		return models.Post{}, false
	}

	var isRetweet, isReply bool
	for _, ref := range tweet.ReferencedTweets {
		switch ref.Type {
		case "retweeted":
			isRetweet = true
		case "replied_to":
			isReply = true
		}
	}

	var mediaURLs []string
	for _, key := range tweet.Attachments.MediaKeys {
		if mediaURL, ok := mediaByKey[key]; ok {
			mediaURLs = append(mediaURLs, mediaURL)
		}
	}

	return models.Post{
		PostID:        tweet.ID,
		AccountHandle: account.Handle,
		AuthorName:    account.DisplayName,
		CreatedAt:     createdAt.UTC(),
		Body:          tweet.Text,
		URL:           fmt.Sprintf("https://x.com/%s/status/%s", account.Handle, tweet.ID),
		Likes:         tweet.PublicMetrics.LikeCount,
		Retweets:      tweet.PublicMetrics.RetweetCount,
		Replies:       tweet.PublicMetrics.ReplyCount,
		Views:         tweet.PublicMetrics.ImpressionCount,
		IsRetweet:     isRetweet,
		IsReply:       isReply,
		MediaURLs:     mediaURLs,
	}, true
}

func (c *XClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.WarnContext(ctx, "Failed to close response body",
				"error", err,
				"endpoint", endpoint)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
