package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ryosukesatoh/repost-digest/internal/retry"
	"github.com/ryosukesatoh/repost-digest/internal/timewindow"
)

// X API v2 timeline structures

type timelineResponse struct {
	Data     []tweet  `json:"data"`
	Includes includes `json:"includes"`
}

type tweet struct {
	ID               string      `json:"id"`
	Text             string      `json:"text"`
	CreatedAt        time.Time   `json:"created_at"`
	AuthorID         string      `json:"author_id"`
	ReferencedTweets []reference `json:"referenced_tweets"`
}

type reference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type includes struct {
	Tweets []tweet `json:"tweets"`
	Users  []user  `json:"users"`
}

type user struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// XCollector fetches the user's recent timeline from the X API and
// reduces it to today's reposts.
type XCollector struct {
	client     *http.Client
	baseURL    string
	bearer     string
	userID     string
	maxResults int
	window     *timewindow.Window
	log        logrus.FieldLogger
}

func NewXCollector(bearer, userID string, maxResults int, window *timewindow.Window, log logrus.FieldLogger) *XCollector {
	if maxResults <= 0 {
		maxResults = 100
	}
	return &XCollector{
		client:     &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.twitter.com",
		bearer:     bearer,
		userID:     userID,
		maxResults: maxResults,
		window:     window,
		log:        log,
	}
}

// CollectToday fetches one page of the user's timeline and returns the
// reposts created today, sorted ascending by repost time. A single page
// of max_results posts is a deliberate limitation: a day with more
// reposts than that is truncated to the most recent page.
func (c *XCollector) CollectToday(ctx context.Context) ([]Repost, error) {
	page, err := c.fetchTimeline(ctx)
	if err != nil {
		return nil, err
	}

	tweets, users := buildLookups(page.Includes)
	items := c.filterAndResolve(page.Data, tweets, users)

	sort.Slice(items, func(i, j int) bool {
		return items[i].RepostedAt.Before(items[j].RepostedAt)
	})
	c.log.WithField("count", len(items)).Info("Collected today's reposts")
	return items, nil
}

func (c *XCollector) fetchTimeline(ctx context.Context) (*timelineResponse, error) {
	query := url.Values{}
	query.Set("max_results", fmt.Sprintf("%d", c.maxResults))
	query.Set("tweet.fields", "created_at,referenced_tweets,text,author_id")
	query.Set("expansions", "referenced_tweets.id,referenced_tweets.id.author_id,author_id")
	query.Set("user.fields", "name,username")

	reqURL := fmt.Sprintf("%s/2/users/%s/tweets?%s", c.baseURL, c.userID, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("collector: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("collector: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("collector: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("collector: timeline fetch failed: %w",
			&retry.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))})
	}

	var page timelineResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("collector: failed to parse response: %w", err)
	}
	return &page, nil
}

// buildLookups indexes the response's included entities: referenced
// tweet id -> tweet and author id -> user.
func buildLookups(inc includes) (map[string]tweet, map[string]user) {
	tweets := make(map[string]tweet, len(inc.Tweets))
	for _, t := range inc.Tweets {
		tweets[t.ID] = t
	}
	users := make(map[string]user, len(inc.Users))
	for _, u := range inc.Users {
		users[u.ID] = u
	}
	return tweets, users
}

func (c *XCollector) filterAndResolve(posts []tweet, tweets map[string]tweet, users map[string]user) []Repost {
	today := c.window.Today()

	var items []Repost
	for _, t := range posts {
		ref, ok := retweetedRef(t)
		if !ok {
			continue
		}
		if !c.window.SameDay(t.CreatedAt, today) {
			continue
		}

		// Lookup misses degrade to zero values rather than failing; the
		// API does not guarantee every referenced entity is included.
		orig := tweets[ref.ID]
		author := users[orig.AuthorID]

		origID := orig.ID
		if origID == "" {
			origID = ref.ID
		}

		items = append(items, Repost{
			URL:            postURL(author.Username, origID),
			AuthorName:     author.Name,
			AuthorUsername: author.Username,
			Text:           normalizeText(orig.Text),
			RepostedAt:     t.CreatedAt,
		})
	}
	return items
}

func retweetedRef(t tweet) (reference, bool) {
	for _, r := range t.ReferencedTweets {
		if r.Type == "retweeted" {
			return r, true
		}
	}
	return reference{}, false
}

// postURL builds the public permalink: the author's handle when known,
// otherwise the generic status form.
func postURL(username, id string) string {
	if username != "" {
		return fmt.Sprintf("https://x.com/%s/status/%s", username, id)
	}
	return fmt.Sprintf("https://x.com/i/web/status/%s", id)
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

func normalizeText(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
