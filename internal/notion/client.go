package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ryosukesatoh/repost-digest/internal/retry"
)

const apiVersion = "2022-06-28"

// Client is a typed client for the subset of the Notion API the digest
// needs: database property discovery, query-by-date, page creation,
// block appends, and rich-text property updates.
type Client struct {
	client     *http.Client
	baseURL    string
	token      string
	databaseID string

	props *propertyNames // cached after first discovery
}

func NewClient(token, databaseID string) *Client {
	return &Client{
		client:     &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.notion.com",
		token:      token,
		databaseID: databaseID,
	}
}

// propertyNames holds the database's actual property names. The daily
// database is user-created, so the names are discovered by type rather
// than hardcoded.
type propertyNames struct {
	Title   string
	Date    string
	Content string
}

// API request/response types

type databaseResponse struct {
	Properties map[string]databaseProperty `json:"properties"`
}

type databaseProperty struct {
	Type string `json:"type"`
}

type queryRequest struct {
	Filter   queryFilter `json:"filter"`
	PageSize int         `json:"page_size"`
}

type queryFilter struct {
	Property string     `json:"property"`
	Date     dateEquals `json:"date"`
}

type dateEquals struct {
	Equals string `json:"equals"`
}

type queryResponse struct {
	Results []pageRef `json:"results"`
}

type pageRef struct {
	ID string `json:"id"`
}

type createPageRequest struct {
	Parent     pageParent               `json:"parent"`
	Properties map[string]propertyValue `json:"properties"`
}

type pageParent struct {
	DatabaseID string `json:"database_id"`
}

// propertyValue is a tagged union: exactly one field is set depending
// on the property's type.
type propertyValue struct {
	Title    []richText `json:"title,omitempty"`
	Date     *dateValue `json:"date,omitempty"`
	RichText []richText `json:"rich_text,omitempty"`
}

type dateValue struct {
	Start string `json:"start"`
}

type richText struct {
	Type string      `json:"type"`
	Text textContent `json:"text"`
}

type textContent struct {
	Content string `json:"content"`
}

func newRichText(s string) []richText {
	return []richText{{Type: "text", Text: textContent{Content: s}}}
}

type updatePageRequest struct {
	Properties map[string]propertyValue `json:"properties"`
}

type appendChildrenRequest struct {
	Children []block `json:"children"`
}

type block struct {
	Object           string         `json:"object"`
	Type             string         `json:"type"`
	Heading2         *richTextBlock `json:"heading_2,omitempty"`
	BulletedListItem *richTextBlock `json:"bulleted_list_item,omitempty"`
}

type richTextBlock struct {
	RichText []richText `json:"rich_text"`
}

// doJSON issues an authenticated request and decodes the response into
// out when non-nil. Non-2xx responses surface the payload through a
// StatusError.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("notion: failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("notion: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("notion: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("notion: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notion: %s %s failed: %w", method, path,
			&retry.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))})
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("notion: failed to parse response: %w", err)
		}
	}
	return nil
}

// discoverProperties retrieves the database schema once and picks the
// title, date, and rich-text property names, falling back to the
// conventional Title/Date/Content.
func (c *Client) discoverProperties(ctx context.Context) (*propertyNames, error) {
	if c.props != nil {
		return c.props, nil
	}

	var db databaseResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/databases/"+c.databaseID, nil, &db); err != nil {
		return nil, err
	}

	names := &propertyNames{Title: "Title", Date: "Date", Content: "Content"}
	for name, prop := range db.Properties {
		switch prop.Type {
		case "title":
			names.Title = name
		case "date":
			names.Date = name
		case "rich_text":
			names.Content = name
		}
	}
	c.props = names
	return names, nil
}

// FindDaily returns the id of the page whose date property equals date,
// if one exists.
func (c *Client) FindDaily(ctx context.Context, date string) (string, bool, error) {
	props, err := c.discoverProperties(ctx)
	if err != nil {
		return "", false, err
	}

	reqBody := queryRequest{
		Filter:   queryFilter{Property: props.Date, Date: dateEquals{Equals: date}},
		PageSize: 1,
	}
	var resp queryResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/databases/"+c.databaseID+"/query", reqBody, &resp); err != nil {
		return "", false, err
	}
	if len(resp.Results) == 0 {
		return "", false, nil
	}
	return resp.Results[0].ID, true, nil
}

// CreateDaily creates a new page with the given title and date property
// and returns its id.
func (c *Client) CreateDaily(ctx context.Context, title, date string) (string, error) {
	props, err := c.discoverProperties(ctx)
	if err != nil {
		return "", err
	}

	reqBody := createPageRequest{
		Parent: pageParent{DatabaseID: c.databaseID},
		Properties: map[string]propertyValue{
			props.Title: {Title: newRichText(title)},
			props.Date:  {Date: &dateValue{Start: date}},
		},
	}
	var page pageRef
	if err := c.doJSON(ctx, http.MethodPost, "/v1/pages", reqBody, &page); err != nil {
		return "", err
	}
	return page.ID, nil
}

// AppendHeading appends a single heading block to the page.
func (c *Client) AppendHeading(ctx context.Context, pageID, text string) error {
	reqBody := appendChildrenRequest{
		Children: []block{{
			Object:   "block",
			Type:     "heading_2",
			Heading2: &richTextBlock{RichText: newRichText(text)},
		}},
	}
	return c.doJSON(ctx, http.MethodPatch, "/v1/blocks/"+pageID+"/children", reqBody, nil)
}

// AppendBulleted appends one bulleted list item per text in a single
// call. The caller is responsible for staying under the API's per-call
// block limit.
func (c *Client) AppendBulleted(ctx context.Context, pageID string, texts []string) error {
	children := make([]block, len(texts))
	for i, text := range texts {
		children[i] = block{
			Object:           "block",
			Type:             "bulleted_list_item",
			BulletedListItem: &richTextBlock{RichText: newRichText(text)},
		}
	}
	return c.doJSON(ctx, http.MethodPatch, "/v1/blocks/"+pageID+"/children", appendChildrenRequest{Children: children}, nil)
}

// UpdateContent sets the page's rich-text content property.
func (c *Client) UpdateContent(ctx context.Context, pageID, text string) error {
	props, err := c.discoverProperties(ctx)
	if err != nil {
		return err
	}

	reqBody := updatePageRequest{
		Properties: map[string]propertyValue{
			props.Content: {RichText: newRichText(text)},
		},
	}
	return c.doJSON(ctx, http.MethodPatch, "/v1/pages/"+pageID, reqBody, nil)
}
