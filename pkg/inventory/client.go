package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/railtrack-insight/trackwatch/pkg/whttp"
	"github.com/tidwall/gjson"
)

// Client talks to the remote inventory service.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// NewClient builds a client for the service rooted at baseURL.
func NewClient(baseURL string, httpClient *retryablehttp.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// List fetches every item.
func (c *Client) List(ctx context.Context) ([]Item, error) {
	res, err := c.do(ctx, http.MethodGet, "/inventory", nil)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("fetching inventory failed: %s", res.ErrorSummary())
	}
	return ParseItems(res.BodyString)
}

// Get fetches a single item by id.
func (c *Client) Get(ctx context.Context, id string) (Item, error) {
	res, err := c.do(ctx, http.MethodGet, "/inventory/"+url.PathEscape(id), nil)
	if err != nil {
		return Item{}, err
	}
	if res.StatusCode == http.StatusNotFound {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !res.IsSuccess() {
		return Item{}, fmt.Errorf("fetching item %s failed: %s", id, res.ErrorSummary())
	}
	if !gjson.Valid(res.BodyString) || !gjson.Parse(res.BodyString).IsObject() {
		return Item{}, fmt.Errorf("item %s: response is not a JSON object", id)
	}
	return ParseItem(gjson.Parse(res.BodyString)), nil
}

// Create registers a new item and returns the id assigned by the service.
func (c *Client) Create(ctx context.Context, item Item) (string, error) {
	item.ID = ""
	body, err := json.Marshal(item)
	if err != nil {
		return "", err
	}
	res, err := c.do(ctx, http.MethodPost, "/inventory", body)
	if err != nil {
		return "", err
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("saving item failed: %s", res.ErrorSummary())
	}
	id := firstString(gjson.Parse(res.BodyString), "id", "_id", "insertedId")
	if id == "" {
		return "", errors.New("saving item: response carried no id")
	}
	return id, nil
}

// UpdateInspection replaces the inspection fields of an item.
func (c *Client) UpdateInspection(ctx context.Context, id string, in Inspection) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	res, err := c.do(ctx, http.MethodPut, "/inventory/"+url.PathEscape(id), body)
	if err != nil {
		return err
	}
	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("updating inspection for %s failed: %s", id, res.ErrorSummary())
	}
	return nil
}

// AuthenticateInspector checks an inspector password with the service.
func (c *Client) AuthenticateInspector(ctx context.Context, password string) error {
	body, err := json.Marshal(map[string]string{"password": password})
	if err != nil {
		return err
	}
	res, err := c.do(ctx, http.MethodPost, "/auth/inspector", body)
	if err != nil {
		return err
	}
	if !res.IsSuccess() {
		return ErrUnauthorized
	}
	return nil
}

// Stats fetches the inventory counters.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	res, err := c.do(ctx, http.MethodGet, "/inventory/stats", nil)
	if err != nil {
		return Stats{}, err
	}
	if !res.IsSuccess() {
		return Stats{}, fmt.Errorf("fetching stats failed: %s", res.ErrorSummary())
	}
	return ParseStats(res.BodyString)
}

// Analytics fetches per-type totals.
func (c *Client) Analytics(ctx context.Context) ([]TypeAnalytics, error) {
	res, err := c.do(ctx, http.MethodGet, "/analytics", nil)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("fetching analytics failed: %s", res.ErrorSummary())
	}
	return ParseAnalytics(res.BodyString)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*whttp.WHTTPRes, error) {
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method: method,
		URL:    c.baseURL + path,
		Body:   body,
	}, c.http)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return res, nil
}
