package whttp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/publicsuffix"
)

const USER_AGENT = "trackwatch/1.0"

const maxSummaryRunes = 200

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
	Body    []byte
}

type WHTTPRes struct {
	StatusCode int
	HTTPTitle  string
	BodyString string
}

// ClientOptions controls how NewClient builds the shared HTTP client.
type ClientOptions struct {
	Proxy   string
	Retries int
	Timeout time.Duration
}

// NewClient returns a retrying client with a cookie jar. Retries of 0 means
// every request is attempted exactly once. Non-2xx responses are handed back
// to the caller instead of being turned into a generic "giving up" error.
func NewClient(opts ClientOptions) (*retryablehttp.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	client := retryablehttp.NewClient()
	client.Logger = log.New(io.Discard, "", 0)
	client.RetryMax = opts.Retries
	if client.RetryMax < 0 {
		client.RetryMax = 0
	}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.HTTPClient.Jar = jar
	if opts.Timeout > 0 {
		client.HTTPClient.Timeout = opts.Timeout
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		client.HTTPClient.Transport = &http.Transport{
			Proxy:           http.ProxyURL(proxyURL),
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client, nil
}

func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (*WHTTPRes, error) {
	var body interface{}
	if wReq.Body != nil {
		body = bytes.NewReader(wReq.Body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, wReq.Method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept", "application/json")
	if wReq.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes := &WHTTPRes{
		StatusCode: resp.StatusCode,
		BodyString: string(bodyBytes),
	}
	if isHTML(resp.Header.Get("Content-Type"), wRes.BodyString) {
		if title, ok := getHTMLTitle(wRes.BodyString); ok {
			wRes.HTTPTitle = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
		}
	}
	return wRes, nil
}

// IsSuccess reports a 2xx status.
func (r *WHTTPRes) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ErrorSummary describes a failed response in one line, preferring the HTML
// page title over the raw body.
func (r *WHTTPRes) ErrorSummary() string {
	detail := r.HTTPTitle
	if detail == "" {
		detail = strings.TrimSpace(r.BodyString)
		if r := []rune(detail); len(r) > maxSummaryRunes {
			detail = string(r[:maxSummaryRunes]) + "..."
		}
	}
	if detail == "" {
		return fmt.Sprintf("status %d", r.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", r.StatusCode, detail)
}

func isHTML(contentType, body string) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(body), "<")
}

func getHTMLTitle(body string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	sel := doc.Find("title").First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Text(), true
}
