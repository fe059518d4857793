package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	actionGetDomains     = "GetClientsDomains"
	actionGetNameservers = "DomainGetNameservers"

	defaultTimeout = 20 * time.Second
)

// Client talks to the upstream registrar inventory API.
// All calls are form-encoded POSTs against a single endpoint with an
// action discriminator, and every response carries a result discriminator.
type Client struct {
	http *http.Client
}

// NewClient creates a new upstream client with a bounded request timeout
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchDomainsPage fetches one page of the domain inventory.
// The page window is expressed as (offset, pageSize), both forwarded
// verbatim to the upstream's limitstart/limitnum parameters.
func (c *Client) FetchDomainsPage(ctx context.Context, creds Credentials, pageSize, offset int) (*DomainsPage, error) {
	params := url.Values{}
	params.Set("action", actionGetDomains)
	params.Set("limitstart", strconv.Itoa(offset))
	params.Set("limitnum", strconv.Itoa(pageSize))

	body, err := c.call(ctx, creds, params)
	if err != nil {
		return nil, err
	}

	var env domainsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, NewError(KindDecode, "response is not valid JSON", err)
	}

	if !isSuccess(env.Result) {
		return nil, NewError(KindUpstream, upstreamMessage(env.Message), nil)
	}

	// A success discriminator without the domains list is a malformed
	// response, not an empty page. An empty page still carries the list,
	// so both a missing "domains" object and a missing inner "domain"
	// array are decode failures.
	if env.Domains == nil || env.Domains.Domain == nil {
		return nil, NewError(KindDecode, "success response missing domains list", nil)
	}

	return &DomainsPage{
		Domains:      env.Domains.Domain,
		TotalResults: int(env.TotalResults),
	}, nil
}

// FetchNameservers fetches the nameserver set for one domain by its
// upstream identifier
func (c *Client) FetchNameservers(ctx context.Context, creds Credentials, domainExternalID string) (*Nameservers, error) {
	params := url.Values{}
	params.Set("action", actionGetNameservers)
	params.Set("domainid", domainExternalID)

	body, err := c.call(ctx, creds, params)
	if err != nil {
		return nil, err
	}

	var env nameserversEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, NewError(KindDecode, "response is not valid JSON", err)
	}

	if !isSuccess(env.Result) {
		return nil, NewError(KindUpstream, upstreamMessage(env.Message), nil)
	}

	ns := env.Nameservers
	return &ns, nil
}

// call issues one form-encoded POST and classifies transport/protocol failures
func (c *Client) call(ctx context.Context, creds Credentials, params url.Values) ([]byte, error) {
	params.Set("identifier", creds.Identifier)
	params.Set("secret", creds.Secret)
	params.Set("responsetype", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.APIURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, NewError(KindConfiguration, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NewError(KindTransport, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(KindProtocol, fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(KindTransport, "failed to read response body", err)
	}

	return body, nil
}

func isSuccess(result string) bool {
	return strings.EqualFold(result, "success")
}

func upstreamMessage(message string) string {
	if message == "" {
		return "upstream reported failure without a message"
	}
	return message
}
