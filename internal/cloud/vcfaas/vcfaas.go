// Package vcfaas talks to the IBM Cloud VMware Cloud Foundation as a Service
// API: director site and VDC discovery, and director token issuance.
package vcfaas

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"vmsched/internal/cloud/httpx"
)

// DefaultBaseURL is formatted with the region name.
const DefaultBaseURL = "https://api.%s.vmware.cloud.ibm.com"

type DirectorSite struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	CRN    string `json:"crn"`
	Status string `json:"status"`
}

type VDC struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	OrgName      string     `json:"org_name"`
	Status       string     `json:"status"`
	DirectorSite VDCSiteRef `json:"director_site"`
}

type VDCSiteRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Client struct {
	http    *httpx.Client
	baseURL string
}

// New returns a client for region. baseURL may contain one %s for the region;
// empty selects DefaultBaseURL.
func New(h *httpx.Client, baseURL, region string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.Contains(baseURL, "%s") {
		baseURL = fmt.Sprintf(baseURL, region)
	}
	return &Client{http: h, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) DirectorSites(ctx context.Context, iamToken string) ([]DirectorSite, error) {
	var out struct {
		DirectorSites []DirectorSite `json:"director_sites"`
	}
	_, err := c.http.Do(ctx, httpx.Request{URL: c.baseURL + "/v1/director_sites", Header: httpx.BearerHeader(iamToken)}, &out)
	if err != nil {
		return nil, fmt.Errorf("list director sites: %w", err)
	}
	return out.DirectorSites, nil
}

func (c *Client) VDCs(ctx context.Context, iamToken string) ([]VDC, error) {
	var out struct {
		VDCs []VDC `json:"vdcs"`
	}
	_, err := c.http.Do(ctx, httpx.Request{URL: c.baseURL + "/v1/vdcs", Header: httpx.BearerHeader(iamToken)}, &out)
	if err != nil {
		return nil, fmt.Errorf("list vdcs: %w", err)
	}
	return out.VDCs, nil
}

// DirectorToken exchanges an IAM token for a director access token scoped to org.
func (c *Client) DirectorToken(ctx context.Context, directorURL, org, iamToken string) (string, error) {
	if org == "" {
		return "", errors.New("director token: org is empty")
	}
	endpoint := strings.TrimRight(directorURL, "/") + "/oauth/tenant/" + url.PathEscape(org) + "/token"
	var out struct {
		AccessToken string `json:"access_token"`
	}
	_, err := c.http.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		URL:    endpoint,
		Form: url.Values{
			"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
			"assertion":  {iamToken},
		},
	}, &out)
	if err != nil {
		return "", fmt.Errorf("director token: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("director token: empty access_token in response")
	}
	return out.AccessToken, nil
}

// SiteByName finds a director site by exact name.
func SiteByName(sites []DirectorSite, name string) (DirectorSite, bool) {
	for _, s := range sites {
		if s.Name == name {
			return s, true
		}
	}
	return DirectorSite{}, false
}

// FirstVDCForSite returns the first VDC hosted on siteID.
func FirstVDCForSite(vdcs []VDC, siteID string) (VDC, bool) {
	for _, v := range vdcs {
		if v.DirectorSite.ID == siteID {
			return v, true
		}
	}
	return VDC{}, false
}

// Origin reduces a director URL to scheme://host.
func Origin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("director url %q has no scheme or host", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}
