// Package director implements cloud.InventoryClient against the VMware Cloud
// Director query, metadata, and power APIs.
package director

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"vmsched/internal/cloud"
	"vmsched/internal/cloud/httpx"
)

const (
	PageSize = 128

	acceptQuery = "application/*+json;version=38.1"
	acceptPower = "application/*+json;version=38.0"
)

type Client struct {
	http *httpx.Client
}

var _ cloud.InventoryClient = (*Client)(nil)

func New(h *httpx.Client) *Client { return &Client{http: h} }

type queryRecord struct {
	Href                string         `json:"href"`
	Name                string         `json:"name"`
	Status              cloud.VMStatus `json:"status"`
	IsVAppTemplate      bool           `json:"isVAppTemplate"`
	IsInMaintenanceMode bool           `json:"isInMaintenanceMode"`
	IsExpired           bool           `json:"isExpired"`
}

type queryPage struct {
	Total  int           `json:"total"`
	Record []queryRecord `json:"record"`
}

// ListVMs pages through the vm query until every record has been read.
func (c *Client) ListVMs(ctx context.Context, s cloud.Session, filter string) ([]cloud.VM, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("list vms: %w", cloud.ErrUnauthorized)
	}
	var out []cloud.VM
	for page := 1; ; page++ {
		q := url.Values{
			"type":     {"vm"},
			"format":   {"records"},
			"pageSize": {strconv.Itoa(PageSize)},
			"page":     {strconv.Itoa(page)},
		}
		if filter != "" {
			q.Set("filter", filter)
		}
		var p queryPage
		_, err := c.http.Do(ctx, httpx.Request{
			URL:    s.Endpoint + "/api/query",
			Query:  q,
			Header: httpx.BearerHeader(s.AccessToken, "Accept", acceptQuery),
		}, &p)
		if err != nil {
			return nil, fmt.Errorf("list vms page %d: %w", page, err)
		}
		for _, r := range p.Record {
			out = append(out, cloud.VM{
				Ref:           r.Href,
				Name:          r.Name,
				Status:        r.Status,
				IsTemplate:    r.IsVAppTemplate,
				InMaintenance: r.IsInMaintenanceMode,
				IsExpired:     r.IsExpired,
			})
		}
		if len(p.Record) == 0 || page*PageSize >= p.Total {
			return out, nil
		}
	}
}

type metadataDoc struct {
	MetadataEntry []struct {
		Key        string `json:"key"`
		TypedValue struct {
			Value any `json:"value"`
		} `json:"typedValue"`
	} `json:"metadataEntry"`
}

// Metadata reads every metadata entry of the VM at ref. Non-string typed
// values are rendered with fmt.
func (c *Client) Metadata(ctx context.Context, s cloud.Session, ref string) ([]cloud.MetadataEntry, error) {
	var doc metadataDoc
	_, err := c.http.Do(ctx, httpx.Request{
		URL:    strings.TrimRight(ref, "/") + "/metadata",
		Header: httpx.BearerHeader(s.AccessToken, "Accept", acceptQuery),
	}, &doc)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", ref, err)
	}
	out := make([]cloud.MetadataEntry, 0, len(doc.MetadataEntry))
	for _, e := range doc.MetadataEntry {
		var v string
		switch tv := e.TypedValue.Value.(type) {
		case nil:
		case string:
			v = tv
		default:
			v = fmt.Sprint(tv)
		}
		out = append(out, cloud.MetadataEntry{Key: e.Key, Value: v})
	}
	return out, nil
}

func (c *Client) PowerOn(ctx context.Context, s cloud.Session, ref string) error {
	return c.power(ctx, s, ref, "powerOn")
}

func (c *Client) PowerOff(ctx context.Context, s cloud.Session, ref string) error {
	return c.power(ctx, s, ref, "powerOff")
}

func (c *Client) power(ctx context.Context, s cloud.Session, ref, op string) error {
	_, err := c.http.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		URL:    strings.TrimRight(ref, "/") + "/power/action/" + op,
		Header: httpx.BearerHeader(s.AccessToken, "Accept", acceptPower),
	}, nil)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, ref, err)
	}
	return nil
}
