// Package environment bootstraps a director Session from an API key, a
// region and a director site name.
package environment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vmsched/internal/cloud"
	"vmsched/internal/cloud/vcfaas"
	"vmsched/internal/region"
	logx "vmsched/pkg/logx"
)

// ConfigError reports a bootstrap failure no retry will fix.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string { return e.Field + ": " + e.Msg }

// IsConfigError reports whether err is (or wraps) a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// TokenIssuer exchanges an API key for an IAM access token.
type TokenIssuer interface {
	AccessToken(ctx context.Context, apiKey string) (string, error)
}

// Platform is the VCFaaS surface used during bootstrap.
type Platform interface {
	DirectorSites(ctx context.Context, iamToken string) ([]vcfaas.DirectorSite, error)
	VDCs(ctx context.Context, iamToken string) ([]vcfaas.VDC, error)
	DirectorToken(ctx context.Context, directorURL, org, iamToken string) (string, error)
}

// KeySource yields the API key on every bootstrap so rotated keys are picked up.
type KeySource func(ctx context.Context) (string, error)

// StaticKey returns a KeySource for a fixed key.
func StaticKey(key string) KeySource {
	return func(context.Context) (string, error) { return key, nil }
}

type Options struct {
	Region string
	Site   string
	Key    KeySource
	IAM    TokenIssuer
	VCFaaS Platform
	Log    logx.Logger
}

// Resolver implements cloud.EnvironmentResolver.
type Resolver struct {
	opts Options
}

var _ cloud.EnvironmentResolver = (*Resolver)(nil)

func New(opts Options) (*Resolver, error) {
	if !region.Valid(opts.Region) {
		return nil, &ConfigError{Field: "region", Msg: fmt.Sprintf("%q is not one of %s", opts.Region, strings.Join(region.Names(), ", "))}
	}
	if strings.TrimSpace(opts.Site) == "" {
		return nil, &ConfigError{Field: "site", Msg: "director site name is required"}
	}
	if opts.Key == nil || opts.IAM == nil || opts.VCFaaS == nil {
		return nil, errors.New("environment: key source, iam and vcfaas clients are required")
	}
	if opts.Log.IsZero() {
		opts.Log = logx.Nop()
	}
	opts.Log = opts.Log.With(logx.String("comp", "environment"))
	return &Resolver{opts: opts}, nil
}

// Bootstrap runs the full discovery chain and returns a fresh Session.
func (r *Resolver) Bootstrap(ctx context.Context) (cloud.Session, error) {
	start := time.Now()
	key, err := r.opts.Key(ctx)
	if err != nil {
		return cloud.Session{}, fmt.Errorf("api key: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		return cloud.Session{}, &ConfigError{Field: "api_key", Msg: "api key is empty"}
	}

	iamTok, err := r.opts.IAM.AccessToken(ctx, key)
	if err != nil {
		return cloud.Session{}, err
	}

	sites, err := r.opts.VCFaaS.DirectorSites(ctx, iamTok)
	if err != nil {
		return cloud.Session{}, err
	}
	site, ok := vcfaas.SiteByName(sites, r.opts.Site)
	if !ok {
		names := make([]string, 0, len(sites))
		for _, s := range sites {
			names = append(names, s.Name)
		}
		return cloud.Session{}, &ConfigError{Field: "site", Msg: fmt.Sprintf("director site %q not found in %s (have: %s)", r.opts.Site, r.opts.Region, strings.Join(names, ", "))}
	}

	vdcs, err := r.opts.VCFaaS.VDCs(ctx, iamTok)
	if err != nil {
		return cloud.Session{}, err
	}
	vdc, ok := vcfaas.FirstVDCForSite(vdcs, site.ID)
	if !ok {
		return cloud.Session{}, &ConfigError{Field: "site", Msg: fmt.Sprintf("no virtual data center on director site %q", r.opts.Site)}
	}
	endpoint, err := vcfaas.Origin(vdc.DirectorSite.URL)
	if err != nil {
		return cloud.Session{}, fmt.Errorf("vdc %s: %w", vdc.ID, err)
	}

	tok, err := r.opts.VCFaaS.DirectorToken(ctx, endpoint, vdc.OrgName, iamTok)
	if err != nil {
		return cloud.Session{}, err
	}

	r.opts.Log.Info("session bootstrapped",
		logx.String("site", site.Name),
		logx.String("org", vdc.OrgName),
		logx.String("endpoint", endpoint),
		logx.Duration("took", time.Since(start)))
	return cloud.Session{AccessToken: tok, Endpoint: endpoint, Org: vdc.OrgName}, nil
}
