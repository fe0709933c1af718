package app

import (
	"strings"

	"vmsched/internal/cloud"
	"vmsched/internal/cloud/director"
	"vmsched/internal/cloud/httpx"
	"vmsched/internal/cloud/iam"
	"vmsched/internal/cloud/vcfaas"
	"vmsched/internal/config"
	"vmsched/internal/environment"
	"vmsched/internal/observability/debug"
	"vmsched/internal/secrets"
	logx "vmsched/pkg/logx"
)

// buildCloud creates the IBM Cloud clients. IAM, VCFaaS and the director
// share one paced HTTP client.
func buildCloud(cfg *config.Config, s config.Settings, log logx.Logger) (cloud.EnvironmentResolver, cloud.InventoryClient, error) {
	hc := httpx.New(httpx.Config{
		Timeout:       s.HTTPTimeout,
		RetryMax:      cfg.HTTP.RetryMax,
		RetryBase:     s.HTTPRetryBase,
		RetryMaxDelay: s.HTTPRetryMaxDelay,
		RatePerSec:    cfg.HTTP.RatePerSec,
		Burst:         cfg.HTTP.Burst,
	}, log.With(logx.String("comp", "http")))

	ic := cfg.IBMCloud
	res, err := environment.New(environment.Options{
		Region: ic.Region,
		Site:   ic.Site,
		Key:    keySource(ic),
		IAM:    iam.New(hc, ic.IAMURL),
		VCFaaS: vcfaas.New(hc, ic.VCFaaSURL, ic.Region),
		Log:    log,
	})
	if err != nil {
		return nil, nil, err
	}
	return res, director.New(hc), nil
}

// keySource prefers an explicit key (file or environment) over the keyring.
func keySource(ic config.IBMCloudConfig) environment.KeySource {
	if key := strings.TrimSpace(ic.APIKey); key != "" || !ic.Keyring.Enabled {
		return environment.StaticKey(key)
	}
	return secrets.NewKeyring(ic.Keyring.Service, ic.Keyring.User).APIKey
}

func mapLogging(lc config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File:    logx.FileConfig{Enabled: lc.File.Enabled, Path: lc.File.Path},
		Chat: logx.ChatConfig{
			Enabled:    lc.Telegram.Enabled,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
}

func mapDebug(dc config.DebugConfig, s config.Settings) debug.Config {
	addr := strings.TrimSpace(dc.Addr)
	if addr == "" {
		addr = config.DefaultDebugAddr
	}
	return debug.Config{
		Enabled:       dc.Enabled,
		Addr:          addr,
		Token:         dc.Token,
		AllowInsecure: dc.AllowInsecure,
		Pprof:         dc.Pprof,
		ReadTimeout:   s.DebugReadTimeout,
		WriteTimeout:  s.DebugWriteTimeout,
		IdleTimeout:   s.DebugIdleTimeout,
	}
}
