package config

import (
	"os"
	"strings"
)

// Environment variables that override the file. Lower-case names are the
// canonical ones; upper-case forms are accepted as well.
const (
	EnvAPIKey = "ibmcloud_api_key"
	EnvRegion = "ibmcloud_region"
	EnvSite   = "ibmcloud_vcfaas_site"
)

// ApplyEnv overlays ibmcloud_* environment variables onto cfg. getenv may be
// nil (os.LookupEnv).
func ApplyEnv(cfg *Config, getenv func(string) (string, bool)) {
	if cfg == nil {
		return
	}
	if getenv == nil {
		getenv = os.LookupEnv
	}
	if v, ok := lookup(getenv, EnvAPIKey); ok {
		cfg.IBMCloud.APIKey = v
	}
	if v, ok := lookup(getenv, EnvRegion); ok {
		cfg.IBMCloud.Region = v
	}
	if v, ok := lookup(getenv, EnvSite); ok {
		cfg.IBMCloud.Site = v
	}
}

func lookup(getenv func(string) (string, bool), name string) (string, bool) {
	for _, k := range []string{name, strings.ToUpper(name)} {
		if v, ok := getenv(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}
