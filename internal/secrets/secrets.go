// Package secrets reads and stores the IBM Cloud API key in the OS keyring.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	DefaultService = "vmsched"
	DefaultUser    = "ibmcloud_api_key"
)

var (
	keyringGet    = keyring.Get
	keyringSet    = keyring.Set
	keyringDelete = keyring.Delete
)

// ErrNotFound is returned when the keyring holds no entry.
var ErrNotFound = errors.New("api key not found in keyring")

type Keyring struct {
	Service string
	User    string
}

func NewKeyring(service, user string) *Keyring {
	if strings.TrimSpace(service) == "" {
		service = DefaultService
	}
	if strings.TrimSpace(user) == "" {
		user = DefaultUser
	}
	return &Keyring{Service: service, User: user}
}

// APIKey reads the key. It is looked up on every call.
func (k *Keyring) APIKey(context.Context) (string, error) {
	v, err := keyringGet(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w (service=%s user=%s)", ErrNotFound, k.Service, k.User)
	}
	if err != nil {
		return "", fmt.Errorf("keyring: %w", err)
	}
	return strings.TrimSpace(v), nil
}

func (k *Keyring) SetAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is empty")
	}
	return keyringSet(k.Service, k.User, key)
}

func (k *Keyring) DeleteAPIKey() error {
	err := keyringDelete(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
