// Package keyring implements store.KV on the operating system's credential
// manager. Only suited to small secret values (tokens); queue snapshots and
// other bulk state stay in the main store.
package keyring

import (
	"errors"
	"fmt"

	gokeyring "github.com/zalando/go-keyring"
)

const service = "gateline"

// KV stores each key as a secret under the gateline service name.
type KV struct{}

func New() *KV { return &KV{} }

func (*KV) Get(key string) (string, bool, error) {
	v, err := gokeyring.Get(service, key)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: keyring get %s: %w", key, err)
	}
	return v, true, nil
}

func (*KV) Set(key, value string) error {
	if err := gokeyring.Set(service, key, value); err != nil {
		return fmt.Errorf("store: keyring set %s: %w", key, err)
	}
	return nil
}

func (*KV) Delete(key string) error {
	err := gokeyring.Delete(service, key)
	if err != nil && !errors.Is(err, gokeyring.ErrNotFound) {
		return fmt.Errorf("store: keyring delete %s: %w", key, err)
	}
	return nil
}

func (*KV) Close() error { return nil }
