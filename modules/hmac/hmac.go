// Copyright 2025 Nguyen Nhat Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hmac

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// HMACConfig holds the shared webhook secret. An empty secret disables
// signature checks.
type HMACConfig struct {
	Secret string `env:"SECRET"`
}

func (c HMACConfig) Enabled() bool { return c.Secret != "" }

// HMACSigner produces and checks detached body signatures:
// base64url(HMAC-SHA256(key, body)) without padding.
type HMACSigner struct {
	key []byte
}

var (
	ErrMissingKey       = errors.New("missing hmac key")
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
)

// NewHMACSigner builds a HMAC signer using the provided secret
func NewHMACSigner(secKey []byte) (*HMACSigner, error) {
	if len(secKey) == 0 {
		return nil, ErrMissingKey
	}
	return &HMACSigner{key: secKey}, nil
}

func (h *HMACSigner) mac(body []byte) []byte {
	mac := hmac.New(sha256.New, h.key)
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

func (h *HMACSigner) Sign(body []byte) string {
	return base64.RawURLEncoding.EncodeToString(h.mac(body))
}

func (h *HMACSigner) Verify(body []byte, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	got, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(h.mac(body), got) {
		return ErrInvalidSignature
	}
	return nil
}
