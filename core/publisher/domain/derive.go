// Copyright 2025 Nhat-Nguyen Nguyen
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

package domain

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/zeebo/blake3"
)

type (
	Digest      string
	KeyEncoding string

	// Deriver turns a token signature into the KV lookup key.
	Deriver interface {
		Derive(signature string) (string, error)
	}
)

const (
	DigestSHA256 Digest = "sha256"
	DigestSHA384 Digest = "sha384"
	DigestSHA512 Digest = "sha512"
	DigestBLAKE3 Digest = "blake3"

	// EncodingHex only ever produces [0-9a-f], so keys never need escaping in
	// a URL path.
	EncodingHex       KeyEncoding = "hex"
	EncodingBase64URL KeyEncoding = "base64url"
	EncodingBase64    KeyEncoding = "base64"
)

var cryptoDigests = map[Digest]crypto.Hash{
	DigestSHA256: crypto.SHA256,
	DigestSHA384: crypto.SHA384,
	DigestSHA512: crypto.SHA512,
}

var _ Deriver = (*KeyDeriver)(nil)

// KeyDeriver hashes a signature and encodes the digest. It holds no mutable
// state and is safe for concurrent use.
type KeyDeriver struct {
	digest   Digest
	encoding KeyEncoding
	newHash  func() hash.Hash
	encode   func([]byte) string
}

// NewKeyDeriver resolves the digest and encoding by name. Empty names fall back
// to sha256 and hex.
//
// An unknown digest, or a crypto.Hash that is not linked into the binary,
// yields ErrDigestUnavailable.
func NewKeyDeriver(digest Digest, encoding KeyEncoding) (*KeyDeriver, error) {
	digest = Digest(strings.ToLower(strings.TrimSpace(string(digest))))
	if digest == "" {
		digest = DigestSHA256
	}
	encoding = KeyEncoding(strings.ToLower(strings.TrimSpace(string(encoding))))
	if encoding == "" {
		encoding = EncodingHex
	}

	k := &KeyDeriver{digest: digest, encoding: encoding}

	switch encoding {
	case EncodingHex:
		k.encode = hex.EncodeToString
	case EncodingBase64URL:
		k.encode = base64.RawURLEncoding.EncodeToString
	case EncodingBase64:
		k.encode = base64.StdEncoding.EncodeToString
	default:
		return nil, fmt.Errorf("%w: unknown key encoding %q", ErrConfiguration, encoding)
	}

	if digest == DigestBLAKE3 {
		k.newHash = func() hash.Hash { return blake3.New() }
		return k, nil
	}

	h, ok := cryptoDigests[digest]
	if !ok || !h.Available() {
		return nil, fmt.Errorf("%w: %s must be available in order to publish tokens", ErrDigestUnavailable, digest)
	}
	k.newHash = h.New

	return k, nil
}

// MustKeyDeriver is NewKeyDeriver for defaults that are known to be valid.
func MustKeyDeriver(digest Digest, encoding KeyEncoding) *KeyDeriver {
	k, err := NewKeyDeriver(digest, encoding)
	if err != nil {
		panic(err)
	}
	return k
}

// Derive returns encode(digest(signature)). Identical signatures always map to
// the identical key.
func (k *KeyDeriver) Derive(signature string) (string, error) {
	if k == nil || k.newHash == nil {
		return "", fmt.Errorf("%w: key deriver is not initialised", ErrDigestUnavailable)
	}
	h := k.newHash()
	_, _ = h.Write([]byte(signature))
	return k.encode(h.Sum(nil)), nil
}

func (k *KeyDeriver) Digest() Digest { return k.digest }

func (k *KeyDeriver) Encoding() KeyEncoding { return k.encoding }
