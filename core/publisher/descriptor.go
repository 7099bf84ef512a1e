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

package publisher

import (
	"fmt"

	"tokenpublisher/core/publisher/adapters/cloudflare"
	"tokenpublisher/core/publisher/domain"
	"tokenpublisher/modules/events"
	"tokenpublisher/modules/webclient"
)

// ImplementationType identifies this listener implementation to the host.
const ImplementationType = "cloudflare-token-publisher"

var _ events.Descriptor = Descriptor{}

// Config selects how lookup keys are derived and how wide batch dispatch fans out.
type Config struct {
	Digest      string `env:"DIGEST" envDefault:"sha256"`
	KeyEncoding string `env:"KEY_ENCODING" envDefault:"hex"`
	Concurrency int    `env:"CONCURRENCY" envDefault:"8"`
}

// Descriptor assembles the Cloudflare publisher and its single listener.
type Descriptor struct {
	Config     Config
	Cloudflare cloudflare.Config
	Factory    webclient.Factory

	// Transport is the optional pre-bound transport. Nil lets the factory
	// build clients from the API URL.
	Transport *webclient.Transport

	// Mirrors are written after Cloudflare with the same record.
	Mirrors []domain.KVWriter

	Options []domain.Option
}

func (Descriptor) ImplementationType() string { return ImplementationType }

func (d Descriptor) New() (events.Collection, error) {
	p, err := d.Publisher()
	if err != nil {
		return nil, err
	}
	return ListenerCollection{NewAccessTokenIssuedListener(p)}, nil
}

// Publisher builds the configured domain.Publisher.
func (d Descriptor) Publisher() (*domain.Publisher, error) {
	deriver, err := domain.NewKeyDeriver(domain.Digest(d.Config.Digest), domain.KeyEncoding(d.Config.KeyEncoding))
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}

	opts := []cloudflare.WriterOption{cloudflare.WithRateLimit(d.Cloudflare.RateLimit)}
	if d.Transport != nil {
		opts = append(opts, cloudflare.WithTransport(d.Transport))
	}
	cf, err := cloudflare.NewWriter(d.Cloudflare, d.Factory, opts...)
	if err != nil {
		return nil, err
	}

	writers := append([]domain.KVWriter{cf}, d.Mirrors...)
	return domain.NewPublisher(deriver, writers, d.Options...)
}

// ListenerCollection is the fixed set of listeners this implementation provides.
type ListenerCollection []events.Listener

func (c ListenerCollection) Listeners() []events.Listener { return c }
