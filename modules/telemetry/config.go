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

package telemetry

import (
	"os"
	"strings"
	"time"
)

type (
	Mode     string
	Protocol string
)

const (
	ModeDetect   Mode = "detect"
	ModeManual   Mode = "manual"
	ModeAuto     Mode = "auto"
	ModeDisabled Mode = "disabled"

	ProtocolGRPC Protocol = "grpc"
	ProtocolHTTP Protocol = "http/protobuf"
)

type Config struct {
	ServiceName    string `env:"OTEL_SERVICE_NAME" envDefault:"token-publisher"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"dev"`
	Environment    string `env:"ENVIRONMENT" envDefault:"local"`

	// Optional; if empty, OTEL_EXPORTER_OTLP_(TRACES_)ENDPOINT is used by
	// the exporters. Either a URL or host:port.
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`

	// MetricsEndpoint overrides OTLPEndpoint for metrics.
	MetricsEndpoint string `env:"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`

	// If true, disable TLS for OTLP.
	Insecure bool `env:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Protocol and MetricsProtocol follow OTEL_EXPORTER_OTLP_PROTOCOL; anything
	// other than grpc means http/protobuf.
	Protocol        Protocol `env:"OTEL_EXPORTER_OTLP_PROTOCOL" envDefault:"http/protobuf"`
	MetricsProtocol Protocol `env:"OTEL_EXPORTER_OTLP_METRICS_PROTOCOL"`

	// 0..1: sampling ratio (0=never,1=all,else parentbased+ratio).
	SamplerRatio float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1"`

	StartupTimeout time.Duration `env:"OTEL_STARTUP_TIMEOUT" envDefault:"5s"`

	Mode Mode `env:"OTEL_MODE" envDefault:"detect"`

	DisableMetrics bool `env:"OTEL_METRICS_DISABLED"`

	// Extra resource attributes.
	ResourceAttrs map[string]string `env:"OTEL_EXTRA_RESOURCE_ATTRIBUTES" envSeparator:"," envKeyValSeparator:"="`
}

// DisabledFromEnv reports whether the standard OTEL_SDK_DISABLED switch is on.
func DisabledFromEnv() bool {
	return strings.EqualFold(os.Getenv("OTEL_SDK_DISABLED"), "true")
}

func (c Config) protocol(metrics bool) Protocol {
	p := c.Protocol
	if metrics && c.MetricsProtocol != "" {
		p = c.MetricsProtocol
	}
	if strings.EqualFold(string(p), string(ProtocolGRPC)) {
		return ProtocolGRPC
	}
	return ProtocolHTTP
}

func (c Config) metricsEndpoint() string {
	if c.MetricsEndpoint != "" {
		return c.MetricsEndpoint
	}
	return c.OTLPEndpoint
}
