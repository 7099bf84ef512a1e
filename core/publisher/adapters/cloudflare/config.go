package cloudflare

import (
	"time"

	"tokenpublisher/modules/webclient"
)

const DefaultAPIURL = "https://api.cloudflare.com/client/v4/"

type Config struct {
	AccountID   string `env:"ACCOUNT_ID,notEmpty"`
	KVNamespace string `env:"KV_NAMESPACE,notEmpty"`
	APIToken    string `env:"API_TOKEN,notEmpty"`

	APIURL  string        `env:"API_URL" envDefault:"https://api.cloudflare.com/client/v4/"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	// RateLimit caps outbound writes per second; 0 disables the limiter.
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"0"`

	// TransportScheme, when set, configures a pre-bound transport with that
	// scheme. It must agree with the scheme of APIURL.
	TransportScheme    string `env:"TRANSPORT_SCHEME"`
	InsecureSkipVerify bool   `env:"INSECURE_SKIP_VERIFY"`
}

// Transport returns the pre-bound transport described by the config, or nil
// when none is configured.
func (c Config) Transport() (*webclient.Transport, error) {
	if c.TransportScheme == "" {
		return nil, nil
	}
	return webclient.NewTransport(c.TransportScheme, c.Timeout, c.InsecureSkipVerify)
}
