// Package credentials resolves API keys and base URLs of image providers
package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wb-go/wbf/config"
)

var ErrMissingAPIKey error = errors.New("missing api key")

type Credentials struct {
	APIKey  string
	BaseURL string
}

// Resolver returns final credentials for a provider; non-empty override fields win.
type Resolver interface {
	Resolve(providerName string, override *Credentials) (Credentials, error)
}

// дефолтные адреса API провайдеров
var defaultBaseURLs = map[string]string{
	"picsart": "https://api.picsart.io/tools/1.0",
}

// ConfigResolver reads <PROVIDER>_API_KEY and <PROVIDER>_BASE_URL from the app config.
type ConfigResolver struct {
	cfg *config.Config
}

func NewConfigResolver(cfg *config.Config) *ConfigResolver {
	return &ConfigResolver{cfg: cfg}
}

func (r *ConfigResolver) Resolve(providerName string, override *Credentials) (Credentials, error) {
	prefix := strings.ToUpper(providerName)
	base := Credentials{
		APIKey:  r.cfg.GetString(prefix + "_API_KEY"),
		BaseURL: r.cfg.GetString(prefix + "_BASE_URL"),
	}
	return merge(providerName, base, override)
}

// Static serves fixed credentials for every provider.
type Static Credentials

func (s Static) Resolve(providerName string, override *Credentials) (Credentials, error) {
	return merge(providerName, Credentials(s), override)
}

func merge(providerName string, base Credentials, override *Credentials) (Credentials, error) {
	if override != nil {
		if override.APIKey != "" {
			base.APIKey = override.APIKey
		}
		if override.BaseURL != "" {
			base.BaseURL = override.BaseURL
		}
	}
	if base.BaseURL == "" {
		base.BaseURL = defaultBaseURLs[providerName]
	}
	if strings.TrimSpace(base.APIKey) == "" {
		return Credentials{}, fmt.Errorf("%w for provider %q", ErrMissingAPIKey, providerName)
	}
	base.BaseURL = strings.TrimRight(base.BaseURL, "/")
	return base, nil
}
