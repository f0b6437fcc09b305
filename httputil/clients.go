package httputil

import (
	"net/http"
	"net/url"
	"time"

	"m2_harvester/config"
)

type Clients struct {
	Healthcheck *http.Client // proxied when configured, redirects not followed
	Media       *http.Client // longer timeout for image downloads
}

func NewClients(proxyCfg *config.ProxyConfig) *Clients {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyCfg.URL != "" {
		if proxyURL, err := url.Parse(proxyCfg.URL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	healthcheck := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	media := &http.Client{
		Timeout:   60 * time.Second,
		Transport: transport,
	}

	return &Clients{
		Healthcheck: healthcheck,
		Media:       media,
	}
}
