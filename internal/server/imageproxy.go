package server

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const maxProxiedImageBytes = 10 << 20

// ImageProxy streams remote images from an allowlist of hosts, keeping
// upstream API keys and referrer requirements off the browser.
type ImageProxy struct {
	allowed map[string]struct{}
	client  *http.Client
}

func NewImageProxy(hosts []string) *ImageProxy {
	allowed := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			allowed[h] = struct{}{}
		}
	}
	return &ImageProxy{
		allowed: allowed,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *ImageProxy) handle(c echo.Context) error {
	raw := c.QueryParam("url")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid url")
	}
	if _, ok := p.allowed[strings.ToLower(u.Hostname())]; !ok {
		return echo.NewHTTPError(http.StatusForbidden, "host not allowed")
	}

	req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream fetch failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream returned an error")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return c.Stream(http.StatusOK, contentType, io.LimitReader(resp.Body, maxProxiedImageBytes))
}
