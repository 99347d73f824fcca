// Package proxy resolves the optional outbound HTTP proxy used for YouTube
// requests from cloud hosts.
package proxy

import (
	"net"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Env mirrors the proxy environment variables.
type Env struct {
	URL  string // PROXY_URL, takes precedence
	Host string // PROXY_HOST
	Port string // PROXY_PORT
	User string // PROXY_USER
	Pass string // PROXY_PASS
}

func FromEnv() Env {
	return Env{
		URL:  os.Getenv("PROXY_URL"),
		Host: os.Getenv("PROXY_HOST"),
		Port: os.Getenv("PROXY_PORT"),
		User: os.Getenv("PROXY_USER"),
		Pass: os.Getenv("PROXY_PASS"),
	}
}

type Auth struct {
	Username string
	Password string
}

type Config struct {
	Host     string
	Port     int
	Protocol string
	Auth     *Auth
}

// Resolve returns the proxy config, or nil when none is configured or
// PROXY_URL does not parse.
func (e Env) Resolve() *Config {
	if raw := strings.TrimSpace(e.URL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Hostname() == "" {
			return nil
		}
		port := u.Port()
		if port == "" {
			port = "80"
			if u.Scheme == "https" {
				port = "443"
			}
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil
		}
		cfg := &Config{Host: u.Hostname(), Port: p, Protocol: u.Scheme}
		if pass, ok := u.User.Password(); ok && u.User.Username() != "" && pass != "" {
			cfg.Auth = &Auth{Username: u.User.Username(), Password: pass}
		}
		return cfg
	}

	host, port := strings.TrimSpace(e.Host), strings.TrimSpace(e.Port)
	if host == "" || port == "" {
		return nil
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil
	}
	cfg := &Config{Host: host, Port: p, Protocol: "http"}
	if e.User != "" && e.Pass != "" {
		cfg.Auth = &Auth{Username: e.User, Password: e.Pass}
	}
	return cfg
}

// BuildURL renders cfg with URL-encoded credentials. Nil yields "".
func BuildURL(cfg *Config) string {
	if cfg == nil {
		return ""
	}
	auth := ""
	if cfg.Auth != nil {
		auth = url.QueryEscape(cfg.Auth.Username) + ":" + url.QueryEscape(cfg.Auth.Password) + "@"
	}
	return cfg.Protocol + "://" + auth + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

var schemeRE = regexp.MustCompile(`(?i)^https?://`)

// AgentURL is the proxy URL handed to the HTTP transport: PROXY_URL as
// given (http:// prepended when it has no scheme), else the URL built from
// the host/port variables. "" means no proxy.
func (e Env) AgentURL() string {
	if raw := strings.TrimSpace(e.URL); raw != "" {
		if !schemeRE.MatchString(raw) {
			raw = "http://" + raw
		}
		return raw
	}
	return BuildURL(e.Resolve())
}

// Configured reports whether any proxy variables are set.
func (e Env) Configured() bool {
	return strings.TrimSpace(e.URL) != "" || (strings.TrimSpace(e.Host) != "" && strings.TrimSpace(e.Port) != "")
}

// Hint describes which variables configured the proxy.
func (e Env) Hint() string {
	switch {
	case strings.TrimSpace(e.URL) != "":
		return "PROXY_URL set"
	case strings.TrimSpace(e.Host) != "":
		return "PROXY_HOST/PORT set"
	default:
		return "No proxy configured"
	}
}

// Client returns an HTTP client that routes through the proxy, or nil when
// no usable proxy is configured.
func (e Env) Client(timeout time.Duration) *http.Client {
	agent := e.AgentURL()
	if agent == "" {
		return nil
	}
	u, err := url.Parse(agent)
	if err != nil || u.Host == "" {
		return nil
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = http.ProxyURL(u)
	return &http.Client{Transport: tr, Timeout: timeout}
}
