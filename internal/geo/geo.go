// Package geo maps source country codes to the locale, timezone and proxy
// routing a renderer needs to shop a fare from that country.
package geo

import (
	"fmt"
	"strings"
)

// Country describes a vantage point.
type Country struct {
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
	Locale   string `yaml:"locale"`
	Timezone string `yaml:"timezone"`
}

// Proxy is the per-source routing credential. A zero Proxy means direct access.
type Proxy struct {
	Server   string
	Username string
	Password string
}

// Enabled reports whether traffic should be routed through the proxy.
func (p Proxy) Enabled() bool {
	return p.Server != ""
}

// AccessParams is everything a renderer needs to shop from one source.
type AccessParams struct {
	Code     string
	Name     string
	Currency string
	Locale   string
	Timezone string
	Proxy    Proxy
}

// ProxyCredentials configures the geo-routing proxy.
type ProxyCredentials struct {
	Endpoint string
	Username string
	Password string
}

// DefaultCountries lists the vantage points the service ships with.
var DefaultCountries = map[string]Country{
	"in": {Name: "India", Currency: "INR", Locale: "en-IN", Timezone: "Asia/Kolkata"},
	"mx": {Name: "Mexico", Currency: "MXN", Locale: "es-MX", Timezone: "America/Mexico_City"},
	"br": {Name: "Brazil", Currency: "BRL", Locale: "pt-BR", Timezone: "America/Sao_Paulo"},
	"th": {Name: "Thailand", Currency: "THB", Locale: "th-TH", Timezone: "Asia/Bangkok"},
	"tr": {Name: "Turkey", Currency: "TRY", Locale: "tr-TR", Timezone: "Europe/Istanbul"},
	"us": {Name: "United States", Currency: "USD", Locale: "en-US", Timezone: "America/New_York"},
}

const (
	fallbackCurrency = "USD"
	fallbackLocale   = "en-US"
)

// Dispatcher resolves source codes to AccessParams.
type Dispatcher struct {
	countries map[string]Country
	proxy     ProxyCredentials
}

// NewDispatcher creates a Dispatcher. Entries in countries override
// DefaultCountries with the same code.
func NewDispatcher(countries map[string]Country, proxy ProxyCredentials) *Dispatcher {
	merged := make(map[string]Country, len(DefaultCountries)+len(countries))
	for code, c := range DefaultCountries {
		merged[code] = c
	}
	for code, c := range countries {
		merged[strings.ToLower(code)] = c
	}
	return &Dispatcher{countries: merged, proxy: proxy}
}

// Resolve returns the access parameters for code. Unknown codes get a
// generic fallback so unconfigured regions remain searchable.
func (d *Dispatcher) Resolve(code string) AccessParams {
	code = strings.ToLower(strings.TrimSpace(code))

	country, ok := d.countries[code]
	if !ok {
		country = Country{
			Name:     strings.ToUpper(code),
			Currency: fallbackCurrency,
			Locale:   fallbackLocale,
		}
	}

	return AccessParams{
		Code:     code,
		Name:     country.Name,
		Currency: country.Currency,
		Locale:   country.Locale,
		Timezone: country.Timezone,
		Proxy:    d.proxyFor(code),
	}
}

// Known reports whether code has an explicit country entry.
func (d *Dispatcher) Known(code string) bool {
	_, ok := d.countries[strings.ToLower(strings.TrimSpace(code))]
	return ok
}

// proxyFor targets the proxy's exit node at the given country by
// suffixing the username.
func (d *Dispatcher) proxyFor(code string) Proxy {
	if d.proxy.Endpoint == "" || d.proxy.Username == "" {
		return Proxy{}
	}
	return Proxy{
		Server:   "http://" + d.proxy.Endpoint,
		Username: fmt.Sprintf("%s-cc-%s", d.proxy.Username, code),
		Password: d.proxy.Password,
	}
}

// CountryFromUsername extracts the country code from a proxy username
// built by the Dispatcher. It returns "" when no suffix is present.
func CountryFromUsername(username string) string {
	i := strings.LastIndex(username, "-cc-")
	if i < 0 {
		return ""
	}
	return username[i+len("-cc-"):]
}
