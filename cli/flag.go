package cli

import (
	"net/url"
	"strings"

	"github.com/morikuni/failure/v2"
	"github.com/spf13/pflag"
)

// originFlag accepts an absolute http(s) URL naming a site.
type originFlag struct {
	IsSet bool
	Value string
}

// String implements pflag.Value.
func (o *originFlag) String() string {
	return o.Value
}

func (o *originFlag) Set(value string) error {
	origin, err := parseOrigin(value)
	if err != nil {
		return err
	}
	o.Value = origin
	o.IsSet = true
	return nil
}

func (o *originFlag) Type() string {
	return "origin"
}

var _ pflag.Value = &originFlag{}

func parseOrigin(value string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(value))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", failure.New(InvalidOrigin,
			failure.Message("Origin must be an absolute http(s) URL, e.g. https://shop.example.com"),
			failure.Context{"origin": value},
		)
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}
