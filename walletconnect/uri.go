package walletconnect

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedPairingURL rejects pairing URIs with an unknown scheme,
// version or missing transport parameters, before any network call.
var ErrMalformedPairingURL = errors.New("malformed pairing url")

// PairingURI is a parsed "wc:" pairing link.
type PairingURI struct {
	Topic   string
	Version Version

	// v1 parameters.
	Bridge string
	Key    string

	// v2 parameters.
	RelayProtocol string
	SymKey        string
}

// ParsePairingURI parses a WalletConnect pairing URI of the form
// wc:<topic>@<version>?<params>. Unsupported schemes and versions fail with
// ErrMalformedPairingURL.
func ParsePairingURI(raw string) (*PairingURI, error) {
	raw = strings.TrimSpace(raw)

	// Deep links wrap the URI as <app>://wc?uri=<wc uri>, with the inner
	// URI either verbatim or percent-encoded.
	if idx := strings.Index(raw, "wc:"); idx > 0 {
		raw = raw[idx:]
	} else if !strings.HasPrefix(raw, "wc:") {
		if u, err := url.Parse(raw); err == nil {
			if inner := u.Query().Get("uri"); strings.HasPrefix(inner, "wc:") {
				raw = inner
			}
		}
	}

	if !strings.HasPrefix(raw, "wc:") {
		return nil, errors.Wrap(ErrMalformedPairingURL, "missing wc: scheme")
	}

	rest := strings.TrimPrefix(raw, "wc:")
	topicAndVersion, query, _ := strings.Cut(rest, "?")
	topic, version, ok := strings.Cut(topicAndVersion, "@")
	if !ok || topic == "" {
		return nil, errors.Wrap(ErrMalformedPairingURL, "missing topic or version")
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedPairingURL, err.Error())
	}

	uri := &PairingURI{Topic: topic}
	switch version {
	case "1":
		uri.Version = Version1
		uri.Bridge = values.Get("bridge")
		uri.Key = values.Get("key")
		if uri.Bridge == "" || uri.Key == "" {
			return nil, errors.Wrap(ErrMalformedPairingURL, "v1 uri requires bridge and key")
		}
	case "2":
		uri.Version = Version2
		uri.RelayProtocol = values.Get("relay-protocol")
		uri.SymKey = values.Get("symKey")
		if uri.RelayProtocol == "" || uri.SymKey == "" {
			return nil, errors.Wrap(ErrMalformedPairingURL, "v2 uri requires relay-protocol and symKey")
		}
	default:
		return nil, errors.Wrapf(ErrMalformedPairingURL, "unsupported version %q", version)
	}
	return uri, nil
}
