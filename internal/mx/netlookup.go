package mx

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/rotisserie/eris"
)

// NetLookuper resolves MX records through the system resolver.
type NetLookuper struct {
	Resolver *net.Resolver
}

// LookupMX returns lowercased exchange hostnames. NXDOMAIN and empty answers
// yield no records and no error.
func (l NetLookuper) LookupMX(ctx context.Context, domain string) ([]string, error) {
	r := l.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	mxs, err := r.LookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "mx: system lookup %s", domain)
	}

	out := make([]string, 0, len(mxs))
	for _, mx := range mxs {
		out = append(out, strings.ToLower(strings.TrimSuffix(mx.Host, ".")))
	}
	return out, nil
}
