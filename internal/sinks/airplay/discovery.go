package airplay

import "context"

// ProbeFallback checks that an AirPlay receiver at host answers RTSP
// OPTIONS, for when no mDNS browse result is available and the
// front-end supplies a known IP directly. The pack carries no mDNS
// browse client (brutella/dnssd here only advertises, see
// internal/aanp/mdns.go), so direct-IP probing is the fallback path.
func ProbeFallback(ctx context.Context, host string, port int) (Target, error) {
	dialog, err := NewDialog(ctx, host, port)
	if err != nil {
		return Target{}, err
	}
	defer dialog.Teardown(ctx, "*")

	if err := dialog.Options(ctx); err != nil {
		return Target{}, err
	}
	return Target{Name: host, Host: host, Port: port}, nil
}
