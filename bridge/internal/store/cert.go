package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/config"
)

// Certificate states reported by CheckCert.
const (
	CertValid    = "valid"
	CertExpiring = "expiring"
	CertExpired  = "expired"
)

// expiryWindow is how close to NotAfter a certificate counts as expiring.
const expiryWindow = 30 * 24 * time.Hour

const certDialTimeout = 10 * time.Second

// CertStatus describes the leaf certificate ClickHouse presents.
type CertStatus struct {
	Issuer   string
	NotAfter time.Time
	DaysLeft int
	Status   string
}

// CheckCert dials the ClickHouse TLS endpoint and inspects the leaf
// certificate. Verification follows cfg.TLS, so a certificate the bridge
// would reject fails here too. Returns nil, nil when TLS is disabled.
func CheckCert(ctx context.Context, cfg config.ClickHouseConfig) (*CertStatus, error) {
	tlsCfg, err := buildTLSConfig(cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("store: tls: %w", err)
	}
	if tlsCfg == nil {
		return nil, nil
	}
	if tlsCfg.ServerName == "" {
		tlsCfg.ServerName = cfg.Host
	}

	dialCtx, cancel := context.WithTimeout(ctx, certDialTimeout)
	defer cancel()

	dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: tlsCfg}
	conn, err := dialer.DialContext(dialCtx, "tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("store: tls dial %s: %w", cfg.Addr(), err)
	}
	defer conn.Close()

	peers := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(peers) == 0 {
		return nil, fmt.Errorf("store: %s presented no certificate", cfg.Addr())
	}
	return certStatus(peers[0].Issuer.CommonName, peers[0].NotAfter, time.Now()), nil
}

func certStatus(issuer string, notAfter, now time.Time) *CertStatus {
	left := notAfter.Sub(now)
	cs := &CertStatus{
		Issuer:   issuer,
		NotAfter: notAfter.UTC(),
		DaysLeft: int(math.Floor(left.Hours() / 24)),
	}
	switch {
	case left <= 0:
		cs.Status = CertExpired
	case left <= expiryWindow:
		cs.Status = CertExpiring
	default:
		cs.Status = CertValid
	}
	return cs
}
