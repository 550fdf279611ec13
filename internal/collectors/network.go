package collectors

import (
	"context"
	"net"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"warden/internal/logging"
)

const (
	StatusOnline  = "Online"
	StatusFailed  = "Failed"
	UnknownDevice = "Unknown Device"
)

// NetworkHost is a neighbour seen in the address-resolution cache.
type NetworkHost struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Status  string `json:"status"`
}

// ARPSource returns the raw text of the ARP cache.
type ARPSource interface {
	ReadARP(ctx context.Context) (string, error)
}

// SystemARP reads /proc/net/arp on linux and runs "arp -a" elsewhere.
type SystemARP struct{}

func (SystemARP) ReadARP(ctx context.Context) (string, error) {
	if runtime.GOOS == "linux" {
		data, err := os.ReadFile("/proc/net/arp")
		if err == nil {
			return string(data), nil
		}
	}
	out, err := exec.CommandContext(ctx, "arp", "-a").Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Resolver performs reverse lookups. *net.Resolver satisfies it.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// NetworkDiscoverer lists neighbours from the ARP cache without probing.
type NetworkDiscoverer struct {
	Source   ARPSource
	Resolver Resolver
	Timeout  time.Duration // per reverse lookup

	logger *zap.Logger
}

func NewNetworkDiscoverer(timeout time.Duration, logger *zap.Logger) *NetworkDiscoverer {
	return &NetworkDiscoverer{
		Source:   SystemARP{},
		Resolver: net.DefaultResolver,
		Timeout:  timeout,
		logger:   logging.WithComponent(logger, "network"),
	}
}

var ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

// Discover returns the hosts in the ARP cache in first-seen order. If the
// cache cannot be read, a single Failed record carries the cause.
func (d *NetworkDiscoverer) Discover(ctx context.Context) []NetworkHost {
	raw, err := d.Source.ReadARP(ctx)
	if err != nil {
		d.logger.Warn("ARP cache unavailable", zap.Error(err))
		return []NetworkHost{{Address: "Error", Name: err.Error(), Status: StatusFailed}}
	}

	hosts := []NetworkHost{}
	for _, addr := range ExtractAddresses(raw) {
		if ctx.Err() != nil {
			break
		}
		hosts = append(hosts, NetworkHost{
			Address: addr,
			Name:    d.reverse(ctx, addr),
			Status:  StatusOnline,
		})
	}
	d.logger.Info("Network discovery finished", zap.Int("hosts", len(hosts)))
	return hosts
}

func (d *NetworkDiscoverer) reverse(ctx context.Context, addr string) string {
	if d.Resolver == nil {
		return UnknownDevice
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	names, err := d.Resolver.LookupAddr(ctx, addr)
	if err != nil || len(names) == 0 {
		return UnknownDevice
	}
	return strings.TrimSuffix(names[0], ".")
}

// ExtractAddresses pulls unicast IPv4 addresses out of ARP output,
// deduplicated in first-seen order.
func ExtractAddresses(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range ipv4Pattern.FindAllString(raw, -1) {
		ip := net.ParseIP(m).To4()
		if ip == nil || excluded(ip) || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// excluded drops multicast, limited broadcast and x.x.x.255 addresses.
func excluded(ip net.IP) bool {
	return ip.IsMulticast() || ip.Equal(net.IPv4bcast) || ip[3] == 255
}
