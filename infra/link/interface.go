// Package link implements the network link provider on top of the host's
// network interfaces. Association with the wireless network (or any other
// medium) is owned by the operating system; the provider reports the link as
// joined once an interface is up and holds a usable address.
package link

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/kilianp07/mqttwatch/infra/logger"
)

// Interface is the part of a host network interface the provider inspects.
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []netip.Addr
}

// InterfaceProvider watches a named interface, or any non-loopback
// interface when the name is empty.
type InterfaceProvider struct {
	name  string
	list  func() ([]Interface, error)
	log   logger.Logger
	addr  netip.Addr
	watch string
}

// NewInterfaceProvider creates a provider for the given interface name.
func NewInterfaceProvider(name string) *InterfaceProvider {
	return &InterfaceProvider{name: name, list: hostInterfaces, log: logger.New("link")}
}

// Begin records the network to watch. The secret is not used: the host
// holds the credentials of its own network configuration.
func (p *InterfaceProvider) Begin(network, _ string) error {
	p.watch = network
	if p.name == "" {
		p.log.Infof("waiting for any interface to join %q", network)
		return nil
	}
	ifaces, err := p.list()
	if err != nil {
		return fmt.Errorf("list interfaces: %w", err)
	}
	for _, i := range ifaces {
		if i.Name == p.name {
			p.log.Infof("waiting for %s to join %q", p.name, network)
			return nil
		}
	}
	return fmt.Errorf("interface %s not found", p.name)
}

// Joined reports whether a watched interface is up with a global unicast
// address. IPv4 addresses are preferred.
func (p *InterfaceProvider) Joined() bool {
	ifaces, err := p.list()
	if err != nil {
		p.log.Debugf("list interfaces: %v", err)
		return false
	}
	var v6 netip.Addr
	for _, i := range ifaces {
		if !i.Up || i.Loopback || (p.name != "" && i.Name != p.name) {
			continue
		}
		for _, a := range i.Addrs {
			if !a.IsGlobalUnicast() {
				continue
			}
			if a.Is4() {
				p.addr = a
				return true
			}
			if !v6.IsValid() {
				v6 = a
			}
		}
	}
	if v6.IsValid() {
		p.addr = v6
		return true
	}
	return false
}

// Address returns the address found by the last successful Joined call.
func (p *InterfaceProvider) Address() string {
	if !p.addr.IsValid() {
		return ""
	}
	return p.addr.String()
}

func hostInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]Interface, 0, len(ifaces))
	for _, i := range ifaces {
		addrs, err := i.Addrs()
		if err != nil {
			continue
		}
		entry := Interface{
			Name:     i.Name,
			Up:       i.Flags&net.FlagUp != 0,
			Loopback: i.Flags&net.FlagLoopback != 0,
		}
		for _, a := range addrs {
			if pfx, err := netip.ParsePrefix(a.String()); err == nil {
				entry.Addrs = append(entry.Addrs, pfx.Addr().Unmap())
			}
		}
		out = append(out, entry)
	}
	return out, nil
}
