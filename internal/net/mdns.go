package net

import (
	"fmt"
	"net"
	"os"

	"github.com/hashicorp/mdns"
)

// ServiceType is the DNS-SD type the input bridge is advertised under.
const ServiceType = "_rkgk-input._tcp"

// Advertise announces the input bridge on the local network until the
// returned server is shut down.
func Advertise(port int, project string) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}
	info := []string{"path=" + InputPath, "project=" + project}

	service, err := mdns.NewMDNSService(host, ServiceType, "", "", port, []net.IP{firstIPv4()}, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return server, nil
}

func firstIPv4() net.IP {
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4()
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}
