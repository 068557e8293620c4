package net

import (
	"fmt"
	"net"
	"strconv"
)

// GetOutgoingIP finds the address tablets on the LAN should dial.
func GetOutgoingIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return getLocalIPFallback()
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

// getLocalIPFallback is used on networks without internet access.
func getLocalIPFallback() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, address := range addrs {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "127.0.0.1", nil
}

// InputURL is the websocket URL a client on the LAN connects to, given the
// bridge's listen address.
func InputURL(listen string) (string, error) {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "", fmt.Errorf("bridge addr %q: %w", listen, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		if host, err = GetOutgoingIP(); err != nil {
			return "", err
		}
	}
	return "ws://" + net.JoinHostPort(host, port) + InputPath, nil
}

// Port extracts the numeric port of a listen address.
func Port(listen string) (int, error) {
	_, port, err := net.SplitHostPort(listen)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(port)
}
