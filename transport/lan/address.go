package lan

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/arloliu/go-xsg/transport"
)

// ParseAddress converts a resource address into a dialable "host:port".
//
// Accepted forms:
//
//	TCPIP0::192.168.1.10::5025::SOCKET
//	192.168.1.10:5025
//	192.168.1.10          (port 5025)
//
// VXI-11 and HiSLIP resources ("::INSTR") are not served by this transport.
func ParseAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("%w: empty address", transport.ErrInvalidAddress)
	}

	if strings.HasPrefix(strings.ToUpper(address), "TCPIP") {
		return parseVISA(address)
	}

	if host, port, err := net.SplitHostPort(address); err == nil {
		if err := checkPort(port); err != nil {
			return "", err
		}

		return net.JoinHostPort(host, port), nil
	}

	if strings.Contains(address, ":") {
		return "", fmt.Errorf("%w: %q", transport.ErrInvalidAddress, address)
	}

	return net.JoinHostPort(address, strconv.Itoa(DefaultPort)), nil
}

func parseVISA(address string) (string, error) {
	parts := strings.Split(address, "::")
	if len(parts) != 4 || !strings.EqualFold(parts[3], "SOCKET") {
		return "", fmt.Errorf("%w: %q is not a TCPIP socket resource", transport.ErrInvalidAddress, address)
	}

	board := strings.ToUpper(parts[0])[len("TCPIP"):]
	if board != "" {
		if _, err := strconv.Atoi(board); err != nil {
			return "", fmt.Errorf("%w: bad board number in %q", transport.ErrInvalidAddress, address)
		}
	}

	if parts[1] == "" {
		return "", fmt.Errorf("%w: missing host in %q", transport.ErrInvalidAddress, address)
	}

	if err := checkPort(parts[2]); err != nil {
		return "", err
	}

	return net.JoinHostPort(parts[1], parts[2]), nil
}

func checkPort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%w: port %q out of range [1, 65535]", transport.ErrInvalidAddress, port)
	}

	return nil
}
