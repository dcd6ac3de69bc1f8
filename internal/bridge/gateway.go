package bridge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// InWSL reports whether we are running inside a WSL guest, where the
// bridge host defaults to the Windows side of the virtual network.
func InWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "microsoft")
}

// DetectGatewayHost resolves the default-route gateway address, which in
// WSL2 is the host machine. Used when bridge.host is not configured.
func DetectGatewayHost(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "ip", "route", "show", "default").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("reading default route: %w", err)
	}
	host, err := parseGateway(string(out))
	if err != nil {
		return "", err
	}
	return host, nil
}

// parseGateway extracts the gateway address from `ip route show default`
// output, e.g. "default via 172.29.32.1 dev eth0 proto kernel".
func parseGateway(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		for i, f := range fields {
			if f == "via" && i+1 < len(fields) {
				return fields[i+1], nil
			}
		}
	}
	return "", fmt.Errorf("no default gateway in route output")
}
