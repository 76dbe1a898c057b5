package runtime

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"

	"github.com/auto-dns/container-deployer/internal/util"
)

// toPortBindings converts a run-config port mapping into Docker's exposed
// ports and host bindings. Keys are "<port>[/<proto>]"; values may be a host
// port number, "port", "ip:port", a list of those, or null for a random port.
func toPortBindings(ports map[string]any) (nat.PortSet, nat.PortMap, error) {
	if len(ports) == 0 {
		return nil, nil, nil
	}
	exposed := make(nat.PortSet, len(ports))
	bindings := make(nat.PortMap, len(ports))

	for _, key := range util.SortedKeys(ports) {
		proto, port := nat.SplitProtoPort(key)
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return nil, nil, fmt.Errorf("invalid container port %q", key)
		}
		containerPort, err := nat.NewPort(proto, port)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid container port %q: %w", key, err)
		}
		exposed[containerPort] = struct{}{}

		hostBindings, err := toHostBindings(ports[key])
		if err != nil {
			return nil, nil, fmt.Errorf("port %s: %w", key, err)
		}
		bindings[containerPort] = hostBindings
	}
	return exposed, bindings, nil
}

func toHostBindings(value any) ([]nat.PortBinding, error) {
	switch v := value.(type) {
	case nil:
		return []nat.PortBinding{{}}, nil
	case []any:
		var out []nat.PortBinding
		for _, item := range v {
			b, err := toHostBindings(item)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		return out, nil
	case string:
		host, port, err := net.SplitHostPort(v)
		if err != nil {
			host, port = "", v
		}
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return nil, fmt.Errorf("invalid host port %q", v)
		}
		return []nat.PortBinding{{HostIP: host, HostPort: port}}, nil
	case int:
		return hostPort(int64(v))
	case int64:
		return hostPort(v)
	case uint64:
		return hostPort(int64(v))
	case float64:
		if v != float64(int64(v)) {
			return nil, fmt.Errorf("invalid host port %v", v)
		}
		return hostPort(int64(v))
	default:
		return nil, fmt.Errorf("unsupported host port value %v (%T)", v, v)
	}
}

func hostPort(p int64) ([]nat.PortBinding, error) {
	if p < 0 || p > 65535 {
		return nil, fmt.Errorf("host port %d out of range", p)
	}
	return []nat.PortBinding{{HostPort: strconv.FormatInt(p, 10)}}, nil
}

// toEnv flattens an environment mapping into sorted KEY=value pairs. Null values become empty.
func toEnv(env map[string]any) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for _, key := range util.SortedKeys(env) {
		out = append(out, key+"="+envValue(env[key]))
	}
	return out
}

func envValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
