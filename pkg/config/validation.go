package config

import (
	"fmt"
	"net"
	"strings"
)

// validate validates the configuration
func validate(cfg *Config) error {
	// Validate listener config
	if cfg.Listener.Enabled {
		if cfg.Listener.Port <= 0 || cfg.Listener.Port > 65535 {
			return fmt.Errorf("listener.port must be between 1 and 65535")
		}
		if cfg.Listener.ExerciseID < 0 || cfg.Listener.ExerciseID > 255 {
			return fmt.Errorf("listener.exercise_id must be between 0 and 255")
		}
		if cfg.Listener.ReadBufferSize < 0 {
			return fmt.Errorf("listener.read_buffer_size must not be negative")
		}
		if group := cfg.Listener.MulticastGroup; group != "" {
			ip := net.ParseIP(group)
			if ip == nil || !ip.IsMulticast() {
				return fmt.Errorf("listener.multicast_group %q is not a multicast address", group)
			}
		}
		if acl := strings.TrimSpace(cfg.Listener.SiteACL); acl != "" && !strings.Contains(acl, ":") {
			return fmt.Errorf("listener.site_acl %q must be ACTION:IDS", acl)
		}
	}

	// Validate database config
	if cfg.Database.Enabled {
		if cfg.Database.Path == "" {
			return fmt.Errorf("database.path is required when database is enabled")
		}
		if cfg.Database.RetentionDays < 0 {
			return fmt.Errorf("database.retention_days must not be negative")
		}
		if cfg.Database.BusyTimeout < 0 {
			return fmt.Errorf("database.busy_timeout must not be negative")
		}
	}

	// Validate web config
	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
	}

	// Validate logging config
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}

	// Validate metrics config
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		if cfg.Metrics.Prometheus.Port <= 0 || cfg.Metrics.Prometheus.Port > 65535 {
			return fmt.Errorf("metrics.prometheus.port must be between 1 and 65535")
		}
		if !strings.HasPrefix(cfg.Metrics.Prometheus.Path, "/") {
			return fmt.Errorf("metrics.prometheus.path must start with /")
		}
	}

	return nil
}
