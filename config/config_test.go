package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - reaper",
			input:    "reaper",
			expected: map[ServiceMode]bool{ServiceModeReaper: true},
		},
		{
			name:  "services with spaces",
			input: " http , reaper ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeReaper: true,
			},
		},
		{
			name:     "duplicate services",
			input:    "http,http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only commas",
			input:       ",,",
			expectError: true,
		},
		{
			name:        "unknown service",
			input:       "http,scheduler",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		name           string
		services       string
		expectedHTTP   bool
		expectedReaper bool
	}{
		{name: "http only", services: "http", expectedHTTP: true},
		{name: "reaper only", services: "reaper", expectedReaper: true},
		{name: "both", services: "http,reaper", expectedHTTP: true, expectedReaper: true},
		{name: "invalid", services: "invalid-service"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}
			if got := cfg.IsHTTPServerEnabled(); got != tt.expectedHTTP {
				t.Errorf("IsHTTPServerEnabled(): expected %v, got %v", tt.expectedHTTP, got)
			}
			if got := cfg.IsReaperEnabled(); got != tt.expectedReaper {
				t.Errorf("IsReaperEnabled(): expected %v, got %v", tt.expectedReaper, got)
			}
		})
	}
}

func TestValidServiceModes(t *testing.T) {
	expected := []ServiceMode{ServiceModeHTTP, ServiceModeReaper}
	if modes := ValidServiceModes(); !reflect.DeepEqual(modes, expected) {
		t.Errorf("expected %v, got %v", expected, modes)
	}
}

func TestAppConfig_ParseBulkActionsEnv(t *testing.T) {
	t.Setenv("BULK_ACTIONS_DATABASES", "cache=redis://10.0.0.5:6379,cluster=redis://10.0.1.1:7000")
	t.Setenv("BULK_ACTIONS_CLUSTER_DATABASES", "cluster")
	t.Setenv("BULK_ACTIONS_MAX_KEYS", "500")
	t.Setenv("BULK_ACTIONS_DEBOUNCE", "250ms")
	t.Setenv("BULK_ACTIONS_RETENTION", "2h")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if got := cfg.BulkActions.DatabaseIDs(); !reflect.DeepEqual(got, []string{"cache", "cluster"}) {
		t.Fatalf("unexpected database ids: %v", got)
	}
	expected := map[string]RedisConfig{
		"cache":   {URI: "redis://10.0.0.5:6379", ReadTimeout: 30 * time.Second},
		"cluster": {URI: "redis://10.0.1.1:7000", UseCluster: true, ReadTimeout: 30 * time.Second},
	}
	if got := cfg.BulkActions.Targets(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("unexpected targets:\nexpected: %#v\ngot:      %#v", expected, got)
	}
	if cfg.BulkActions.MaxKeys != 500 {
		t.Errorf("expected max keys 500, got %d", cfg.BulkActions.MaxKeys)
	}
	if cfg.BulkActions.Debounce != 250*time.Millisecond {
		t.Errorf("expected debounce 250ms, got %v", cfg.BulkActions.Debounce)
	}
	if cfg.Reaper.Retention != 2*time.Hour {
		t.Errorf("expected retention 2h, got %v", cfg.Reaper.Retention)
	}
	if cfg.BulkActions.ScanCount != 10000 {
		t.Errorf("expected default scan count, got %d", cfg.BulkActions.ScanCount)
	}
	if !cfg.IsHTTPServerEnabled() || !cfg.IsReaperEnabled() {
		t.Errorf("expected http and reaper enabled by default")
	}
}

func TestBulkActionsConfig_Sanitize(t *testing.T) {
	cfg := BulkActionsConfig{
		Databases: map[string]string{" cache ": " redis://a:1 ", "empty": " ", "": "redis://b:2"},
		MaxKeys:   0,
		Debounce:  0,
		ScanCount: -1,
		PoolSize:  -3,
	}
	cfg.Sanitize()

	if cfg.ReadTimeout != 30*time.Second || cfg.PoolSize != 0 {
		t.Errorf("expected target client defaults, got read timeout %v pool size %d", cfg.ReadTimeout, cfg.PoolSize)
	}

	if !reflect.DeepEqual(cfg.Databases, map[string]string{"cache": "redis://a:1"}) {
		t.Fatalf("unexpected databases: %v", cfg.Databases)
	}
	if cfg.MaxKeys != 10000 || cfg.ScanCount != 10000 {
		t.Errorf("expected defaults restored, got max keys %d scan count %d", cfg.MaxKeys, cfg.ScanCount)
	}
	if cfg.Debounce <= 0 {
		t.Errorf("expected positive debounce, got %v", cfg.Debounce)
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	cfg := ReaperConfig{Interval: time.Millisecond, Retention: time.Second}
	cfg.Sanitize()
	if cfg.Interval != time.Second {
		t.Errorf("expected interval clamped to 1s, got %v", cfg.Interval)
	}
	if cfg.Retention != time.Minute {
		t.Errorf("expected retention clamped to 1m, got %v", cfg.Retention)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
}

func TestObservabilityNotificationsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityNotificationsConfig{
		Enabled:    true,
		Timeout:    0,
		RetryLimit: -1,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: " ",
			Channel:    "  ",
			Username:   "",
		},
		PagerDuty: PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: " ",
			Source:     "",
			Component:  "",
		},
	}

	cfg.Sanitize()

	if cfg.Timeout <= 0 {
		t.Fatalf("expected timeout to fall back to default, got %v", cfg.Timeout)
	}
	if cfg.RetryLimit < 0 {
		t.Fatalf("expected retry limit to be clamped to >= 0, got %d", cfg.RetryLimit)
	}
	if cfg.Slack.Enabled {
		t.Fatal("expected slack to be disabled without a webhook url")
	}
	if cfg.PagerDuty.Enabled {
		t.Fatal("expected pagerduty to be disabled without a routing key")
	}
	if cfg.PagerDuty.Source != "redis-bulk-actions" {
		t.Fatalf("expected pagerduty source default, got %q", cfg.PagerDuty.Source)
	}
	if cfg.PagerDuty.Component != "redis-bulk-actions" {
		t.Fatalf("expected pagerduty component default, got %q", cfg.PagerDuty.Component)
	}

	// Disabled top-level should disable child sinks.
	cfg = ObservabilityNotificationsConfig{
		Enabled: false,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.com/services/test",
		},
		PagerDuty: PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: "abc",
		},
	}
	cfg.Sanitize()

	if cfg.Slack.Enabled {
		t.Fatal("expected slack to be disabled when top-level notifications disabled")
	}
	if cfg.PagerDuty.Enabled {
		t.Fatal("expected pagerduty to be disabled when top-level notifications disabled")
	}
}
