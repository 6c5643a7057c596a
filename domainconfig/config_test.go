package domainconfig

import (
	"testing"

	"github.com/audiocloud/domain-server/domainapi"
)

func validConfig() DomainConfig {
	return DomainConfig{
		DomainId: "studio-a",
		Instances: []InstanceConfig{
			{Id: domainapi.NewInstanceId("acme", "eq8", "001"), Model: "eq8", DriverKind: DriverHTTP},
		},
		TaskDefaults: TaskDefaults{MaxPacketAgeMs: 200, MaxPacketAudioFrames: 32},
	}
}

func TestDomainConfigValid(t *testing.T) {
	if err := validConfig().Valid(); err != nil {
		t.Fatalf("expected a well-formed config to validate, got %s", err)
	}
}

func TestDomainConfigRejectsDuplicateInstanceIds(t *testing.T) {
	cfg := validConfig()
	cfg.Instances = append(cfg.Instances, cfg.Instances[0])
	if err := cfg.Valid(); err == nil {
		t.Fatalf("expected duplicate instance ids to be rejected")
	}
}

func TestDomainConfigRejectsUnknownDriverKind(t *testing.T) {
	cfg := validConfig()
	cfg.Instances[0].DriverKind = "telepathy"
	if err := cfg.Valid(); err == nil {
		t.Fatalf("expected unknown driver kind to be rejected")
	}
}

func TestDomainConfigRejectsZeroPacketThresholds(t *testing.T) {
	cfg := validConfig()
	cfg.TaskDefaults.MaxPacketAgeMs = 0
	if err := cfg.Valid(); err == nil {
		t.Fatalf("expected zero max_packet_age_ms to be rejected")
	}
}

func TestInstanceById(t *testing.T) {
	cfg := validConfig()
	id := cfg.Instances[0].Id
	if _, ok := cfg.InstanceById(id); !ok {
		t.Fatalf("expected InstanceById to find the seeded instance")
	}
	if _, ok := cfg.InstanceById(domainapi.NewInstanceId("x", "y", "z")); ok {
		t.Fatalf("expected InstanceById to miss an unknown id")
	}
}
