package store

import "testing"

func TestCheckpointPolicyValidate(t *testing.T) {
	cases := []struct {
		name    string
		policy  CheckpointPolicy
		wantErr bool
	}{
		{"default policy is valid", DefaultPolicy(), false},
		{"exit durability with latest retention is valid", CheckpointPolicy{Durability: DurabilityExit, Retention: RetentionLatest}, false},
		{"exit durability with full retention is invalid", CheckpointPolicy{Durability: DurabilityExit, Retention: RetentionFull}, true},
		{"windowed retention without window size is invalid", CheckpointPolicy{Durability: DurabilitySync, Retention: RetentionWindowed}, true},
		{"windowed retention with window size is valid", CheckpointPolicy{Durability: DurabilitySync, Retention: RetentionWindowed, WindowSize: 10}, false},
		{"unknown durability is invalid", CheckpointPolicy{Durability: "bogus", Retention: RetentionFull}, true},
		{"unknown retention is invalid", CheckpointPolicy{Durability: DurabilitySync, Retention: "bogus"}, true},
		{"negative ttl is invalid", CheckpointPolicy{Durability: DurabilitySync, Retention: RetentionFull, TTL: -1}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.policy.Validate()
			if c.wantErr && err == nil {
				t.Error("expected an error, got nil")
			}
			if !c.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}
