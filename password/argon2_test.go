package password

import (
	"strings"
	"testing"
)

// testConfig sits on the cost floor so the suite stays fast.
func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T, mutate func(*Config)) *Argon2 {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	hasher, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return hasher
}

func TestHashAndVerifyAccountPassword(t *testing.T) {
	hasher := newTestHasher(t, nil)

	hash, err := hasher.Hash("Abcd123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("Abcd123!", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed: ok=%v err=%v", ok, err)
	}
	ok, err = hasher.Verify("abcd123!", hash)
	if err != nil || ok {
		t.Fatalf("verification must be case sensitive: ok=%v err=%v", ok, err)
	}

	again, err := hasher.Hash("Abcd123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if again == hash {
		t.Fatal("every hash must carry a fresh salt")
	}
}

func TestHashLengthBounds(t *testing.T) {
	hasher := newTestHasher(t, func(cfg *Config) { cfg.MaxPasswordBytes = 16 })

	cases := []struct {
		name    string
		pw      string
		wantErr bool
	}{
		{"empty", "", true},
		{"seven bytes", "Abc123!", true},
		{"eight bytes", "Abcd123!", false},
		// Four runes, eight bytes: the floor counts bytes.
		{"multibyte eight bytes", "éééé", false},
		{"at max", strings.Repeat("a", 16), false},
		{"over max", strings.Repeat("a", 17), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := hasher.Hash(tc.pw)
			if tc.wantErr && err == nil {
				t.Fatalf("expected %q (%d bytes) to be rejected", tc.pw, len(tc.pw))
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected %q (%d bytes) to be accepted: %v", tc.pw, len(tc.pw), err)
			}
		})
	}
}

func TestVerifyRejectsOversizedInputBeforeHashing(t *testing.T) {
	hasher := newTestHasher(t, func(cfg *Config) { cfg.MaxPasswordBytes = 16 })
	hash, err := hasher.Hash("Abcd123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if _, err := hasher.Verify(strings.Repeat("x", 17), hash); err != errPasswordTooLong {
		t.Fatalf("expected errPasswordTooLong, got %v", err)
	}
}

func TestMaxPasswordBytesDefault(t *testing.T) {
	hasher := newTestHasher(t, nil)

	if got := hasher.MaxPasswordBytes(); got != DefaultMaxPasswordBytes {
		t.Fatalf("expected default %d, got %d", DefaultMaxPasswordBytes, got)
	}
	if _, err := hasher.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); err == nil {
		t.Fatalf("expected password > %d bytes to be rejected", DefaultMaxPasswordBytes)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"memory", func(c *Config) { c.Memory = 4 * 1024 }},
		{"time", func(c *Config) { c.Time = 0 }},
		{"parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"salt", func(c *Config) { c.SaltLength = 8 }},
		{"key", func(c *Config) { c.KeyLength = 8 }},
		{"max bytes", func(c *Config) { c.MaxPasswordBytes = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := NewArgon2(cfg); err == nil {
				t.Fatal("expected config below the floor to be rejected")
			}
		})
	}
}

func TestNeedsUpgrade(t *testing.T) {
	stored, err := newTestHasher(t, nil).Hash("Abcd123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   bool
	}{
		{"same parameters", nil, false},
		{"more memory", func(c *Config) { c.Memory = 16 * 1024 }, true},
		{"more passes", func(c *Config) { c.Time = 2 }, true},
		{"more lanes", func(c *Config) { c.Parallelism = 2 }, true},
		{"longer key", func(c *Config) { c.KeyLength = 64 }, true},
		{"shorter key", func(c *Config) { c.KeyLength = 16 }, true},
		{"longer salt only", func(c *Config) { c.SaltLength = 32 }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := newTestHasher(t, tc.mutate).NeedsUpgrade(stored)
			if err != nil {
				t.Fatalf("NeedsUpgrade error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("NeedsUpgrade = %v, want %v", got, tc.want)
			}
		})
	}

	// A stronger hasher still verifies hashes made with older parameters.
	ok, err := newTestHasher(t, func(c *Config) { c.Memory = 16 * 1024 }).Verify("Abcd123!", stored)
	if err != nil || !ok {
		t.Fatalf("expected stored hash to verify under new parameters: ok=%v err=%v", ok, err)
	}
}

func TestMalformedHashes(t *testing.T) {
	hasher := newTestHasher(t, nil)
	valid, err := hasher.Hash("Abcd123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	cases := map[string]string{
		"not phc":       "not-a-phc-hash",
		"wrong version": strings.Replace(valid, "$v=19$", "$v=18$", 1),
		"wrong algo":    strings.Replace(valid, "$argon2id$", "$argon2i$", 1),
		"bad params":    strings.Replace(valid, "m=8192,", "m=x,", 1),
		"truncated":     valid[:strings.LastIndex(valid, "$")],
	}

	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := hasher.Verify("Abcd123!", encoded); err == nil {
				t.Fatal("expected Verify to fail")
			}
			if _, err := hasher.NeedsUpgrade(encoded); err == nil {
				t.Fatal("expected NeedsUpgrade to fail")
			}
		})
	}
}
