package config

import "testing"

func validConfig() *Config {
	return &Config{
		Env:                "development",
		DatabaseURL:        "postgres://localhost/portal",
		EscrowStartBalance: 1000,
		EscrowLockAmount:   200,
	}
}

func TestValidateDevelopment(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("development config rejected: %v", err)
	}
}

func TestValidateProductionRequiresSigningKey(t *testing.T) {
	cfg := validConfig()
	cfg.Env = "production"
	if err := cfg.Validate(); err == nil {
		t.Error("production config without signing key accepted")
	}

	cfg.AuthSigningKey = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("production config with signing key rejected: %v", err)
	}
}

func TestValidateFailureRateBounds(t *testing.T) {
	for _, rate := range []float64{-0.1, 1.0, 1.5} {
		cfg := validConfig()
		cfg.EscrowFailureRate = rate
		if err := cfg.Validate(); err == nil {
			t.Errorf("failure rate %v accepted", rate)
		}
	}

	cfg := validConfig()
	cfg.EscrowFailureRate = 0.3
	if err := cfg.Validate(); err != nil {
		t.Errorf("failure rate 0.3 rejected: %v", err)
	}
}

func TestValidateEscrowAmounts(t *testing.T) {
	cfg := validConfig()
	cfg.EscrowStartBalance = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative start balance accepted")
	}

	cfg = validConfig()
	cfg.EscrowLockAmount = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero lock amount accepted")
	}
}
