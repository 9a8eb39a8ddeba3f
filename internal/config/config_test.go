package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPPort != "8080" {
		t.Errorf("Expected default port 8080, got %q", cfg.HTTPPort)
	}
	if cfg.MongoDB != "worstidea" {
		t.Errorf("Expected default database worstidea, got %q", cfg.MongoDB)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("Expected default redis address, got %q", cfg.RedisAddr)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("OPERATOR_KEY", "hunter2")

	cfg := Load()
	if cfg.HTTPPort != "9999" {
		t.Errorf("Expected port from env, got %q", cfg.HTTPPort)
	}
	if cfg.OperatorKey != "hunter2" {
		t.Errorf("Expected operator key from env, got %q", cfg.OperatorKey)
	}
}
