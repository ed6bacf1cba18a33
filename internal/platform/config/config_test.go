package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_FIREBASE_PROJECT_ID":       "demo-project",
			"API_PUBSUB_NOTIFICATION_TOPIC": "order-events",
			"API_INVOICING_BUCKET":          "demo-invoices",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "demo-project" {
		t.Fatalf("firestore project should default to firebase project, got %q", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "demo-project" {
		t.Fatalf("pubsub project should default to firebase project, got %q", cfg.PubSub.ProjectID)
	}
	if cfg.Refunds.WindowDays != 30 {
		t.Fatalf("expected default refund window of 30 days, got %d", cfg.Refunds.WindowDays)
	}
	if !cfg.Features.EnableNotifications || !cfg.Features.EnableInvoicing {
		t.Fatalf("expected notification and invoicing features enabled by default")
	}
}

func TestLoadMissingRequiredFields(t *testing.T) {
	_, err := Load(WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error for empty configuration")
	}

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	fields := validation.Fields()
	want := map[string]bool{"Firebase.ProjectID": false, "Firestore.ProjectID": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Fatalf("expected %s in validation fields, got %v", field, fields)
		}
	}
}

func TestLoadEnvFilePrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	contents := "API_SERVER_PORT=9090\nAPI_FIREBASE_PROJECT_ID=file-project\nAPI_REFUND_WINDOW_DAYS=14\n"
	if err := os.WriteFile(envFile, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(envFile),
		WithEnvMap(map[string]string{
			"API_SERVER_PORT":               "7070",
			"API_PUBSUB_NOTIFICATION_TOPIC": "order-events",
			"API_INVOICING_BUCKET":          "demo-invoices",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	// Explicit map beats the .env file; untouched keys fall through to the file.
	if cfg.Server.Port != "7070" {
		t.Fatalf("expected env map to win, got port %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "file-project" {
		t.Fatalf("expected project from env file, got %q", cfg.Firebase.ProjectID)
	}
	if cfg.Refunds.WindowDays != 14 {
		t.Fatalf("expected refund window 14 from env file, got %d", cfg.Refunds.WindowDays)
	}
}

func TestLoadFeatureValidation(t *testing.T) {
	_, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_FIREBASE_PROJECT_ID":   "demo-project",
			"API_FEATURE_NOTIFICATIONS": "off",
			"API_FEATURE_INVOICING":     "off",
		}),
	)
	if err != nil {
		t.Fatalf("disabled features should not require topics or buckets: %v", err)
	}
}
