package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Model.LearningRate != 0.001 {
		t.Errorf("Model.LearningRate = %v, want 0.001", cfg.Model.LearningRate)
	}
	if cfg.Training.Epochs != 50 || cfg.Training.BatchSize != 32 {
		t.Errorf("Training = %+v, want epochs 50, batch 32", cfg.Training)
	}
	if cfg.Training.ValidationSplit != 0.2 {
		t.Errorf("Training.ValidationSplit = %v, want 0.2", cfg.Training.ValidationSplit)
	}
	if cfg.Storage.ModelID != "color-preference-v1" {
		t.Errorf("Storage.ModelID = %q", cfg.Storage.ModelID)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("COLORPREF_SERVER_PORT", "9090")
	t.Setenv("COLORPREF_TRAINING_EPOCHS", "10")
	t.Setenv("COLORPREF_MODEL_DROPOUT", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Training.Epochs != 10 {
		t.Errorf("Training.Epochs = %d, want 10", cfg.Training.Epochs)
	}
	if cfg.Model.Dropout != 0.5 {
		t.Errorf("Model.Dropout = %v, want 0.5", cfg.Model.Dropout)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 7070\nstorage:\n  model_id: custom-model\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Storage.ModelID != "custom-model" {
		t.Errorf("Storage.ModelID = %q, want custom-model", cfg.Storage.ModelID)
	}
	// Untouched sections keep their defaults.
	if cfg.Training.Epochs != 50 {
		t.Errorf("Training.Epochs = %d, want 50", cfg.Training.Epochs)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("COLORPREF_SERVER_PORT", "-1")
	if _, err := Load(); err == nil {
		t.Error("Load() error = nil for negative port")
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"COLORPREF_SERVER_PORT", "server.port"},
		{"COLORPREF_TRAINING_BATCH_SIZE", "training.batch_size"},
		{"COLORPREF_STORAGE_MODEL_ID", "storage.model_id"},
		{"COLORPREF_LOGGING_LEVEL", "logging.level"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
