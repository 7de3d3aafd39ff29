package logging

import "testing"

func TestNewProductionDefault(t *testing.T) {
	logger, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer Sync(logger)

	logger.Info("test message")
}

func TestNewDevelopment(t *testing.T) {
	logger, err := New(&Config{Development: true, Level: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer Sync(logger)

	logger.Debug("debug message")
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(&Config{Level: "not-a-level"})
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
}
