package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewLoggerWithFileCreatesTheLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "driver.log")

	logger, err := NewLoggerWithFile(path)
	if err != nil {
		t.Fatalf("NewLoggerWithFile() error: %v", err)
	}
	defer logger.Sync()

	logger.Info("hello")
	if err := logger.Sync(); err != nil {
		// zap returns ENOTTY syncing some files under test runners; only
		// fail if the log file itself was never created.
		if _, statErr := os.Stat(path); statErr != nil {
			t.Fatalf("log file not created: %v", statErr)
		}
	}
}

func TestRealClockNowAdvances(t *testing.T) {
	c := RealClock{}
	first := c.Now()
	<-c.After(time.Millisecond)
	if !c.Now().After(first) {
		t.Error("RealClock.Now() did not advance after waiting on After()")
	}
}
