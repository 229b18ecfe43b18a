package main

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	tempHome, err := os.MkdirTemp("", "assetsync-cmd-test-")
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = os.RemoveAll(tempHome)
	}()

	if err := os.Setenv("HOME", tempHome); err != nil {
		panic(err)
	}
	for _, key := range []string{"ASSETSYNC_CONFIG", "ASSETSYNC_SYNC_ROOT", "ASSETSYNC_LOG_LEVEL"} {
		_ = os.Unsetenv(key)
	}

	os.Exit(m.Run())
}
