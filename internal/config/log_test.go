package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggingToFile(t *testing.T) {
	logfile := filepath.Join(t.TempDir(), "logs", "docqa.log")
	SetupLogging(Config{LogLevel: "DEBUG", LogMode: "JSON", LogFile: logfile, LogMaxSize: 1})
	require.NotNil(t, LogOutput)

	CloseLog()
	assert.Nil(t, LogOutput)
	_, err := os.Stat(filepath.Dir(logfile))
	assert.NoError(t, err)

	SetupLogging(Config{})
	assert.Nil(t, LogOutput)
}
