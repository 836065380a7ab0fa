package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigFile(t *testing.T) {
	testAddress := "https://localhost:8443"
	testLogLevel := "debug"
	testChannel := 100

	nameFile := filepath.Join(t.TempDir(), "test_config.json")
	content := fmt.Sprintf(`{"address": "%s", "log_level": "%s", "channel": %d, "write_key": "wkey",
		"read_key": "rkey", "user_key": "ukey", "dev_key": "dev", "ca_file": "ca.pem", "timeout": 5, "log_file": "c.log"}`,
		testAddress, testLogLevel, testChannel)
	require.NoError(t, os.WriteFile(nameFile, []byte(content), 0644))

	configs, err := ParseConfigFile(nameFile)
	require.NoError(t, err)

	assert.Equal(t, testAddress, configs.Address)
	assert.Equal(t, testLogLevel, configs.LogLevel)
	assert.Equal(t, uint32(testChannel), configs.Channel)
	assert.Equal(t, "wkey", configs.WriteKey)
	assert.Equal(t, "rkey", configs.ReadKey)
	assert.Equal(t, "ukey", configs.UserKey)
	assert.Equal(t, "dev", configs.DevKey)
	assert.Equal(t, "ca.pem", configs.CAFile)
	assert.Equal(t, 5, configs.Timeout)
	assert.Equal(t, "c.log", configs.LogFile)
}

func TestParseConfigFileErrors(t *testing.T) {
	_, err := ParseConfigFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	broken := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"channel": "abc"}`), 0644))
	_, err = ParseConfigFile(broken)
	require.Error(t, err)
}

func TestParseConfigFileYAML(t *testing.T) {
	nameFile := filepath.Join(t.TempDir(), "client.yaml")
	content := "address: https://localhost:8443\nchannel: 7\nwrite_key: wkey\nread_key: rkey\ntimeout: 3\n"
	require.NoError(t, os.WriteFile(nameFile, []byte(content), 0644))

	configs, err := ParseConfigFile(nameFile)
	require.NoError(t, err)
	assert.Equal(t, Configs{
		Address:  "https://localhost:8443",
		Channel:  7,
		WriteKey: "wkey",
		ReadKey:  "rkey",
		Timeout:  3,
	}, configs)

	broken := filepath.Join(t.TempDir(), "broken.yml")
	require.NoError(t, os.WriteFile(broken, []byte("channel: [1, 2"), 0644))
	_, err = ParseConfigFile(broken)
	require.Error(t, err)
}
