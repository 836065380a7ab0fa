package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Configs представляет структуру конфигурации песочницы.
type Configs struct {
	Address  string `json:"address" yaml:"address"`     // аналог переменной окружения AMBIENT_SERVER_ADDRESS или флага -a
	LogLevel string `json:"log_level" yaml:"log_level"` // аналог переменной окружения AMBIENT_SERVER_LOG_LEVEL или флага -l
	CertFile string `json:"cert_file" yaml:"cert_file"` // аналог переменной окружения AMBIENT_SERVER_CERT_FILE или флага -cert
	KeyFile  string `json:"key_file" yaml:"key_file"`   // аналог переменной окружения AMBIENT_SERVER_KEY_FILE или флага -key
	Channel  uint32 `json:"channel" yaml:"channel"`     // аналог переменной окружения AMBIENT_SERVER_CHANNEL или флага -ch
	WriteKey string `json:"write_key" yaml:"write_key"` // аналог переменной окружения AMBIENT_SERVER_WRITE_KEY или флага -w
	ReadKey  string `json:"read_key" yaml:"read_key"`   // аналог переменной окружения AMBIENT_SERVER_READ_KEY или флага -r
	UserKey  string `json:"user_key" yaml:"user_key"`   // аналог переменной окружения AMBIENT_SERVER_USER_KEY или флага -u
	DevKey   string `json:"dev_key" yaml:"dev_key"`     // аналог переменной окружения AMBIENT_SERVER_DEV_KEY или флага -dev
	Database string `json:"database" yaml:"database"`   // аналог переменной окружения AMBIENT_SERVER_DATABASE или флага -d
}

// ParseConfigFile - функция для чтения параметров конфигурации из файла конфигурации.
// Файлы с расширением .yaml и .yml читаются как YAML, остальные как JSON.
func ParseConfigFile(configFileName string) (Configs, error) {
	var configs Configs
	f, err := os.Open(configFileName)
	if err != nil {
		return Configs{}, fmt.Errorf("open configuration file error: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(configFileName)) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(bufio.NewReader(f)).Decode(&configs)
	default:
		err = json.NewDecoder(bufio.NewReader(f)).Decode(&configs)
	}
	if err != nil {
		return Configs{}, fmt.Errorf("parse configuration file error: %w", err)
	}
	return configs, nil
}
