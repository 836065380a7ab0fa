package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/abezemskiy/ambient/internal/common/checker"
	"github.com/abezemskiy/ambient/internal/server/config"

	"github.com/google/uuid"
)

var (
	netAddr    string // адрес запуска песочницы
	logLevel   string // уровень логирования
	configFile string // путь к файлу конфигурации
	certFile   string // сертификат TLS, без него песочница работает по HTTP
	keyFile    string // закрытый ключ TLS
	channelID  uint   // идентификатор канала песочницы
	writeKey   string // ключ записи канала
	readKey    string // ключ чтения канала
	userKey    string // ключ пользователя
	devKey     string // ключ устройства для поиска канала
	database   string // файл базы SQLite, без него данные хранятся в памяти
)

// parseVariables - функция для установки конфигурационных параметров песочницы.
// Конфигурирование с приоритетом в порядке убывания: значения флагов, значения из файла, значения переменных окружения.
func parseVariables() error {
	parseFlags()
	parseConfigFile()
	parseEnvironment()
	setDefaults()

	err := checkVariables()
	if err != nil {
		return fmt.Errorf("failed to set global variable, %w", err)
	}
	return nil
}

// parseFlags - функция для определения параметров конфигурации из флагов.
func parseFlags() {
	flag.StringVar(&netAddr, "a", "", "address and port to run sandbox")
	flag.StringVar(&logLevel, "l", "", "log level")
	flag.StringVar(&configFile, "c", "", "name of configuration file")
	flag.StringVar(&certFile, "cert", "", "TLS certificate file")
	flag.StringVar(&keyFile, "key", "", "TLS private key file")
	flag.UintVar(&channelID, "ch", 0, "channel id")
	flag.StringVar(&writeKey, "w", "", "channel write key")
	flag.StringVar(&readKey, "r", "", "channel read key")
	flag.StringVar(&userKey, "u", "", "user key")
	flag.StringVar(&devKey, "dev", "", "device key")
	flag.StringVar(&database, "d", "", "SQLite database file")

	flag.Parse()
}

// parseConfigFile - функция для переопределения параметров конфигурации из файла конфигурации.
func parseConfigFile() {
	// если не указан файл конфигурации, то оставляю параметры запуска без изменения
	if configFile == "" {
		return
	}
	configs, err := config.ParseConfigFile(configFile)
	if err != nil {
		log.Fatalf("parse config file error: %v\n", err)
	}

	// обновляю параметры запуска если они не определены флагами
	if netAddr == "" {
		netAddr = configs.Address
	}
	if logLevel == "" {
		logLevel = configs.LogLevel
	}
	if certFile == "" {
		certFile = configs.CertFile
	}
	if keyFile == "" {
		keyFile = configs.KeyFile
	}
	if channelID == 0 {
		channelID = uint(configs.Channel)
	}
	if writeKey == "" {
		writeKey = configs.WriteKey
	}
	if readKey == "" {
		readKey = configs.ReadKey
	}
	if userKey == "" {
		userKey = configs.UserKey
	}
	if devKey == "" {
		devKey = configs.DevKey
	}
	if database == "" {
		database = configs.Database
	}
}

// parseEnvironment - функция для переопределения конфигурации из переменных окружения.
// Переопределяет конфигурацию, если значения не установлены флагами или файлом конфигурации.
func parseEnvironment() {
	if netAddr == "" {
		netAddr = os.Getenv("AMBIENT_SERVER_ADDRESS")
	}
	if logLevel == "" {
		logLevel = os.Getenv("AMBIENT_SERVER_LOG_LEVEL")
	}
	if certFile == "" {
		certFile = os.Getenv("AMBIENT_SERVER_CERT_FILE")
	}
	if keyFile == "" {
		keyFile = os.Getenv("AMBIENT_SERVER_KEY_FILE")
	}
	if channelID == 0 {
		if v := os.Getenv("AMBIENT_SERVER_CHANNEL"); v != "" {
			id, err := strconv.ParseUint(v, 10, 32)
			if err == nil {
				channelID = uint(id)
			}
		}
	}
	if writeKey == "" {
		writeKey = os.Getenv("AMBIENT_SERVER_WRITE_KEY")
	}
	if readKey == "" {
		readKey = os.Getenv("AMBIENT_SERVER_READ_KEY")
	}
	if userKey == "" {
		userKey = os.Getenv("AMBIENT_SERVER_USER_KEY")
	}
	if devKey == "" {
		devKey = os.Getenv("AMBIENT_SERVER_DEV_KEY")
	}
	if database == "" {
		database = os.Getenv("AMBIENT_SERVER_DATABASE")
	}
}

// setDefaults - функция для установки значений, которые не были заданы ни одним способом.
// Недостающие ключи генерируются случайно.
func setDefaults() {
	if channelID == 0 {
		channelID = 1
	}
	if writeKey == "" {
		writeKey = newKey()
	}
	if readKey == "" {
		readKey = newKey()
	}
	if userKey == "" {
		userKey = newKey()
	}
}

// newKey - генерирует ключ канала из 16 шестнадцатеричных символов.
func newKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// checkVariables - функция для проверки корректности установки глобальных переменных.
func checkVariables() error {
	if netAddr == "" {
		return fmt.Errorf("address and port to run sandbox must be set")
	}
	if logLevel == "" {
		return fmt.Errorf("log level must be set")
	}
	if (certFile == "") != (keyFile == "") {
		return fmt.Errorf("certificate and key files must be set together")
	}
	if channelID > 1<<32-1 {
		return fmt.Errorf("channel id %d is out of range", channelID)
	}
	if !checker.CheckKey(writeKey) || !checker.CheckKey(readKey) {
		return fmt.Errorf("channel keys must not be longer than 17 characters")
	}
	return nil
}
