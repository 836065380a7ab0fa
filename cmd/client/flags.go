package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/abezemskiy/ambient/internal/client/ambient"
	"github.com/abezemskiy/ambient/internal/client/config"
)

var (
	netAddr    string // адрес сервиса
	logLevel   string // уровень логирования
	logFile    string // файл логов, по умолчанию стандартный вывод
	configFile string // путь к файлу конфигурации
	channelID  uint   // идентификатор канала
	writeKey   string // ключ записи
	readKey    string // ключ чтения
	userKey    string // ключ пользователя
	devKey     string // ключ устройства
	caFile     string // файл корневого сертификата в формате PEM
	timeout    int    // таймаут запроса в секундах
)

// parseVariables - функция для установки конфигурационных параметров клиента.
// Конфигурирование с приоритетом в порядке убывания: значения флагов, значения из файла, значения переменных окружения.
func parseVariables() error {
	parseFlags()
	parseConfigFile()
	parseEnvironment()
	setDefaults()

	err := checkVariables()
	if err != nil {
		return err
	}
	return nil
}

// parseFlags - функция для определения параметров конфигурации из флагов.
func parseFlags() {
	flag.StringVar(&netAddr, "a", "", "address of ambient service")
	flag.StringVar(&logLevel, "l", "", "log level")
	flag.StringVar(&logFile, "log-file", "", "log file")
	flag.StringVar(&configFile, "c", "", "name of configuration file")
	flag.UintVar(&channelID, "ch", 0, "channel id")
	flag.StringVar(&writeKey, "w", "", "channel write key")
	flag.StringVar(&readKey, "r", "", "channel read key")
	flag.StringVar(&userKey, "u", "", "user key")
	flag.StringVar(&devKey, "dev", "", "device key")
	flag.StringVar(&caFile, "ca", "", "root certificate file in PEM format")
	flag.IntVar(&timeout, "t", 0, "request timeout in seconds")

	flag.Parse()
}

// parseConfigFile - функция для переопределения параметров конфигурации из файла конфигурации.
func parseConfigFile() {
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
	if logFile == "" {
		logFile = configs.LogFile
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
	if caFile == "" {
		caFile = configs.CAFile
	}
	if timeout == 0 {
		timeout = configs.Timeout
	}
}

// parseEnvironment - функция для переопределения конфигурации из переменных окружения.
// Переопределяет конфигурацию, если значения не установлены флагами или файлом конфигурации.
func parseEnvironment() {
	if netAddr == "" {
		netAddr = os.Getenv("AMBIENT_CLIENT_ADDRESS")
	}
	if logLevel == "" {
		logLevel = os.Getenv("AMBIENT_CLIENT_LOG_LEVEL")
	}
	if logFile == "" {
		logFile = os.Getenv("AMBIENT_CLIENT_LOG_FILE")
	}
	if channelID == 0 {
		if v := os.Getenv("AMBIENT_CLIENT_CHANNEL"); v != "" {
			id, err := strconv.ParseUint(v, 10, 32)
			if err == nil {
				channelID = uint(id)
			}
		}
	}
	if writeKey == "" {
		writeKey = os.Getenv("AMBIENT_CLIENT_WRITE_KEY")
	}
	if readKey == "" {
		readKey = os.Getenv("AMBIENT_CLIENT_READ_KEY")
	}
	if userKey == "" {
		userKey = os.Getenv("AMBIENT_CLIENT_USER_KEY")
	}
	if devKey == "" {
		devKey = os.Getenv("AMBIENT_CLIENT_DEV_KEY")
	}
	if caFile == "" {
		caFile = os.Getenv("AMBIENT_CLIENT_CA_FILE")
	}
	if timeout == 0 {
		if v := os.Getenv("AMBIENT_CLIENT_TIMEOUT"); v != "" {
			sec, err := strconv.Atoi(v)
			if err == nil {
				timeout = sec
			}
		}
	}
}

// setDefaults - функция для установки значений, которые не были заданы ни одним способом.
func setDefaults() {
	if netAddr == "" {
		netAddr = ambient.DefaultBaseURL
	}
	if logLevel == "" {
		logLevel = "info"
	}
	if timeout == 0 {
		timeout = int(ambient.DefaultTimeout.Seconds())
	}
}

// checkVariables - функция для проверки корректности установки глобальных переменных.
func checkVariables() error {
	if channelID > 1<<32-1 {
		return fmt.Errorf("channel id %d is out of range", channelID)
	}
	if timeout < 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
