package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Ограничения ротации файла логов клиента.
const (
	maxLogSizeMB  = 10
	maxLogBackups = 3
)

// ClientLog будет доступен всему коду клиента как синглтон.
// Никакой код, кроме функции Initialize, не должен модифицировать эту переменную.
// По умолчанию установлен no-op-логер, который не выводит никаких сообщений.
var ClientLog *zap.Logger = zap.NewNop()

// Initialize - инициализирует синглтон логера с необходимым уровнем логирования.
// Если logFile задан, логи пишутся в файл с ротацией, иначе в стандартный вывод.
func Initialize(level, logFile string) error {
	// преобразуем текстовый уровень логирования в zap.AtomicLevel
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	if logFile == "" {
		cfg := zap.NewProductionConfig()
		cfg.Level = lvl
		zl, err := cfg.Build()
		if err != nil {
			return err
		}
		ClientLog = zl.With(zap.String("role", "ambient-client"))
		return nil
	}

	// очищаю файл логов при старте
	err = os.Truncate(logFile, 0)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
	})
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), writer, lvl)
	ClientLog = zap.New(core).With(zap.String("role", "ambient-client"))
	return nil
}
