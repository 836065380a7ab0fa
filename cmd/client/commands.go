package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/abezemskiy/ambient/internal/client/ambient"
	"github.com/abezemskiy/ambient/internal/repositories/data"
)

const usage = `usage: client [flags] <command> [args]

commands:
  send d1=23.5 d2=66 cmnt=text   send one record
  bulk <file|->                  send a JSON array of records
  read [n]                       print the last n records
  delete                         delete all data of the channel (needs -u)
  channel                        look up channel by user and device key (needs -u, -dev)`

// errUsage - неизвестная команда или неверные аргументы.
var errUsage = errors.New(usage)

// errUnknownKey - ключ аргумента send не является полем d1..d8 или cmnt.
var errUnknownKey = errors.New("unknown key")

// commander - исполнитель команд командной строки.
type commander struct {
	client  *ambient.Client
	userKey string
	devKey  string
	in      io.Reader
	out     io.Writer
}

// execute - функция для выполнения команды над каналом.
func (cmd *commander) execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "send":
		return cmd.send(ctx, args[1:])
	case "bulk":
		return cmd.bulk(ctx, args[1:])
	case "read":
		return cmd.read(ctx, args[1:])
	case "delete":
		return cmd.delete(ctx)
	case "channel":
		return cmd.channel(ctx)
	default:
		return errUsage
	}
}

// send - заполняет запись из аргументов вида dN=value и cmnt=value и отправляет её.
func (cmd *commander) send(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("argument %q must look like key=value", arg)
		}
		if key == data.KeyCmnt {
			if err := cmd.client.SetComment(value); err != nil {
				return err
			}
			continue
		}
		field := fieldNumber(key)
		if field == 0 {
			return fmt.Errorf("%w %q", errUnknownKey, key)
		}
		if err := cmd.client.SetField(field, value); err != nil {
			return err
		}
	}

	err := cmd.client.Send(ctx)
	fmt.Fprintf(cmd.out, "status %d\n", cmd.client.Status())
	return err
}

// fieldNumber - возвращает номер поля по его имени или 0, если такого поля нет.
func fieldNumber(key string) int {
	for i, k := range data.ParamKeys[:data.NumFields] {
		if k == key {
			return i + 1
		}
	}
	return 0
}

// bulk - отправляет JSON из файла или стандартного ввода.
func (cmd *commander) bulk(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}

	var payload []byte
	var err error
	if args[0] == "-" {
		payload, err = io.ReadAll(cmd.in)
	} else {
		payload, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read bulk payload, %w", err)
	}

	status, err := cmd.client.BulkSend(ctx, string(payload))
	fmt.Fprintf(cmd.out, "status %d\n", status)
	return err
}

// read - выводит последние n записей канала.
func (cmd *commander) read(ctx context.Context, args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return fmt.Errorf("invalid number of records %q", args[0])
		}
		n = v
	}

	body, err := cmd.client.ReadString(ctx, n)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.out, strings.TrimSpace(body))
	return nil
}

// delete - удаляет все данные канала.
func (cmd *commander) delete(ctx context.Context) error {
	if cmd.userKey == "" {
		return fmt.Errorf("user key must be set")
	}
	err := cmd.client.DeleteData(ctx, cmd.userKey)
	fmt.Fprintf(cmd.out, "status %d\n", cmd.client.Status())
	return err
}

// channel - ищет канал по ключу пользователя и ключу устройства.
func (cmd *commander) channel(ctx context.Context) error {
	if cmd.userKey == "" || cmd.devKey == "" {
		return fmt.Errorf("user key and device key must be set")
	}
	info, err := cmd.client.GetChannel(ctx, cmd.userKey, cmd.devKey)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.out)
	return enc.Encode(map[string]any{
		data.KeyChannel:  uint32(info.Ch),
		data.KeyWriteKey: info.WriteKey,
		data.KeyReadKey:  info.ReadKey,
	})
}
