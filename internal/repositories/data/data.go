package data

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrBufferTooSmall - данные не помещаются в буфер вызывающей стороны.
var ErrBufferTooSmall = errors.New("buffer too small")

// Размеры буферов, унаследованные от протокола устройства.
const (
	DataSize    = 24  // максимальная длина значения поля данных в байтах
	CmntSize    = 64  // максимальная длина комментария в байтах
	KeySize     = 17  // максимальная длина ключа канала (writeKey, readKey)
	NumFields   = 8   // количество пользовательских полей d1..d8
	NumParams   = 11  // количество слотов записи: d1..d8, lat, lng, created
	PayloadSize = 512 // размер буфера сериализованной записи
)

// Имена ключей в JSON сообщениях сервиса.
const (
	KeyWriteKey = "writeKey"
	KeyReadKey  = "readKey"
	KeyUserKey  = "userKey"
	KeyDevKey   = "devKey"
	KeyChannel  = "ch"
	KeyCmnt     = "cmnt"
	KeyLat      = "lat"
	KeyLng      = "lng"
	KeyCreated  = "created"
	KeyData     = "data"
)

// ParamKeys - имена слотов записи в порядке их сериализации.
var ParamKeys = [NumParams]string{"d1", "d2", "d3", "d4", "d5", "d6", "d7", "d8", KeyLat, KeyLng, KeyCreated}

// ChannelID - идентификатор канала. Сервис присылает его то строкой, то числом.
type ChannelID uint32

// UnmarshalJSON - разбор идентификатора канала из строки или числа.
func (c *ChannelID) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		raw = []byte(s)
	}
	v, err := strconv.ParseUint(string(raw), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid channel id %q, %w", string(b), err)
	}
	*c = ChannelID(v)
	return nil
}

// ChannelInfo - данные канала, которые возвращает поиск канала по ключу устройства.
// Остальные поля ответа отбрасываются.
type ChannelInfo struct {
	Ch       ChannelID `json:"ch"`
	ReadKey  string    `json:"readKey"`
	WriteKey string    `json:"writeKey"`
}

// Record - одна строка данных канала, как её возвращает сервис.
type Record map[string]json.RawMessage

// Value - возвращает значение ключа в виде текста. Строки раскавычиваются, числа возвращаются как есть.
func (r Record) Value(key string) (string, bool) {
	raw, ok := r[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(bytes.TrimSpace(raw)), true
}
