package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/abezemskiy/ambient/internal/common/checker"
	"github.com/abezemskiy/ambient/internal/repositories/data"
)

var (
	// ErrOutOfRange - номер поля вне диапазона 1..8.
	ErrOutOfRange = errors.New("record: field number out of range")
	// ErrTooLong - строка не помещается в слот.
	ErrTooLong = errors.New("record: value too long")
	// ErrBufferTooSmall - сериализованная запись не помещается в буфер.
	ErrBufferTooSmall = data.ErrBufferTooSmall
)

// Field - слот данных записи.
type Field struct {
	Set   bool   // признак того, что значение установлено
	Value string // значение не длиннее data.DataSize байт
}

// Comment - комментарий записи.
type Comment struct {
	Set   bool   // признак того, что комментарий установлен
	Value string // комментарий не длиннее data.CmntSize байт
}

// Record - запись, ожидающая отправки: слоты d1..d8, lat, lng, created и комментарий.
// Не предназначена для одновременного использования из нескольких горутин.
type Record struct {
	fields [data.NumParams]Field
	cmnt   Comment
}

// New - фабричная функция пустой записи.
func New() *Record {
	return &Record{}
}

// SetField - устанавливает значение поля с номером field (1..8).
// При ошибке запись не изменяется.
func (r *Record) SetField(field int, value string) error {
	if !checker.CheckField(field) {
		return fmt.Errorf("field %d, %w", field, ErrOutOfRange)
	}
	if !checker.CheckData(value) {
		return fmt.Errorf("field %d, %d bytes, %w", field, len(value), ErrTooLong)
	}
	r.fields[field-1] = Field{Set: true, Value: value}
	return nil
}

// SetFieldFloat - устанавливает числовое значение поля в кратчайшей десятичной записи.
func (r *Record) SetFieldFloat(field int, value float64) error {
	return r.SetField(field, strconv.FormatFloat(value, 'f', -1, 64))
}

// SetFieldInt - устанавливает целое значение поля.
func (r *Record) SetFieldInt(field int, value int) error {
	return r.SetField(field, strconv.Itoa(value))
}

// SetComment - устанавливает комментарий.
func (r *Record) SetComment(cmnt string) error {
	if !checker.CheckCmnt(cmnt) {
		return fmt.Errorf("comment, %d bytes, %w", len(cmnt), ErrTooLong)
	}
	r.cmnt = Comment{Set: true, Value: cmnt}
	return nil
}

// ClearField - сбрасывает поле с номером field.
// Вместе с полем всегда сбрасывается и комментарий.
func (r *Record) ClearField(field int) error {
	if !checker.CheckField(field) {
		return fmt.Errorf("field %d, %w", field, ErrOutOfRange)
	}
	r.fields[field-1].Set = false
	r.cmnt.Set = false
	return nil
}

// ClearAll - сбрасывает все поля и комментарий.
func (r *Record) ClearAll() {
	for i := range r.fields {
		r.fields[i].Set = false
	}
	r.cmnt.Set = false
}

// IsSet - установлено ли поле с номером field. Для номера вне диапазона возвращает false.
func (r *Record) IsSet(field int) bool {
	if !checker.CheckField(field) {
		return false
	}
	return r.fields[field-1].Set
}

// Value - значение установленного поля.
func (r *Record) Value(field int) (string, bool) {
	if !r.IsSet(field) {
		return "", false
	}
	return r.fields[field-1].Value, true
}

// CommentSet - установлен ли комментарий.
func (r *Record) CommentSet() bool {
	return r.cmnt.Set
}

// Comment - текущий комментарий.
func (r *Record) Comment() (string, bool) {
	return r.cmnt.Value, r.cmnt.Set
}

// Empty - нет ни одного установленного поля и комментария.
func (r *Record) Empty() bool {
	for _, f := range r.fields {
		if f.Set {
			return false
		}
	}
	return !r.cmnt.Set
}

// MarshalTo - записывает запись в buf в виде JSON объекта и возвращает количество записанных байт.
// Порядок ключей: writeKey, установленные слоты, cmnt. Неустановленные слоты пропускаются.
// Если объект не помещается в buf, buf не изменяется и возвращается 0.
func (r *Record) MarshalTo(writeKey string, buf []byte) int {
	out := make([]byte, 0, data.PayloadSize)
	out = append(out, '{')
	out = appendPair(out, data.KeyWriteKey, writeKey)
	for i, f := range r.fields {
		if f.Set {
			out = append(out, ',')
			out = appendPair(out, data.ParamKeys[i], f.Value)
		}
	}
	if r.cmnt.Set {
		out = append(out, ',')
		out = appendPair(out, data.KeyCmnt, r.cmnt.Value)
	}
	out = append(out, '}')

	if len(out) > len(buf) {
		return 0
	}
	return copy(buf, out)
}

// JSON - сериализует запись в буфер фиксированного размера data.PayloadSize.
func (r *Record) JSON(writeKey string) ([]byte, error) {
	buf := make([]byte, data.PayloadSize)
	n := r.MarshalTo(writeKey, buf)
	if n == 0 {
		return nil, fmt.Errorf("serialize record into %d bytes, %w", data.PayloadSize, ErrBufferTooSmall)
	}
	return buf[:n], nil
}

func appendPair(out []byte, key, value string) []byte {
	out = appendString(out, key)
	out = append(out, ':')
	return appendString(out, value)
}

// appendString - дописывает строку в JSON без экранирования <, > и &.
func appendString(out []byte, s string) []byte {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	// кодирование строки не возвращает ошибку
	_ = enc.Encode(s)
	return append(out, bytes.TrimSuffix(b.Bytes(), []byte("\n"))...)
}
