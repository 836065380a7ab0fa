package checker

import "github.com/abezemskiy/ambient/internal/repositories/data"

// CheckField - функция для проверки номера поля данных. Номера полей начинаются с единицы.
func CheckField(field int) bool {
	return field >= 1 && field <= data.NumFields
}

// CheckData - функция для проверки длины значения поля данных.
func CheckData(value string) bool {
	return len(value) <= data.DataSize
}

// CheckCmnt - функция для проверки длины комментария.
func CheckCmnt(cmnt string) bool {
	return len(cmnt) <= data.CmntSize
}

// CheckKey - функция для проверки длины ключа канала. Пустой ключ допустим.
func CheckKey(key string) bool {
	return len(key) <= data.KeySize
}
