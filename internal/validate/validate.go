// Package validate содержит проверки пользовательского ввода: email, пароль и RUT.
package validate

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reEmail   = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reRUTBody = regexp.MustCompile(`^[0-9]{1,9}$`)
)

const (
	// MinPasswordLength — минимальная длина пароля.
	MinPasswordLength = 6
	// MaxPasswordBytes — предел bcrypt, более длинный пароль он не примет.
	MaxPasswordBytes = 72
)

// Email проверяет форму адреса. Регистр не меняется: адрес хранится как введён.
func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 254 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Password требует не меньше MinPasswordLength символов, не больше MaxPasswordBytes байт,
// хотя бы одну заглавную букву и одну цифру.
func Password(s string) bool {
	if len([]rune(s)) < MinPasswordLength || PasswordTooLong(s) {
		return false
	}
	var hasUpper, hasDigit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasUpper && hasDigit
}

// PasswordTooLong сообщает, что пароль длиннее MaxPasswordBytes байт.
func PasswordTooLong(s string) bool {
	return len(s) > MaxPasswordBytes
}

// NormalizeRUT убирает точки, дефисы, пробелы и ведущие нули тела и приводит контрольный
// символ к верхнему регистру. Результат имеет вид "12345678-5". Второе значение false, если строка не похожа на RUT.
func NormalizeRUT(s string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', ' ', '\t':
			return -1
		}
		return unicode.ToUpper(r)
	}, s)
	if len(cleaned) < 2 {
		return "", false
	}

	body, check := cleaned[:len(cleaned)-1], cleaned[len(cleaned)-1]
	if !reRUTBody.MatchString(body) {
		return "", false
	}
	// Ведущий ноль не меняет сумму по модулю 11, но дал бы второе написание того же RUT.
	if body = strings.TrimLeft(body, "0"); body == "" {
		body = "0"
	}
	if (check < '0' || check > '9') && check != 'K' {
		return "", false
	}
	return body + "-" + string(check), true
}

// RUTCheckDigit считает контрольный символ по модулю 11 для тела RUT из цифр.
// Веса 2..7 циклически от младшей цифры; 11 даёт '0', 10 даёт 'K'.
func RUTCheckDigit(body string) byte {
	sum, weight := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}

	switch rest := 11 - sum%11; rest {
	case 11:
		return '0'
	case 10:
		return 'K'
	default:
		return byte('0' + rest)
	}
}

// RUT проверяет контрольный символ и возвращает нормализованное значение.
func RUT(s string) (string, bool) {
	normalized, ok := NormalizeRUT(s)
	if !ok {
		return "", false
	}
	body, check := normalized[:len(normalized)-2], normalized[len(normalized)-1]
	if RUTCheckDigit(body) != check {
		return "", false
	}
	return normalized, true
}
