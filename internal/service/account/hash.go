package account

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const legacyHashLen = sha256.Size * 2

// hashPassword возвращает bcrypt-хеш пароля.
func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// isLegacyHash распознаёт шестнадцатеричный SHA-256 из старых файлов данных.
func isLegacyHash(hash string) bool {
	if len(hash) != legacyHashLen {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// checkPassword сравнивает пароль с сохранённым хешем (bcrypt или старый SHA-256).
func checkPassword(hash, password string) bool {
	if isLegacyHash(hash) {
		sum := sha256.Sum256([]byte(password))
		return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(strings.ToLower(hash))) == 1
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
