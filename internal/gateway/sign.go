package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

const (
	// TokenField - поле с подписью в запросах и уведомлениях
	TokenField = "Token"
	// PasswordField - зарезервированное поле, под которым в подпись подмешивается секрет терминала
	PasswordField = "Password"
)

// Sign считает подпись по плоскому набору полей.
// Пустые значения и вложенные объекты (Receipt, DATA) в подпись не входят.
// Значения склеиваются в порядке сортировки имён полей, затем берётся SHA-256 в hex.
func Sign(fields map[string]any, secret string) string {
	values := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		s, ok := scalarString(v)
		if !ok || s == "" {
			continue
		}
		values[k] = s
	}
	values[PasswordField] = secret

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(values[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify пересчитывает подпись входящих полей без самого Token и сравнивает за константное время
func Verify(fields map[string]any, signature, secret string) bool {
	if signature == "" {
		return false
	}
	signed := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == TokenField {
			continue
		}
		signed[k] = v
	}
	expected := Sign(signed, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}

// scalarString приводит скалярное значение к строке так, как его видит шлюз.
// Для структурных значений возвращает false.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}
