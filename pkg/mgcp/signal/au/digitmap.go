package au

import (
	"fmt"
	"regexp"
	"strings"
)

// TranslateDigitMap транслирует MEGACO digit map (RFC 2885 §7.1.14)
// в регулярное выражение над последовательностью DTMF символов:
//
//	x → \d        любая цифра 0-9
//	. → +         повторение предыдущей позиции
//	* → \*        литеральная звездочка
//	| → |         альтернатива
//
// Остальные символы (#, цифры, A-D) — литералы. Сопоставление
// выполняется по всей последовательности целиком.
func TranslateDigitMap(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("пустой digit map")
	}

	var sb strings.Builder
	sb.WriteString("^(?:")
	for _, r := range pattern {
		switch r {
		case 'x', 'X':
			sb.WriteString(`\d`)
		case '.':
			sb.WriteByte('+')
		case '*':
			sb.WriteString(`\*`)
		case '|':
			sb.WriteByte('|')
		case '#':
			sb.WriteByte('#')
		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9',
			'A', 'B', 'C', 'D', 'a', 'b', 'c', 'd':
			sb.WriteRune(r)
		case '[', ']', '-':
			// Диапазоны [1-5] пропускаются как есть
			sb.WriteRune(r)
		default:
			return nil, fmt.Errorf("недопустимый символ digit map: %q", r)
		}
	}
	sb.WriteString(")$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("ошибка компиляции digit map %q: %w", pattern, err)
	}
	return re, nil
}
