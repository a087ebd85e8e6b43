package media

import (
	"fmt"
	"time"
)

// DTMFDigit представляет DTMF цифру согласно RFC 4733
type DTMFDigit uint8

const (
	DTMF0     DTMFDigit = 0
	DTMF1     DTMFDigit = 1
	DTMF2     DTMFDigit = 2
	DTMF3     DTMFDigit = 3
	DTMF4     DTMFDigit = 4
	DTMF5     DTMFDigit = 5
	DTMF6     DTMFDigit = 6
	DTMF7     DTMFDigit = 7
	DTMF8     DTMFDigit = 8
	DTMF9     DTMFDigit = 9
	DTMFStar  DTMFDigit = 10 // *
	DTMFPound DTMFDigit = 11 // #
	DTMFA     DTMFDigit = 12
	DTMFB     DTMFDigit = 13
	DTMFC     DTMFDigit = 14
	DTMFD     DTMFDigit = 15
)

var digitSymbols = [16]byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '*', '#', 'A', 'B', 'C', 'D'}

func (d DTMFDigit) String() string {
	if d <= DTMFD {
		return string(digitSymbols[d])
	}
	return "?"
}

// Tone возвращает символ тона ('0'-'9', '*', '#', 'A'-'D') или 0 для неизвестной цифры
func (d DTMFDigit) Tone() byte {
	if d <= DTMFD {
		return digitSymbols[d]
	}
	return 0
}

// ParseDTMFDigit преобразует символ тона в DTMF цифру
func ParseDTMFDigit(tone byte) (DTMFDigit, error) {
	switch {
	case tone >= '0' && tone <= '9':
		return DTMFDigit(tone - '0'), nil
	case tone == '*':
		return DTMFStar, nil
	case tone == '#':
		return DTMFPound, nil
	case tone >= 'A' && tone <= 'D':
		return DTMFA + DTMFDigit(tone-'A'), nil
	case tone >= 'a' && tone <= 'd':
		return DTMFA + DTMFDigit(tone-'a'), nil
	}
	return 0, fmt.Errorf("недопустимый DTMF символ: %c", tone)
}

// IsValidDTMFDigit проверяет корректность DTMF цифры
func IsValidDTMFDigit(digit uint8) bool {
	return digit <= 15
}

// DTMFEvent представляет обнаруженное DTMF событие
type DTMFEvent struct {
	Digit     DTMFDigit     // DTMF цифра
	Duration  time.Duration // Длительность нажатия
	Volume    int8          // Уровень громкости (от 0 до -63 dBm)
	Timestamp uint32        // RTP timestamp события
}

// DTMFPayload структура DTMF payload согласно RFC 4733
type DTMFPayload struct {
	Event    uint8  // DTMF digit (0-15)
	EndFlag  bool   // End of event flag
	Reserved bool   // Reserved bit (должен быть 0)
	Volume   uint8  // Volume level (0-63, представляет -dBm)
	Duration uint16 // Duration in timestamp units
}

// deserializeDTMFPayload десериализует DTMF payload согласно RFC 4733
func deserializeDTMFPayload(data []byte) (DTMFPayload, error) {
	if len(data) < 4 {
		return DTMFPayload{}, fmt.Errorf("недостаточно данных для DTMF payload: %d байт", len(data))
	}

	return DTMFPayload{
		Event:    data[0] & 0x0F,
		EndFlag:  (data[1] & 0x80) != 0,
		Reserved: (data[1] & 0x40) != 0,
		Volume:   data[1] & 0x3F,
		Duration: uint16(data[2])<<8 | uint16(data[3]),
	}, nil
}
