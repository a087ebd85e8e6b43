package au

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arzzra/mgcp_control/pkg/mgcp/signal"
)

// timerUnit единица таймеров AU пакета (100 мс)
const timerUnit = 100 * time.Millisecond

// Значения по умолчанию согласно RFC 2897
const (
	defaultFirstDigitTimer = 50 // ×100 мс = 5 секунд
	defaultInterDigitTimer = 30 // ×100 мс = 3 секунды
	defaultNumAttempts     = 1
	defaultMinDigits       = 1
	defaultMaxDigits       = 1
	defaultStartInputKeys  = "0-9"
	defaultEndInputKey     = '#'
)

// playCollectOptions разобранные параметры сигнала PlayCollect
type playCollectOptions struct {
	InitialPrompt       *Playlist
	Reprompt            *Playlist
	NoDigitsReprompt    *Playlist
	FailureAnnouncement *Playlist
	SuccessAnnouncement *Playlist

	NonInterruptible bool
	ClearDigitBuffer bool
	IncludeEndInput  bool

	NumAttempts int
	MinDigits   int
	MaxDigits   int

	// DigitPattern скомпилированный digit map; nil в режиме счета цифр
	DigitPattern *regexp.Regexp

	FirstDigitTimer time.Duration
	InterDigitTimer time.Duration
	// ExtraDigitTimer 0 означает, что таймер не активируется
	ExtraDigitTimer time.Duration

	RestartKey  byte
	ReinputKey  byte
	ReturnKey   byte
	PositionKey byte
	StopKey     byte

	// StartInputKeys развернутое множество допустимых первых клавиш
	StartInputKeys map[byte]bool
	// EndInputKey 0 означает, что клавиша завершения отключена
	EndInputKey byte
}

// parsePlayCollectOptions валидирует словарь и разбирает параметры.
// Неизвестный параметр — signal.ErrUnknownParameter; некорректное
// значение или конфликт — signal.ErrBadParameter.
func parsePlayCollectOptions(params map[string]string) (*playCollectOptions, error) {
	for name := range params {
		if !playCollectVocabulary[Parameter(name)] {
			return nil, fmt.Errorf("%w: %s", signal.ErrUnknownParameter, name)
		}
	}

	get := func(p Parameter) string { return params[string(p)] }
	has := func(p Parameter) bool { _, ok := params[string(p)]; return ok }

	opts := &playCollectOptions{}

	// Плейлисты: rp по умолчанию ip, nd по умолчанию rp
	initial := get(ParamInitialPrompt)
	reprompt := get(ParamReprompt)
	if reprompt == "" {
		reprompt = initial
	}
	noDigits := get(ParamNoDigitsReprompt)
	if noDigits == "" {
		noDigits = reprompt
	}
	opts.InitialPrompt = ParsePlaylist(initial, 1)
	opts.Reprompt = ParsePlaylist(reprompt, 1)
	opts.NoDigitsReprompt = ParsePlaylist(noDigits, 1)
	opts.FailureAnnouncement = ParsePlaylist(get(ParamFailureAnnouncement), 1)
	opts.SuccessAnnouncement = ParsePlaylist(get(ParamSuccessAnnouncement), 1)

	var err error
	if opts.NonInterruptible, err = parseBool(ParamNonInterruptible, get(ParamNonInterruptible)); err != nil {
		return nil, err
	}
	if opts.ClearDigitBuffer, err = parseBool(ParamClearDigitBuffer, get(ParamClearDigitBuffer)); err != nil {
		return nil, err
	}
	if opts.IncludeEndInput, err = parseBool(ParamIncludeEndInputKey, get(ParamIncludeEndInputKey)); err != nil {
		return nil, err
	}

	if opts.NumAttempts, err = parseInt(ParamNumAttempts, get(ParamNumAttempts), defaultNumAttempts); err != nil {
		return nil, err
	}
	if opts.NumAttempts < 1 {
		return nil, fmt.Errorf("%w: na=%d", signal.ErrBadParameter, opts.NumAttempts)
	}

	// Режимы сбора: dp взаимно исключен с mn/mx
	pattern := get(ParamDigitPattern)
	if pattern != "" && (has(ParamMinDigits) || has(ParamMaxDigits)) {
		return nil, fmt.Errorf("%w: dp несовместим с mn/mx", signal.ErrBadParameter)
	}
	if pattern != "" {
		if opts.DigitPattern, err = TranslateDigitMap(pattern); err != nil {
			return nil, fmt.Errorf("%w: %v", signal.ErrBadParameter, err)
		}
	}
	if opts.MinDigits, err = parseInt(ParamMinDigits, get(ParamMinDigits), defaultMinDigits); err != nil {
		return nil, err
	}
	if opts.MaxDigits, err = parseInt(ParamMaxDigits, get(ParamMaxDigits), defaultMaxDigits); err != nil {
		return nil, err
	}
	if opts.MinDigits < 0 || opts.MaxDigits < 1 || opts.MinDigits > opts.MaxDigits {
		return nil, fmt.Errorf("%w: mn=%d mx=%d", signal.ErrBadParameter, opts.MinDigits, opts.MaxDigits)
	}

	var units int
	if units, err = parseInt(ParamFirstDigitTimer, get(ParamFirstDigitTimer), defaultFirstDigitTimer); err != nil {
		return nil, err
	}
	opts.FirstDigitTimer = time.Duration(units) * timerUnit
	if units, err = parseInt(ParamInterDigitTimer, get(ParamInterDigitTimer), defaultInterDigitTimer); err != nil {
		return nil, err
	}
	opts.InterDigitTimer = time.Duration(units) * timerUnit
	// edt без значения не активируется
	if edt := get(ParamExtraDigitTimer); edt != "" {
		if units, err = parseInt(ParamExtraDigitTimer, edt, 0); err != nil {
			return nil, err
		}
		opts.ExtraDigitTimer = time.Duration(units) * timerUnit
	}
	if opts.FirstDigitTimer <= 0 || opts.InterDigitTimer <= 0 || opts.ExtraDigitTimer < 0 {
		return nil, fmt.Errorf("%w: неположительный таймер", signal.ErrBadParameter)
	}

	if opts.RestartKey, err = parseKey(ParamRestartKey, get(ParamRestartKey)); err != nil {
		return nil, err
	}
	if opts.ReinputKey, err = parseKey(ParamReinputKey, get(ParamReinputKey)); err != nil {
		return nil, err
	}
	if opts.ReturnKey, err = parseKey(ParamReturnKey, get(ParamReturnKey)); err != nil {
		return nil, err
	}
	if opts.PositionKey, err = parseKey(ParamPositionKey, get(ParamPositionKey)); err != nil {
		return nil, err
	}
	if opts.StopKey, err = parseKey(ParamStopKey, get(ParamStopKey)); err != nil {
		return nil, err
	}

	startKeys := get(ParamStartInputKeys)
	if startKeys == "" {
		startKeys = defaultStartInputKeys
	}
	if opts.StartInputKeys, err = expandKeySet(startKeys); err != nil {
		return nil, err
	}

	switch eik := get(ParamEndInputKey); eik {
	case "":
		opts.EndInputKey = defaultEndInputKey
	case "null":
		opts.EndInputKey = 0
	default:
		if opts.EndInputKey, err = parseKey(ParamEndInputKey, eik); err != nil {
			return nil, err
		}
	}

	return opts, nil
}

func parseBool(p Parameter, value string) (bool, error) {
	switch value {
	case "", "false":
		return false, nil
	case "true":
		return true, nil
	}
	return false, fmt.Errorf("%w: %s=%q", signal.ErrBadParameter, p, value)
}

func parseInt(p Parameter, value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", signal.ErrBadParameter, p, value)
	}
	return n, nil
}

// parseKey разбирает одиночную DTMF клавишу; "" означает не задана
func parseKey(p Parameter, value string) (byte, error) {
	if value == "" {
		return 0, nil
	}
	if len(value) != 1 || !isDTMFKey(value[0]) {
		return 0, fmt.Errorf("%w: %s=%q", signal.ErrBadParameter, p, value)
	}
	return value[0], nil
}

// expandKeySet разворачивает множество клавиш с диапазонами: "0-9#*"
func expandKeySet(spec string) (map[byte]bool, error) {
	set := make(map[byte]bool)
	for i := 0; i < len(spec); i++ {
		c := spec[i]
		if i+2 < len(spec) && spec[i+1] == '-' && isDTMFKey(spec[i+2]) {
			lo, hi := c, spec[i+2]
			if lo > hi {
				return nil, fmt.Errorf("%w: sik=%q", signal.ErrBadParameter, spec)
			}
			for k := lo; k <= hi; k++ {
				set[k] = true
			}
			i += 2
			continue
		}
		if !isDTMFKey(c) {
			return nil, fmt.Errorf("%w: sik=%q", signal.ErrBadParameter, spec)
		}
		set[c] = true
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: пустое множество sik", signal.ErrBadParameter)
	}
	return set, nil
}

func isDTMFKey(c byte) bool {
	return c >= '0' && c <= '9' || c == '*' || c == '#' || c >= 'A' && c <= 'D'
}

// stripTrailingKey убирает завершающую клавишу из возвращаемой последовательности
func stripTrailingKey(sequence string, key byte) string {
	if key != 0 && strings.HasSuffix(sequence, string(key)) {
		return sequence[:len(sequence)-1]
	}
	return sequence
}
