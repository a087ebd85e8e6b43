package au

// Parameter символ параметра сигналов пакета AU
type Parameter string

const (
	ParamInitialPrompt       Parameter = "ip"
	ParamReprompt            Parameter = "rp"
	ParamNoDigitsReprompt    Parameter = "nd"
	ParamFailureAnnouncement Parameter = "fa"
	ParamSuccessAnnouncement Parameter = "sa"
	ParamNonInterruptible    Parameter = "ni"
	ParamSpeed               Parameter = "sp"
	ParamVolume              Parameter = "vl"
	ParamClearDigitBuffer    Parameter = "cb"
	ParamMinDigits           Parameter = "mn"
	ParamMaxDigits           Parameter = "mx"
	ParamDigitPattern        Parameter = "dp"
	ParamFirstDigitTimer     Parameter = "fdt"
	ParamInterDigitTimer     Parameter = "idt"
	ParamExtraDigitTimer     Parameter = "edt"
	ParamRestartKey          Parameter = "rsk"
	ParamReinputKey          Parameter = "rik"
	ParamReturnKey           Parameter = "rtk"
	ParamPositionKey         Parameter = "psk"
	ParamStopKey             Parameter = "stk"
	ParamStartInputKeys      Parameter = "sik"
	ParamEndInputKey         Parameter = "eik"
	ParamIncludeEndInputKey  Parameter = "iek"
	ParamNumAttempts         Parameter = "na"
	ParamAnnouncement        Parameter = "an"
	ParamIterations          Parameter = "it"
	ParamInterval            Parameter = "iv"
	ParamDuration            Parameter = "du"
)

// Возвращаемые параметры событий завершения
const (
	returnCode     = "rc" // код результата
	returnDigits   = "dc" // собранные цифры
	returnAttempts = "ni" // число использованных попыток
)

// Коды результата сигналов AU
const (
	ResultSuccess           = 100
	ResultNoDigits          = 326
	ResultPatternNotMatched = 327
	ResultTooFewDigits      = 328
	ResultUnspecifiedError  = 500
)

// playCollectVocabulary словарь параметров, которые понимает PlayCollect
var playCollectVocabulary = map[Parameter]bool{
	ParamInitialPrompt:       true,
	ParamReprompt:            true,
	ParamNoDigitsReprompt:    true,
	ParamFailureAnnouncement: true,
	ParamSuccessAnnouncement: true,
	ParamNonInterruptible:    true,
	ParamSpeed:               true,
	ParamVolume:              true,
	ParamClearDigitBuffer:    true,
	ParamMinDigits:           true,
	ParamMaxDigits:           true,
	ParamDigitPattern:        true,
	ParamFirstDigitTimer:     true,
	ParamInterDigitTimer:     true,
	ParamExtraDigitTimer:     true,
	ParamRestartKey:          true,
	ParamReinputKey:          true,
	ParamReturnKey:           true,
	ParamPositionKey:         true,
	ParamStopKey:             true,
	ParamStartInputKeys:      true,
	ParamEndInputKey:         true,
	ParamIncludeEndInputKey:  true,
	ParamNumAttempts:         true,
}

// playAnnouncementVocabulary словарь параметров PlayAnnouncement
var playAnnouncementVocabulary = map[Parameter]bool{
	ParamAnnouncement: true,
	ParamIterations:   true,
	ParamInterval:     true,
	ParamDuration:     true,
	ParamSpeed:        true,
	ParamVolume:       true,
}
