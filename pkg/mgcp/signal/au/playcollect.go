package au

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/media"
	"github.com/arzzra/mgcp_control/pkg/mgcp/signal"
)

// Состояния конечного автомата PlayCollect
const (
	statIdle                 = "idle"
	statPrompting            = "prompting"
	statCollectingFirst      = "collecting_first"
	statCollectingSubsequent = "collecting_subsequent"
	statReprompting          = "reprompting"
	statAnnouncingSuccess    = "announcing_success"
	statAnnouncingFailure    = "announcing_failure"
	statTerminal             = "terminal"
)

// События конечного автомата
const (
	evPrompt     = "prompt"
	evCollect    = "collect"
	evFirstDigit = "first_digit"
	evReprompt   = "reprompt"
	evReinput    = "reinput"
	evSucceed    = "succeed"
	evFail       = "fail"
	evComplete   = "complete"
	evCancel     = "cancel"
)

// newPlayCollectFSM строит валидатор переходов PlayCollect.
// Решения о переходах принимает цикл обработки событий; автомат
// гарантирует, что принятое решение допустимо из текущей фазы.
func newPlayCollectFSM() *fsm.FSM {
	return fsm.NewFSM(
		statIdle,
		fsm.Events{
			{Name: evPrompt, Src: []string{statIdle}, Dst: statPrompting},
			{Name: evCollect, Src: []string{statIdle, statPrompting, statReprompting}, Dst: statCollectingFirst},
			{Name: evFirstDigit, Src: []string{statPrompting, statReprompting, statCollectingFirst}, Dst: statCollectingSubsequent},
			{Name: evReprompt, Src: []string{statCollectingFirst, statCollectingSubsequent}, Dst: statReprompting},
			{Name: evReinput, Src: []string{statCollectingSubsequent}, Dst: statCollectingFirst},
			{Name: evSucceed, Src: []string{statCollectingSubsequent}, Dst: statAnnouncingSuccess},
			{Name: evFail, Src: []string{statPrompting, statReprompting, statCollectingFirst, statCollectingSubsequent}, Dst: statAnnouncingFailure},
			{Name: evComplete, Src: []string{statAnnouncingSuccess, statAnnouncingFailure}, Dst: statTerminal},
			{Name: evCancel, Src: []string{
				statIdle, statPrompting, statCollectingFirst, statCollectingSubsequent,
				statReprompting, statAnnouncingSuccess, statAnnouncingFailure,
			}, Dst: statTerminal},
		}, nil,
	)
}

// Внутренние события цикла обработки
type pcEventKind int

const (
	pcTone pcEventKind = iota
	pcPlayerEnd
	pcPlayerFailed
	pcTimer
	pcCancel
)

type timerKind int

const (
	timerFirstDigit timerKind = iota
	timerInterDigit
	timerExtraDigit
)

func (k timerKind) String() string {
	switch k {
	case timerFirstDigit:
		return "fdt"
	case timerInterDigit:
		return "idt"
	case timerExtraDigit:
		return "edt"
	default:
		return "?"
	}
}

type pcEvent struct {
	kind  pcEventKind
	tone  byte
	err   error
	gen   int
	timer timerKind
}

// pendingResult отложенный результат, доставляемый после объявления
type pendingResult struct {
	success bool
	code    int
	digits  string
}

// PlayCollect сигнал AU/pc: проигрывает приглашение и собирает DTMF
// цифры с повторными попытками. Все мутации состояния происходят в
// одной горутине цикла обработки; внешние источники (детектор,
// проигрыватель, таймеры, Cancel) только публикуют события в очередь.
type PlayCollect struct {
	*signal.Base

	logger   logging.Logger
	player   media.Player
	detector media.DTMFDetector
	opts     *playCollectOptions

	machine  *fsm.FSM
	events   chan pcEvent
	canceled atomic.Bool

	// Контекст исполнения: доступ только из run()
	playlist   *Playlist
	sequence   string
	attempts   int
	eventCount int
	timer      *time.Timer
	timerGen   int
	result     pendingResult
}

// NewPlayCollect создает сигнал по параметрам запроса.
// Ошибки словаря и значений параметров возвращаются немедленно,
// чтобы команда RQNT могла отказать до запуска сигнала.
func NewPlayCollect(player media.Player, detector media.DTMFDetector, parameters map[string]string, logger logging.Logger) (*PlayCollect, error) {
	if player == nil || detector == nil {
		return nil, media.ErrNoResources
	}
	opts, err := parsePlayCollectOptions(parameters)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &PlayCollect{
		Base:     signal.NewBase(PackageName, SymbolPlayCollect, signal.TimeOut, parameters),
		logger:   logger.WithComponent("au.pc"),
		player:   player,
		detector: detector,
		opts:     opts,
		machine:  newPlayCollectFSM(),
		events:   make(chan pcEvent, 32),
	}, nil
}

// IsParameterSupported проверяет параметр по словарю сигнала
func (pc *PlayCollect) IsParameterSupported(name string) bool {
	return playCollectVocabulary[Parameter(name)]
}

// Execute запускает сигнал: захватывает медиа ресурсы и стартует цикл
func (pc *PlayCollect) Execute() error {
	if err := pc.TryStart(); err != nil {
		return err
	}

	if pc.opts.ClearDigitBuffer {
		pc.detector.Flush()
	}
	pc.player.SetListener(pc.onPlayerEvent)
	if err := pc.detector.AddListener(pc); err != nil {
		pc.FinishExecution()
		return err
	}
	if err := pc.detector.Activate(); err != nil && !errors.Is(err, media.ErrDetectorActive) {
		pc.detector.RemoveListener(pc)
		pc.FinishExecution()
		return err
	}

	go pc.run()
	return nil
}

// Cancel прерывает сигнал без события завершения.
// Безопасен из любого потока, идемпотентен.
func (pc *PlayCollect) Cancel() {
	if pc.canceled.Swap(true) {
		return
	}
	if !pc.IsExecuting() {
		pc.TryComplete()
		return
	}
	select {
	case pc.events <- pcEvent{kind: pcCancel}:
	default:
		// Очередь полна: флаг canceled будет замечен циклом
	}
}

// Process реализует media.DTMFListener
func (pc *PlayCollect) Process(event media.DTMFEvent) {
	tone := event.Digit.Tone()
	if tone == 0 {
		pc.logger.Warn("пустой тон отброшен")
		return
	}
	pc.post(pcEvent{kind: pcTone, tone: tone})
}

func (pc *PlayCollect) onPlayerEvent(event media.PlayerEvent) {
	switch event.Type {
	case media.PlayerEventEnd:
		pc.post(pcEvent{kind: pcPlayerEnd})
	case media.PlayerEventFailed:
		pc.post(pcEvent{kind: pcPlayerFailed, err: event.Err})
	}
}

func (pc *PlayCollect) post(event pcEvent) {
	select {
	case pc.events <- event:
	default:
		pc.logger.Warn("очередь событий сигнала переполнена, событие отброшено",
			logging.Int("kind", int(event.kind)))
	}
}

// run цикл обработки событий: единственная горутина, мутирующая состояние
func (pc *PlayCollect) run() {
	ctx := context.Background()
	pc.attempts = 1

	if !pc.opts.InitialPrompt.IsEmpty() {
		pc.transition(ctx, evPrompt)
		pc.playlist = pc.opts.InitialPrompt
		pc.playlist.Reset()
		pc.playNextSegment(ctx)
	} else {
		pc.enterCollecting(ctx)
	}
	if pc.machine.Current() == statTerminal {
		return
	}

	for event := range pc.events {
		if pc.canceled.Load() {
			pc.terminate(ctx)
			return
		}
		switch event.kind {
		case pcCancel:
			pc.terminate(ctx)
			return
		case pcTone:
			pc.onTone(ctx, event.tone)
		case pcPlayerEnd:
			pc.onPlayerEnd(ctx)
		case pcPlayerFailed:
			pc.onPlayerFailed(ctx, event.err)
		case pcTimer:
			if event.gen == pc.timerGen {
				pc.onTimer(ctx, event.timer)
			}
		}
		if pc.machine.Current() == statTerminal {
			return
		}
	}
}

// transition выполняет переход автомата; невалидный переход — дефект
// логики цикла, логируется и не прерывает исполнение
func (pc *PlayCollect) transition(ctx context.Context, event string) {
	if err := pc.machine.Event(ctx, event); err != nil {
		pc.logger.Error("невалидный переход состояния",
			logging.String("event", event),
			logging.String("state", pc.machine.Current()),
			logging.Err(err))
	}
}

// --- Воспроизведение ---

func (pc *PlayCollect) playNextSegment(ctx context.Context) {
	segment, ok := pc.playlist.Next()
	if !ok {
		pc.onPlaylistDone(ctx)
		return
	}
	if err := pc.player.Play(segment); err != nil {
		pc.onPlayerFailed(ctx, err)
	}
}

func (pc *PlayCollect) onPlayerEnd(ctx context.Context) {
	switch pc.machine.Current() {
	case statPrompting, statReprompting, statAnnouncingSuccess, statAnnouncingFailure:
		pc.playNextSegment(ctx)
	}
}

// onPlaylistDone плейлист исчерпан
func (pc *PlayCollect) onPlaylistDone(ctx context.Context) {
	switch pc.machine.Current() {
	case statPrompting, statReprompting:
		pc.enterCollecting(ctx)
	case statAnnouncingSuccess, statAnnouncingFailure:
		pc.fireResult(ctx)
	}
}

func (pc *PlayCollect) onPlayerFailed(ctx context.Context, err error) {
	pc.logger.Warn("ошибка воспроизведения", logging.Err(err),
		logging.String("state", pc.machine.Current()))
	switch pc.machine.Current() {
	case statPrompting, statReprompting, statCollectingFirst, statCollectingSubsequent:
		pc.finishFailure(ctx, ResultUnspecifiedError)
	case statAnnouncingSuccess, statAnnouncingFailure:
		// Объявление не обязано доиграть: результат уже известен
		pc.fireResult(ctx)
	}
}

// --- Сбор цифр ---

// enterCollecting переход к ожиданию первой цифры
func (pc *PlayCollect) enterCollecting(ctx context.Context) {
	pc.transition(ctx, evCollect)
	pc.schedule(pc.opts.FirstDigitTimer, timerFirstDigit)
}

func (pc *PlayCollect) onTone(ctx context.Context, tone byte) {
	pc.eventCount++
	pc.logger.Debug("получен тон", logging.String("tone", string(tone)),
		logging.String("state", pc.machine.Current()))

	switch pc.machine.Current() {
	case statPrompting:
		if pc.opts.NonInterruptible {
			return
		}
		pc.onPromptTone(ctx, tone)
	case statReprompting:
		// Повторное приглашение прерываемо независимо от ni
		pc.onPromptTone(ctx, tone)
	case statCollectingFirst:
		if pc.opts.StartInputKeys[tone] {
			pc.onFirstDigit(ctx, tone)
		}
	case statCollectingSubsequent:
		pc.onCollectTone(ctx, tone)
	}
}

// onPromptTone обработка тона во время воспроизведения приглашения
func (pc *PlayCollect) onPromptTone(ctx context.Context, tone byte) {
	switch {
	case pc.opts.StopKey != 0 && tone == pc.opts.StopKey:
		pc.player.Stop()
		pc.enterCollecting(ctx)
	case pc.opts.PositionKey != 0 && tone == pc.opts.PositionKey:
		pc.player.Stop()
		pc.playlist.SeekCurrent()
		pc.playNextSegment(ctx)
	case pc.opts.StartInputKeys[tone]:
		pc.player.Stop()
		pc.onFirstDigit(ctx, tone)
	}
}

// onFirstDigit первая принятая цифра открывает последовательность
func (pc *PlayCollect) onFirstDigit(ctx context.Context, tone byte) {
	pc.transition(ctx, evFirstDigit)
	pc.sequence = ""
	pc.appendTone(ctx, tone)
}

// onCollectTone обработка тона при наборе последующих цифр
func (pc *PlayCollect) onCollectTone(ctx context.Context, tone byte) {
	switch {
	case pc.opts.RestartKey != 0 && tone == pc.opts.RestartKey:
		pc.restart(ctx)
	case pc.opts.ReinputKey != 0 && tone == pc.opts.ReinputKey:
		pc.reinput(ctx)
	case pc.opts.ReturnKey != 0 && tone == pc.opts.ReturnKey:
		pc.succeedWith(ctx, pc.sequence)
	case pc.opts.DigitPattern == nil && pc.opts.EndInputKey != 0 && tone == pc.opts.EndInputKey:
		pc.onEndInput(ctx)
	default:
		pc.appendTone(ctx, tone)
	}
}

// appendTone добавляет тон к последовательности и решает, что дальше
func (pc *PlayCollect) appendTone(ctx context.Context, tone byte) {
	if pc.opts.DigitPattern != nil {
		pc.sequence += string(tone)
		if pc.opts.DigitPattern.MatchString(pc.sequence) {
			digits := pc.sequence
			if !pc.opts.IncludeEndInput {
				digits = stripTrailingKey(digits, pc.opts.EndInputKey)
			}
			pc.succeedWith(ctx, digits)
			return
		}
		pc.schedule(pc.opts.InterDigitTimer, timerInterDigit)
		return
	}

	if len(pc.sequence) < pc.opts.MaxDigits {
		pc.sequence += string(tone)
	}
	if len(pc.sequence) == pc.opts.MaxDigits {
		if pc.opts.ExtraDigitTimer > 0 {
			pc.schedule(pc.opts.ExtraDigitTimer, timerExtraDigit)
			return
		}
		pc.validate(ctx)
		return
	}
	pc.schedule(pc.opts.InterDigitTimer, timerInterDigit)
}

// onEndInput клавиша завершения в режиме счета цифр
func (pc *PlayCollect) onEndInput(ctx context.Context) {
	if len(pc.sequence) < pc.opts.MinDigits {
		pc.failAttempt(ctx, ResultTooFewDigits)
		return
	}
	digits := pc.sequence
	if pc.opts.IncludeEndInput {
		digits += string(pc.opts.EndInputKey)
	}
	pc.succeedWith(ctx, digits)
}

func (pc *PlayCollect) onTimer(ctx context.Context, kind timerKind) {
	pc.logger.Debug("сработал таймер", logging.String("timer", kind.String()),
		logging.String("state", pc.machine.Current()))
	switch kind {
	case timerFirstDigit:
		if pc.machine.Current() == statCollectingFirst {
			pc.failAttempt(ctx, ResultNoDigits)
		}
	case timerInterDigit, timerExtraDigit:
		if pc.machine.Current() == statCollectingSubsequent {
			pc.validate(ctx)
		}
	}
}

// validate проверка собранной последовательности
func (pc *PlayCollect) validate(ctx context.Context) {
	switch {
	case len(pc.sequence) == 0:
		pc.failAttempt(ctx, ResultNoDigits)
	case pc.opts.DigitPattern != nil:
		// Полное совпадение уже привело бы к успеху при наборе
		pc.failAttempt(ctx, ResultPatternNotMatched)
	case len(pc.sequence) < pc.opts.MinDigits:
		pc.failAttempt(ctx, ResultTooFewDigits)
	default:
		pc.succeedWith(ctx, pc.sequence)
	}
}

// failAttempt неуспех текущего раунда: повтор или окончательный отказ
func (pc *PlayCollect) failAttempt(ctx context.Context, code int) {
	if pc.attempts >= pc.opts.NumAttempts {
		pc.finishFailure(ctx, code)
		return
	}
	pc.attempts++
	pc.sequence = ""
	pc.stopTimer()

	playlist := pc.opts.Reprompt
	if code == ResultNoDigits {
		playlist = pc.opts.NoDigitsReprompt
	}
	pc.transition(ctx, evReprompt)
	if playlist.IsEmpty() {
		pc.enterCollecting(ctx)
		return
	}
	pc.playlist = playlist
	pc.playlist.Reset()
	pc.playNextSegment(ctx)
}

// restart клавиша rsk: сброс набора и повтор приглашения
func (pc *PlayCollect) restart(ctx context.Context) {
	if pc.attempts >= pc.opts.NumAttempts {
		pc.finishFailure(ctx, ResultNoDigits)
		return
	}
	pc.attempts++
	pc.sequence = ""
	pc.stopTimer()

	pc.transition(ctx, evReprompt)
	if pc.opts.InitialPrompt.IsEmpty() {
		pc.enterCollecting(ctx)
		return
	}
	pc.playlist = pc.opts.InitialPrompt
	pc.playlist.Reset()
	pc.playNextSegment(ctx)
}

// reinput клавиша rik: сброс набора, продолжение сбора
func (pc *PlayCollect) reinput(ctx context.Context) {
	pc.sequence = ""
	pc.transition(ctx, evReinput)
	pc.schedule(pc.opts.FirstDigitTimer, timerFirstDigit)
}

// --- Завершение ---

// succeedWith успех с указанной последовательностью
func (pc *PlayCollect) succeedWith(ctx context.Context, digits string) {
	pc.stopTimer()
	pc.result = pendingResult{success: true, code: ResultSuccess, digits: digits}
	pc.transition(ctx, evSucceed)
	if pc.opts.SuccessAnnouncement.IsEmpty() {
		pc.fireResult(ctx)
		return
	}
	pc.playlist = pc.opts.SuccessAnnouncement
	pc.playlist.Reset()
	pc.playNextSegment(ctx)
}

// finishFailure окончательный отказ
func (pc *PlayCollect) finishFailure(ctx context.Context, code int) {
	pc.stopTimer()
	pc.result = pendingResult{success: false, code: code}
	pc.transition(ctx, evFail)
	if pc.opts.FailureAnnouncement.IsEmpty() {
		pc.fireResult(ctx)
		return
	}
	pc.playlist = pc.opts.FailureAnnouncement
	pc.playlist.Reset()
	pc.playNextSegment(ctx)
}

// fireResult доставляет единственное событие завершения и освобождает ресурсы
func (pc *PlayCollect) fireResult(ctx context.Context) {
	pc.transition(ctx, evComplete)
	pc.release()

	if !pc.TryComplete() {
		return
	}
	params := map[string]string{
		returnAttempts: strconv.Itoa(pc.attempts),
	}
	if pc.result.success && pc.result.digits != "" {
		params[returnDigits] = pc.result.digits
	}
	var event signal.Event
	if pc.result.success {
		event = signal.NewOperationComplete(PackageName, SymbolPlayCollect, pc.result.code, params)
	} else {
		event = signal.NewOperationFailed(PackageName, SymbolPlayCollect, pc.result.code, params)
	}
	pc.logger.Info("сигнал завершен",
		logging.Int("rc", pc.result.code),
		logging.Int("attempts", pc.attempts),
		logging.Bool("success", pc.result.success))
	pc.NotifyEvent(pc, event)
}

// terminate отмена: TERMINAL без события завершения
func (pc *PlayCollect) terminate(ctx context.Context) {
	pc.transition(ctx, evCancel)
	pc.TryComplete()
	pc.release()
	pc.logger.Debug("сигнал отменен")
}

// release освобождает медиа ресурсы и таймер
func (pc *PlayCollect) release() {
	pc.stopTimer()
	pc.player.Stop()
	pc.detector.RemoveListener(pc)
	if err := pc.detector.Deactivate(); err != nil && !errors.Is(err, media.ErrDetectorInactive) {
		pc.logger.Warn("ошибка деактивации детектора", logging.Err(err))
	}
	pc.FinishExecution()
}

// --- Таймеры ---

// schedule планирует единственный логический таймер фазы;
// перепланирование отменяет предыдущий
func (pc *PlayCollect) schedule(d time.Duration, kind timerKind) {
	pc.stopTimer()
	pc.timerGen++
	gen := pc.timerGen
	pc.timer = time.AfterFunc(d, func() {
		pc.post(pcEvent{kind: pcTimer, gen: gen, timer: kind})
	})
}

func (pc *PlayCollect) stopTimer() {
	if pc.timer != nil {
		pc.timer.Stop()
		pc.timer = nil
	}
	pc.timerGen++
}
