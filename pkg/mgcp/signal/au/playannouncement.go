package au

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/media"
	"github.com/arzzra/mgcp_control/pkg/mgcp/signal"
)

// PlayAnnouncement сигнал AU/pa: проигрывает объявление из одного или
// нескольких сегментов it раз. Завершается OperationComplete(rc=100)
// после последнего сегмента либо OperationFailed при ошибке
// воспроизведения.
type PlayAnnouncement struct {
	*signal.Base

	logger   logging.Logger
	player   media.Player
	playlist *Playlist

	events   chan paEvent
	canceled atomic.Bool
}

type paEventKind int

const (
	paPlayerEnd paEventKind = iota
	paPlayerFailed
	paCancel
)

type paEvent struct {
	kind paEventKind
	err  error
}

// NewPlayAnnouncement создает сигнал по параметрам запроса
func NewPlayAnnouncement(player media.Player, parameters map[string]string, logger logging.Logger) (*PlayAnnouncement, error) {
	if player == nil {
		return nil, media.ErrNoResources
	}
	for name := range parameters {
		if !playAnnouncementVocabulary[Parameter(name)] {
			return nil, fmt.Errorf("%w: %s", signal.ErrUnknownParameter, name)
		}
	}

	iterations := 1
	if it := parameters[string(ParamIterations)]; it != "" {
		n, err := strconv.Atoi(it)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: it=%q", signal.ErrBadParameter, it)
		}
		iterations = n
	}
	playlist := ParsePlaylist(parameters[string(ParamAnnouncement)], iterations)
	if playlist.IsEmpty() {
		return nil, fmt.Errorf("%w: an обязателен", signal.ErrBadParameter)
	}

	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &PlayAnnouncement{
		Base:     signal.NewBase(PackageName, SymbolPlayAnnouncement, signal.TimeOut, parameters),
		logger:   logger.WithComponent("au.pa"),
		player:   player,
		playlist: playlist,
		events:   make(chan paEvent, 8),
	}, nil
}

// IsParameterSupported проверяет параметр по словарю сигнала
func (pa *PlayAnnouncement) IsParameterSupported(name string) bool {
	return playAnnouncementVocabulary[Parameter(name)]
}

// Execute запускает воспроизведение
func (pa *PlayAnnouncement) Execute() error {
	if err := pa.TryStart(); err != nil {
		return err
	}
	pa.player.SetListener(pa.onPlayerEvent)
	pa.playlist.Reset()
	go pa.run()
	return nil
}

// Cancel прерывает воспроизведение без события завершения
func (pa *PlayAnnouncement) Cancel() {
	if pa.canceled.Swap(true) {
		return
	}
	if !pa.IsExecuting() {
		pa.TryComplete()
		return
	}
	select {
	case pa.events <- paEvent{kind: paCancel}:
	default:
	}
}

func (pa *PlayAnnouncement) onPlayerEvent(event media.PlayerEvent) {
	switch event.Type {
	case media.PlayerEventEnd:
		pa.post(paEvent{kind: paPlayerEnd})
	case media.PlayerEventFailed:
		pa.post(paEvent{kind: paPlayerFailed, err: event.Err})
	}
}

func (pa *PlayAnnouncement) post(event paEvent) {
	select {
	case pa.events <- event:
	default:
	}
}

func (pa *PlayAnnouncement) run() {
	if !pa.playNext() {
		return
	}
	for event := range pa.events {
		if pa.canceled.Load() || event.kind == paCancel {
			pa.release()
			pa.TryComplete()
			return
		}
		switch event.kind {
		case paPlayerEnd:
			if !pa.playNext() {
				return
			}
		case paPlayerFailed:
			pa.finish(signal.NewOperationFailed(PackageName, SymbolPlayAnnouncement, ResultUnspecifiedError, nil))
			return
		}
	}
}

// playNext продолжает плейлист; false когда сигнал завершен
func (pa *PlayAnnouncement) playNext() bool {
	segment, ok := pa.playlist.Next()
	if !ok {
		pa.finish(signal.NewOperationComplete(PackageName, SymbolPlayAnnouncement, ResultSuccess, nil))
		return false
	}
	if err := pa.player.Play(segment); err != nil {
		pa.finish(signal.NewOperationFailed(PackageName, SymbolPlayAnnouncement, ResultUnspecifiedError, nil))
		return false
	}
	return true
}

func (pa *PlayAnnouncement) finish(event signal.Event) {
	pa.release()
	if !pa.TryComplete() {
		return
	}
	pa.logger.Info("объявление завершено", logging.Int("rc", event.Code()))
	pa.NotifyEvent(pa, event)
}

func (pa *PlayAnnouncement) release() {
	pa.player.Stop()
	pa.FinishExecution()
}
