package media

import (
	"strings"
	"sync"
	"time"
)

// TimedPlayer реализует Player без декодирования аудио: каждый сегмент
// "воспроизводится" фиксированное время, после чего слушателю доставляется
// PlayerEventEnd. Используется шлюзами без подключенного медиа движка и
// в функциональных тестах; сегменты с пустым URI завершаются ошибкой.
type TimedPlayer struct {
	segmentDuration time.Duration

	mu       sync.Mutex
	listener PlayerListener
	timer    *time.Timer
	playing  bool
	gen      int
}

// NewTimedPlayer создает проигрыватель с указанной длительностью сегмента
func NewTimedPlayer(segmentDuration time.Duration) *TimedPlayer {
	if segmentDuration <= 0 {
		segmentDuration = 100 * time.Millisecond
	}
	return &TimedPlayer{segmentDuration: segmentDuration}
}

// SetListener устанавливает получателя событий воспроизведения
func (p *TimedPlayer) SetListener(listener PlayerListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = listener
}

// Play запускает воспроизведение сегмента
func (p *TimedPlayer) Play(segment string) error {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return ErrPlayerBusy
	}
	p.playing = true
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	if strings.TrimSpace(segment) == "" {
		p.finish(gen, PlayerEvent{Type: PlayerEventFailed, Segment: segment, Err: ErrNoResources})
		return nil
	}

	p.mu.Lock()
	p.timer = time.AfterFunc(p.segmentDuration, func() {
		p.finish(gen, PlayerEvent{Type: PlayerEventEnd, Segment: segment})
	})
	p.mu.Unlock()
	return nil
}

// Stop прерывает текущее воспроизведение без события завершения
func (p *TimedPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.playing = false
	p.gen++
}

// finish доставляет событие завершения, если воспроизведение не было прервано
func (p *TimedPlayer) finish(gen int, event PlayerEvent) {
	p.mu.Lock()
	if gen != p.gen || !p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = false
	p.timer = nil
	listener := p.listener
	p.mu.Unlock()

	if listener != nil {
		listener(event)
	}
}
