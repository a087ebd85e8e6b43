package au

import (
	"sync"
	"time"

	"github.com/arzzra/mgcp_control/pkg/media"
	"github.com/arzzra/mgcp_control/pkg/mgcp/signal"
)

// mockPlayer проигрыватель для тестов: по умолчанию завершает сегмент
// синхронно внутри Play, что делает прохождение плейлистов мгновенным
// и детерминированным.
type mockPlayer struct {
	mu       sync.Mutex
	listener media.PlayerListener
	played   []string
	stopped  int
	failAll  bool
	manual   bool
}

func (p *mockPlayer) SetListener(listener media.PlayerListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = listener
}

func (p *mockPlayer) Play(segment string) error {
	p.mu.Lock()
	p.played = append(p.played, segment)
	listener := p.listener
	failAll := p.failAll
	manual := p.manual
	p.mu.Unlock()

	if manual || listener == nil {
		return nil
	}
	if failAll {
		listener(media.PlayerEvent{Type: media.PlayerEventFailed, Segment: segment, Err: media.ErrNoResources})
		return nil
	}
	listener(media.PlayerEvent{Type: media.PlayerEventEnd, Segment: segment})
	return nil
}

func (p *mockPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped++
}

func (p *mockPlayer) playedSegments() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

// mockDetector детектор для тестов с ручной подачей тонов
type mockDetector struct {
	mu        sync.Mutex
	active    bool
	flushed   int
	listeners []media.DTMFListener
}

func (d *mockDetector) Activate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return media.ErrDetectorActive
	}
	d.active = true
	return nil
}

func (d *mockDetector) Deactivate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return media.ErrDetectorInactive
	}
	d.active = false
	return nil
}

func (d *mockDetector) AddListener(listener media.DTMFListener) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, listener)
	return nil
}

func (d *mockDetector) RemoveListener(listener media.DTMFListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.listeners {
		if l == listener {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return
		}
	}
}

func (d *mockDetector) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushed++
}

func (d *mockDetector) isActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// emit подает тон всем слушателям
func (d *mockDetector) emit(tone byte) {
	digit, err := media.ParseDTMFDigit(tone)
	if err != nil {
		panic(err)
	}
	d.mu.Lock()
	listeners := append([]media.DTMFListener(nil), d.listeners...)
	d.mu.Unlock()
	for _, l := range listeners {
		l.Process(media.DTMFEvent{Digit: digit, Duration: 100 * time.Millisecond})
	}
}

// emitAll подает последовательность тонов
func (d *mockDetector) emitAll(tones string) {
	for i := 0; i < len(tones); i++ {
		d.emit(tones[i])
	}
}

// eventRecorder собирает события завершения сигналов
type eventRecorder struct {
	events chan signal.Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{events: make(chan signal.Event, 8)}
}

func (r *eventRecorder) OnSignalEvent(s signal.Signal, event signal.Event) {
	r.events <- event
}

// wait ожидает событие завершения с тайм-аутом
func (r *eventRecorder) wait(timeout time.Duration) (signal.Event, bool) {
	select {
	case event := <-r.events:
		return event, true
	case <-time.After(timeout):
		return nil, false
	}
}
