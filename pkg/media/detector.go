package media

import (
	"sync"
	"time"

	"github.com/pion/rtp"
)

// DefaultDTMFPayloadType payload type для telephone-event согласно
// общепринятой динамической нумерации
const DefaultDTMFPayloadType = 101

// detectorBufferLimit ограничивает буфер тонов, накопленных без слушателей
const detectorBufferLimit = 64

// RTPDetector реализует DTMFDetector поверх RTP потока с telephone-event
// payload (RFC 4733). Пакеты подаются через ProcessPacket владельцем
// транспорта; детектор выделяет начала событий и раздает их слушателям.
//
// Пока детектор не активирован, обнаруженные тоны складываются во
// внутренний буфер. При активации буфер проигрывается слушателям,
// если не был очищен через Flush.
type RTPDetector struct {
	payloadType uint8

	mu        sync.RWMutex
	active    bool
	listeners []DTMFListener
	buffer    []DTMFEvent

	// Состояние текущего RTP события
	lastDigit   DTMFDigit
	eventActive bool
}

// NewRTPDetector создает детектор для указанного payload type
func NewRTPDetector(payloadType uint8) *RTPDetector {
	if payloadType == 0 {
		payloadType = DefaultDTMFPayloadType
	}
	return &RTPDetector{payloadType: payloadType}
}

// Activate включает доставку событий слушателям.
// Тоны из внутреннего буфера доставляются первыми, в порядке обнаружения.
func (d *RTPDetector) Activate() error {
	d.mu.Lock()
	if d.active {
		d.mu.Unlock()
		return ErrDetectorActive
	}
	d.active = true
	buffered := d.buffer
	d.buffer = nil
	listeners := append([]DTMFListener(nil), d.listeners...)
	d.mu.Unlock()

	for _, ev := range buffered {
		for _, l := range listeners {
			l.Process(ev)
		}
	}
	return nil
}

// Deactivate выключает доставку событий
func (d *RTPDetector) Deactivate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return ErrDetectorInactive
	}
	d.active = false
	return nil
}

// AddListener регистрирует слушателя. Повторная регистрация игнорируется.
func (d *RTPDetector) AddListener(listener DTMFListener) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.listeners {
		if l == listener {
			return nil
		}
	}
	d.listeners = append(d.listeners, listener)
	return nil
}

// RemoveListener снимает регистрацию слушателя
func (d *RTPDetector) RemoveListener(listener DTMFListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.listeners {
		if l == listener {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return
		}
	}
}

// Flush очищает буфер тонов, накопленных до активации
func (d *RTPDetector) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffer = nil
}

// ProcessPacket обрабатывает входящий RTP пакет на предмет DTMF.
// Возвращает true если пакет принадлежал telephone-event потоку.
func (d *RTPDetector) ProcessPacket(packet *rtp.Packet) (bool, error) {
	if packet.PayloadType != d.payloadType {
		return false, nil
	}

	payload, err := deserializeDTMFPayload(packet.Payload)
	if err != nil {
		return false, err
	}

	event := DTMFEvent{
		Digit:     DTMFDigit(payload.Event),
		Duration:  time.Duration(payload.Duration) * time.Second / 8000,
		Volume:    -int8(payload.Volume),
		Timestamp: packet.Timestamp,
	}

	if payload.EndFlag {
		d.mu.Lock()
		d.eventActive = false
		d.mu.Unlock()
		return true, nil
	}

	d.mu.Lock()
	if d.eventActive && d.lastDigit == event.Digit {
		// Продолжение уже доставленного события
		d.mu.Unlock()
		return true, nil
	}
	d.eventActive = true
	d.lastDigit = event.Digit

	if !d.active {
		if len(d.buffer) < detectorBufferLimit {
			d.buffer = append(d.buffer, event)
		}
		d.mu.Unlock()
		return true, nil
	}
	listeners := append([]DTMFListener(nil), d.listeners...)
	d.mu.Unlock()

	// Событие доставляется немедленно по первому пакету тона
	for _, l := range listeners {
		l.Process(event)
	}
	return true, nil
}
