package endpoint

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
)

// ConnectionMode режим соединения согласно RFC 3435
type ConnectionMode string

const (
	ModeSendOnly ConnectionMode = "sendonly"
	ModeRecvOnly ConnectionMode = "recvonly"
	ModeSendRecv ConnectionMode = "sendrecv"
	ModeInactive ConnectionMode = "inactive"
	ModeLoopback ConnectionMode = "loopback"
)

// ParseConnectionMode разбирает значение параметра M:
func ParseConnectionMode(s string) (ConnectionMode, error) {
	switch mode := ConnectionMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ModeSendOnly, ModeRecvOnly, ModeSendRecv, ModeInactive, ModeLoopback:
		return mode, nil
	default:
		return "", fmt.Errorf("неизвестный режим соединения: %q", s)
	}
}

// Connection медиа соединение endpoint'а.
// Remote description приходит в теле CRCX/MDCX и валидируется как SDP;
// local description строится шлюзом и возвращается в ответе.
type Connection struct {
	ID     string
	CallID string
	Mode   ConnectionMode

	// LocalSDP сериализованное локальное описание сессии
	LocalSDP string
	// RemoteSDP сериализованное удаленное описание сессии
	RemoteSDP string

	remote *sdp.SessionDescription
}

// generateConnectionID генерирует уникальный hex идентификатор соединения
func generateConnectionID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand не отказывает на поддерживаемых платформах
		panic(err)
	}
	return strings.ToUpper(hex.EncodeToString(buf))
}

// SetRemoteDescription валидирует и сохраняет удаленное описание сессии
func (c *Connection) SetRemoteDescription(raw string) error {
	if strings.TrimSpace(raw) == "" {
		c.RemoteSDP = ""
		c.remote = nil
		return nil
	}
	parsed := &sdp.SessionDescription{}
	if err := parsed.UnmarshalString(raw); err != nil {
		return fmt.Errorf("некорректное remote описание сессии: %w", err)
	}
	c.RemoteSDP = raw
	c.remote = parsed
	return nil
}

// RemoteDescription разобранное удаленное описание (nil если не задано)
func (c *Connection) RemoteDescription() *sdp.SessionDescription {
	return c.remote
}

// buildLocalDescription строит локальное описание сессии для ответа CRCX
func buildLocalDescription(address string, port int, sessionID uint64) (string, error) {
	desc := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      sessionID,
			SessionVersion: sessionID,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: address,
		},
		SessionName: "-",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: address},
		},
		TimeDescriptions: []sdp.TimeDescription{{}},
		MediaDescriptions: []*sdp.MediaDescription{
			{
				MediaName: sdp.MediaName{
					Media:   "audio",
					Port:    sdp.RangedPort{Value: port},
					Protos:  []string{"RTP", "AVP"},
					Formats: []string{"0", "8", "101"},
				},
				Attributes: []sdp.Attribute{
					{Key: "rtpmap", Value: "0 PCMU/8000"},
					{Key: "rtpmap", Value: "8 PCMA/8000"},
					{Key: "rtpmap", Value: "101 telephone-event/8000"},
					{Key: "fmtp", Value: "101 0-15"},
				},
			},
		},
	}
	raw, err := desc.Marshal()
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации локального описания: %w", err)
	}
	return string(raw), nil
}
