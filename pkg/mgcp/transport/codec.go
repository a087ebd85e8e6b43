// Package transport реализует управляющий UDP канал MGCP и построчный
// кодек сообщений.
package transport

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
)

// Parser разбирает и сериализует MGCP сообщения.
// Контроллер работает со структурированными значениями; кодек —
// заменяемый коллаборатор транспорта.
type Parser interface {
	Parse(data []byte) (message.Message, error)
	Serialize(msg message.Message) ([]byte, error)
}

// protocolVersion версия протокола в стартовой строке
const protocolVersion = "MGCP 1.0"

// knownParameters допустимые коды параметров
var knownParameters = map[message.ParameterType]bool{
	message.ParameterCallID:              true,
	message.ParameterConnectionID:        true,
	message.ParameterNotifiedEntity:      true,
	message.ParameterRequestID:           true,
	message.ParameterLocalConnectionOpts: true,
	message.ParameterConnectionMode:      true,
	message.ParameterRequestedEvents:     true,
	message.ParameterSignalRequests:      true,
	message.ParameterObservedEvents:      true,
	message.ParameterReasonCode:          true,
	message.ParameterSpecificEndpointID:  true,
	message.ParameterSecondEndpointID:    true,
	message.ParameterSecondConnectionID:  true,
	message.ParameterRequestedInfo:       true,
	message.ParameterConnectionParams:    true,
	message.ParameterRestartMethod:       true,
	message.ParameterRestartDelay:        true,
}

// Codec построчный кодек MGCP сообщений (RFC 3435 §3)
type Codec struct{}

// NewCodec создает кодек
func NewCodec() *Codec { return &Codec{} }

// Parse разбирает датаграмму в запрос или ответ
func (c *Codec) Parse(data []byte) (message.Message, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	head, sdp, _ := strings.Cut(text, "\n\n")

	lines := strings.Split(head, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, fmt.Errorf("пустое сообщение")
	}

	startLine := strings.Fields(lines[0])
	if len(startLine) < 2 {
		return nil, fmt.Errorf("некорректная стартовая строка: %q", lines[0])
	}

	parameters, err := parseParameters(lines[1:])
	if err != nil {
		return nil, err
	}
	sdp = strings.TrimRight(sdp, "\n")
	if sdp != "" {
		sdp += "\n"
	}

	// Ответ начинается с числового кода
	if code, err := strconv.Atoi(startLine[0]); err == nil {
		txID, err := strconv.Atoi(startLine[1])
		if err != nil {
			return nil, fmt.Errorf("некорректный id транзакции: %q", startLine[1])
		}
		return &message.Response{
			Transaction: txID,
			Code:        code,
			Comment:     strings.Join(startLine[2:], " "),
			Parameters:  parameters,
			SDP:         sdp,
		}, nil
	}

	// Запрос: VERB txid endpoint MGCP 1.0
	if len(startLine) < 3 {
		return nil, fmt.Errorf("некорректная строка запроса: %q", lines[0])
	}
	verb, err := message.ParseVerb(startLine[0])
	if err != nil {
		return nil, err
	}
	txID, err := strconv.Atoi(startLine[1])
	if err != nil || txID <= 0 {
		return nil, fmt.Errorf("некорректный id транзакции: %q", startLine[1])
	}
	endpointID, err := message.ParseEndpointID(startLine[2])
	if err != nil {
		return nil, err
	}

	return &message.Request{
		Verb:        verb,
		Transaction: txID,
		Endpoint:    endpointID,
		Parameters:  parameters,
		SDP:         sdp,
	}, nil
}

func parseParameters(lines []string) (message.Parameters, error) {
	parameters := message.Parameters{}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("некорректная строка параметра: %q", line)
		}
		t := message.ParameterType(strings.ToUpper(strings.TrimSpace(key)))
		if !knownParameters[t] {
			return nil, fmt.Errorf("неизвестный параметр: %q", key)
		}
		parameters[t] = strings.TrimSpace(value)
	}
	return parameters, nil
}

// Serialize сериализует сообщение в датаграмму
func (c *Codec) Serialize(msg message.Message) ([]byte, error) {
	var sb strings.Builder

	var parameters message.Parameters
	var sdp string
	switch v := msg.(type) {
	case *message.Request:
		fmt.Fprintf(&sb, "%s %d %s %s\n", v.Verb, v.Transaction, v.Endpoint, protocolVersion)
		parameters, sdp = v.Parameters, v.SDP
	case *message.Response:
		if v.Comment != "" {
			fmt.Fprintf(&sb, "%d %d %s\n", v.Code, v.Transaction, v.Comment)
		} else {
			fmt.Fprintf(&sb, "%d %d\n", v.Code, v.Transaction)
		}
		parameters, sdp = v.Parameters, v.SDP
	default:
		return nil, fmt.Errorf("неизвестный тип сообщения: %T", msg)
	}

	keys := make([]string, 0, len(parameters))
	for k := range parameters {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %s\n", k, parameters[message.ParameterType(k)])
	}

	if sdp != "" {
		sb.WriteByte('\n')
		sb.WriteString(sdp)
	}
	return []byte(sb.String()), nil
}
