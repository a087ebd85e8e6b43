package message

// ParameterType тип параметра MGCP сообщения.
// Значением служит однобуквенный (или двухбуквенный) код из RFC 3435.
type ParameterType string

const (
	ParameterCallID              ParameterType = "C"
	ParameterConnectionID        ParameterType = "I"
	ParameterNotifiedEntity      ParameterType = "N"
	ParameterRequestID           ParameterType = "X"
	ParameterLocalConnectionOpts ParameterType = "L"
	ParameterConnectionMode      ParameterType = "M"
	ParameterRequestedEvents     ParameterType = "R"
	ParameterSignalRequests      ParameterType = "S"
	ParameterObservedEvents      ParameterType = "O"
	ParameterReasonCode          ParameterType = "E"
	ParameterSpecificEndpointID  ParameterType = "Z"
	ParameterSecondEndpointID    ParameterType = "Z2"
	ParameterSecondConnectionID  ParameterType = "I2"
	ParameterRequestedInfo       ParameterType = "F"
	ParameterConnectionParams    ParameterType = "P"
	ParameterRestartMethod       ParameterType = "RM"
	ParameterRestartDelay        ParameterType = "RD"
)

// Parameters карта параметров сообщения
type Parameters map[ParameterType]string

// Get возвращает значение параметра и признак его присутствия
func (p Parameters) Get(t ParameterType) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p[t]
	return v, ok
}

// GetOr возвращает значение параметра или значение по умолчанию
func (p Parameters) GetOr(t ParameterType, def string) string {
	if v, ok := p.Get(t); ok {
		return v
	}
	return def
}

// Clone возвращает независимую копию
func (p Parameters) Clone() Parameters {
	if p == nil {
		return nil
	}
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
