package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/media"
	"github.com/arzzra/mgcp_control/pkg/mgcp/endpoint"
	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
	"github.com/arzzra/mgcp_control/pkg/mgcp/signal"
	"github.com/arzzra/mgcp_control/pkg/mgcp/signal/au"
)

const testSDP = `v=0
o=- 1 1 IN IP4 127.0.0.1
s=-
c=IN IP4 127.0.0.1
t=0 0
m=audio 4000 RTP/AVP 0 101
a=rtpmap:0 PCMU/8000
`

func newTestProvider(t *testing.T) (*BaseProvider, *endpoint.Registry) {
	t.Helper()
	registry := endpoint.NewRegistry("mgw.local", "127.0.0.1", logging.NoOpLogger{})
	factory := func() (*media.Group, error) {
		return &media.Group{
			Player:   media.NewTimedPlayer(10 * time.Millisecond),
			Detector: media.NewRTPDetector(media.DefaultDTMFPayloadType),
		}, nil
	}
	require.NoError(t, registry.Install("aaln", 2, 16384, factory))

	signals := signal.NewRegistry(au.NewProvider(logging.NoOpLogger{}))
	return NewProvider(registry, signals, logging.NoOpLogger{}), registry
}

func execute(t *testing.T, provider *BaseProvider, request *message.Request) *Result {
	t.Helper()
	cmd, err := provider.Provide(request)
	require.NoError(t, err)
	result := Call(cmd, logging.NoOpLogger{})
	require.NotNil(t, result)
	return result
}

func request(verb message.Verb, tx int, local string, params message.Parameters) *message.Request {
	if params == nil {
		params = message.Parameters{}
	}
	return &message.Request{
		Verb:        verb,
		Transaction: tx,
		Endpoint:    message.EndpointID{Local: local, Domain: "mgw.local"},
		Parameters:  params,
	}
}

func TestCreateConnectionHappyPath(t *testing.T) {
	provider, _ := newTestProvider(t)

	req := request(message.VerbCreateConnection, 1, "aaln/1", message.Parameters{
		message.ParameterCallID:         "call-1",
		message.ParameterConnectionMode: "recvonly",
	})
	req.SDP = testSDP

	result := execute(t, provider, req)
	assert.Equal(t, message.CodeConnectionCreated, result.Code)
	assert.NotEmpty(t, result.Parameters[message.ParameterConnectionID])
	assert.NotEmpty(t, result.SDP, "ответ несет local description")
}

func TestCreateConnectionAnyWildcardEchoesEndpoint(t *testing.T) {
	provider, _ := newTestProvider(t)

	req := request(message.VerbCreateConnection, 2, "$", message.Parameters{
		message.ParameterCallID: "call-1",
	})

	result := execute(t, provider, req)
	assert.Equal(t, message.CodeConnectionCreated, result.Code)
	assert.Equal(t, "aaln/1@mgw.local", result.Parameters[message.ParameterSpecificEndpointID])
}

func TestCreateConnectionMissingCallID(t *testing.T) {
	provider, _ := newTestProvider(t)

	result := execute(t, provider, request(message.VerbCreateConnection, 3, "aaln/1", nil))
	assert.Equal(t, message.CodeProtocolError, result.Code)
}

func TestCreateConnectionUnknownEndpoint(t *testing.T) {
	provider, _ := newTestProvider(t)

	req := request(message.VerbCreateConnection, 4, "aaln/99", message.Parameters{
		message.ParameterCallID: "call-1",
	})
	result := execute(t, provider, req)
	assert.Equal(t, message.CodeEndpointUnknown, result.Code)
}

func TestModifyAndAuditConnection(t *testing.T) {
	provider, registry := newTestProvider(t)

	created := execute(t, provider, func() *message.Request {
		r := request(message.VerbCreateConnection, 5, "aaln/1", message.Parameters{
			message.ParameterCallID: "call-1",
		})
		return r
	}())
	connID := created.Parameters[message.ParameterConnectionID]

	modify := request(message.VerbModifyConnection, 6, "aaln/1", message.Parameters{
		message.ParameterCallID:         "call-1",
		message.ParameterConnectionID:   connID,
		message.ParameterConnectionMode: "inactive",
	})
	result := execute(t, provider, modify)
	assert.Equal(t, message.CodeTransactionExecuted, result.Code)

	ep, err := registry.Lookup(message.EndpointID{Local: "aaln/1", Domain: "mgw.local"})
	require.NoError(t, err)
	conn, err := ep.Connection(connID)
	require.NoError(t, err)
	assert.Equal(t, endpoint.ModeInactive, conn.Mode)

	audit := request(message.VerbAuditConnection, 7, "aaln/1", message.Parameters{
		message.ParameterConnectionID: connID,
	})
	result = execute(t, provider, audit)
	assert.Equal(t, message.CodeTransactionExecuted, result.Code)
	assert.Equal(t, "call-1", result.Parameters[message.ParameterCallID])
	assert.Equal(t, "inactive", result.Parameters[message.ParameterConnectionMode])
}

func TestDeleteConnectionByCall(t *testing.T) {
	provider, _ := newTestProvider(t)

	for tx := 10; tx < 12; tx++ {
		execute(t, provider, request(message.VerbCreateConnection, tx, "aaln/1", message.Parameters{
			message.ParameterCallID: "call-9",
		}))
	}

	result := execute(t, provider, request(message.VerbDeleteConnection, 12, "aaln/1", message.Parameters{
		message.ParameterCallID: "call-9",
	}))
	assert.Equal(t, message.CodeConnectionDeleted, result.Code)
	assert.Equal(t, "ND=2", result.Parameters[message.ParameterConnectionParams])
}

func TestDeleteConnectionWildcardAll(t *testing.T) {
	provider, _ := newTestProvider(t)

	execute(t, provider, request(message.VerbCreateConnection, 13, "aaln/1", message.Parameters{
		message.ParameterCallID: "call-1",
	}))
	execute(t, provider, request(message.VerbCreateConnection, 14, "aaln/2", message.Parameters{
		message.ParameterCallID: "call-1",
	}))

	result := execute(t, provider, request(message.VerbDeleteConnection, 15, "*", message.Parameters{
		message.ParameterCallID: "call-1",
	}))
	assert.Equal(t, message.CodeConnectionDeleted, result.Code)
	assert.Equal(t, "ND=2", result.Parameters[message.ParameterConnectionParams])
}

func TestRequestNotificationActivatesSignal(t *testing.T) {
	provider, registry := newTestProvider(t)

	req := request(message.VerbRequestNotification, 20, "aaln/1", message.Parameters{
		message.ParameterRequestID:      "17",
		message.ParameterSignalRequests: "AU/pc(mn=3 mx=3)",
	})
	result := execute(t, provider, req)
	assert.Equal(t, message.CodeTransactionExecuted, result.Code)

	ep, err := registry.Lookup(message.EndpointID{Local: "aaln/1", Domain: "mgw.local"})
	require.NoError(t, err)
	assert.False(t, ep.IsIdle(), "сигнал исполняется")

	// Второй TIME_OUT сигнал на занятом endpoint'е отклоняется 528
	second := request(message.VerbRequestNotification, 21, "aaln/1", message.Parameters{
		message.ParameterRequestID:      "18",
		message.ParameterSignalRequests: "AU/pa(an=a.wav)",
	})
	result = execute(t, provider, second)
	assert.Equal(t, message.CodeSignalBusy, result.Code)

	// Пустой S: отменяет активные сигналы
	cancel := request(message.VerbRequestNotification, 22, "aaln/1", message.Parameters{
		message.ParameterRequestID: "19",
	})
	result = execute(t, provider, cancel)
	assert.Equal(t, message.CodeTransactionExecuted, result.Code)
	assert.True(t, ep.IsIdle())
}

func TestRequestNotificationUnknownPackage(t *testing.T) {
	provider, _ := newTestProvider(t)

	req := request(message.VerbRequestNotification, 23, "aaln/1", message.Parameters{
		message.ParameterRequestID:      "17",
		message.ParameterSignalRequests: "XX/pc(mn=1)",
	})
	result := execute(t, provider, req)
	assert.Equal(t, message.CodeUnknownExtension, result.Code)
}

func TestRequestNotificationUnknownSignal(t *testing.T) {
	provider, _ := newTestProvider(t)

	req := request(message.VerbRequestNotification, 24, "aaln/1", message.Parameters{
		message.ParameterRequestID:      "17",
		message.ParameterSignalRequests: "AU/zz",
	})
	result := execute(t, provider, req)
	assert.Equal(t, message.CodeNoSuchEventSignal, result.Code)
}

func TestRequestNotificationUnknownParameter(t *testing.T) {
	provider, _ := newTestProvider(t)

	req := request(message.VerbRequestNotification, 25, "aaln/1", message.Parameters{
		message.ParameterRequestID:      "17",
		message.ParameterSignalRequests: "AU/pc(qq=1)",
	})
	result := execute(t, provider, req)
	assert.Equal(t, message.CodeUnknownParameter, result.Code)
}

func TestRequestNotificationMissingRequestID(t *testing.T) {
	provider, _ := newTestProvider(t)

	req := request(message.VerbRequestNotification, 26, "aaln/1", message.Parameters{
		message.ParameterSignalRequests: "AU/pc(mn=1)",
	})
	result := execute(t, provider, req)
	assert.Equal(t, message.CodeProtocolError, result.Code)
}

func TestAuditEndpointWildcard(t *testing.T) {
	provider, _ := newTestProvider(t)

	result := execute(t, provider, request(message.VerbAuditEndpoint, 30, "*", nil))
	assert.Equal(t, message.CodeTransactionExecuted, result.Code)
	assert.Equal(t, "aaln/1@mgw.local,aaln/2@mgw.local",
		result.Parameters[message.ParameterSpecificEndpointID])
}

func TestProvideRejectsInboundNotify(t *testing.T) {
	provider, _ := newTestProvider(t)

	_, err := provider.Provide(request(message.VerbNotify, 31, "aaln/1", nil))
	require.Error(t, err)
	cmdErr := WrapError(err)
	assert.Equal(t, message.CodeUnsupportedFeature, cmdErr.Code)
}
