package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-core/internal/mocks"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.AuditPublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.messaging", "messaging-core", "test")

	publisher.On("Publish", mock.Anything, "audit.messaging", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(AuditEnvelope)
		return ok &&
			envelope.EventType == "audit_log" &&
			envelope.Payload.Code == "NOT_MEMBER" &&
			envelope.UserID != nil && *envelope.UserID == 7
	})).Return(nil).Once()

	userID := 7
	emitter.Emit(context.Background(), "WARN", "NOT_MEMBER", "operation denied", "req-1", &userID)

	publisher.AssertExpectations(t)
}

func TestEmitNilEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "TEST", "noop", "", nil)
	})
}
