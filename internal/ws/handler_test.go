package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-core/internal/mocks"
	"messaging-core/internal/models"
	"messaging-core/internal/repositories"
)

type handlerFixture struct {
	hub      *Hub
	verifier *mocks.VerifierMock
	convRepo *mocks.ConversationRepositoryMock
	msgRepo  *mocks.MessageRepositoryMock
	userRepo *mocks.UserRepositoryMock
	handler  *Handler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		hub:      NewHub(),
		verifier: new(mocks.VerifierMock),
		convRepo: new(mocks.ConversationRepositoryMock),
		msgRepo:  new(mocks.MessageRepositoryMock),
		userRepo: new(mocks.UserRepositoryMock),
	}
	f.handler = NewHandler(f.hub, f.verifier, f.convRepo, f.msgRepo, f.userRepo, nil, Options{})
	return f
}

func requireErrorFrame(t *testing.T, client *Client, code string) {
	t.Helper()
	event, data := nextFrame(t, client)
	require.Equal(t, models.EventError, event)
	require.Equal(t, code, data["code"])
}

func TestSendMessageBroadcastsToConversation(t *testing.T) {
	f := newHandlerFixture(t)
	alice := testClient(1)
	bob := testClient(2)
	f.hub.Join(ConversationRoom(3), alice)
	f.hub.Join(ConversationRoom(3), bob)

	stored := models.Message{ID: 9, ConversationID: 3, SenderID: 1, Content: "hi"}
	f.convRepo.On("IsMember", mock.Anything, 1, 3).Return(true, nil).Once()
	f.msgRepo.On("CreateWithReceipts", mock.Anything, 3, 1, "hi", mock.Anything).Return(stored, nil).Once()
	f.userRepo.On("GetProfile", mock.Anything, 1).Return(models.UserProfile{ID: 1, Username: "alice"}, nil).Once()

	f.handler.dispatch(alice, []byte(`{"event":"message:send","data":{"conversation_id":3,"content":"hi"}}`))

	for _, client := range []*Client{alice, bob} {
		event, data := nextFrame(t, client)
		require.Equal(t, models.EventMessageNew, event)
		require.EqualValues(t, 9, data["id"])
		require.Equal(t, "hi", data["content"])
		sender := data["sender"].(map[string]any)
		require.Equal(t, "alice", sender["username"])
	}

	f.convRepo.AssertExpectations(t)
	f.msgRepo.AssertExpectations(t)
	f.userRepo.AssertExpectations(t)
}

func TestSendMessageTrimsContent(t *testing.T) {
	f := newHandlerFixture(t)
	alice := testClient(1)

	f.convRepo.On("IsMember", mock.Anything, 1, 3).Return(true, nil).Once()
	f.msgRepo.On("CreateWithReceipts", mock.Anything, 3, 1, "hi", mock.Anything).
		Return(models.Message{ID: 1, ConversationID: 3, SenderID: 1, Content: "hi"}, nil).Once()
	f.userRepo.On("GetProfile", mock.Anything, 1).Return(models.UserProfile{ID: 1}, nil).Once()

	f.handler.dispatch(alice, []byte(`{"event":"message:send","data":{"conversation_id":3,"content":"  hi  "}}`))

	f.msgRepo.AssertExpectations(t)
}

func TestSendMessageNotMemberHasNoSideEffects(t *testing.T) {
	f := newHandlerFixture(t)
	charlie := testClient(3)
	bob := testClient(2)
	f.hub.Join(ConversationRoom(1), bob)

	f.convRepo.On("IsMember", mock.Anything, 3, 1).Return(false, nil).Once()

	f.handler.dispatch(charlie, []byte(`{"event":"message:send","data":{"conversation_id":1,"content":"hi"}}`))

	requireErrorFrame(t, charlie, models.CodeNotMember)
	requireNoFrame(t, bob)
	f.msgRepo.AssertNotCalled(t, "CreateWithReceipts", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageEmptyContent(t *testing.T) {
	f := newHandlerFixture(t)
	alice := testClient(1)

	f.handler.dispatch(alice, []byte(`{"event":"message:send","data":{"conversation_id":3,"content":"   "}}`))

	requireErrorFrame(t, alice, models.CodeEmptyMessage)
	f.convRepo.AssertNotCalled(t, "IsMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageNullAttachmentIsEmpty(t *testing.T) {
	f := newHandlerFixture(t)
	alice := testClient(1)

	f.handler.dispatch(alice, []byte(`{"event":"message:send","data":{"conversation_id":3,"content":"","attachment":null}}`))

	requireErrorFrame(t, alice, models.CodeEmptyMessage)
	f.convRepo.AssertNotCalled(t, "IsMember", mock.Anything, mock.Anything, mock.Anything)
	f.msgRepo.AssertNotCalled(t, "CreateWithReceipts", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageNullAttachmentPersistedAsAbsent(t *testing.T) {
	f := newHandlerFixture(t)
	alice := testClient(1)

	f.convRepo.On("IsMember", mock.Anything, 1, 3).Return(true, nil).Once()
	f.msgRepo.On("CreateWithReceipts", mock.Anything, 3, 1, "hi", mock.MatchedBy(func(attachment json.RawMessage) bool {
		return attachment == nil
	})).Return(models.Message{ID: 5, ConversationID: 3, SenderID: 1, Content: "hi"}, nil).Once()
	f.userRepo.On("GetProfile", mock.Anything, 1).Return(models.UserProfile{ID: 1}, nil).Once()

	f.handler.dispatch(alice, []byte(`{"event":"message:send","data":{"conversation_id":3,"content":"hi","attachment":null}}`))

	f.msgRepo.AssertExpectations(t)
}

func TestSendMessageAttachmentOnlyIsAllowed(t *testing.T) {
	f := newHandlerFixture(t)
	alice := testClient(1)

	f.convRepo.On("IsMember", mock.Anything, 1, 3).Return(true, nil).Once()
	f.msgRepo.On("CreateWithReceipts", mock.Anything, 3, 1, "", mock.Anything).
		Return(models.Message{ID: 2, ConversationID: 3, SenderID: 1}, nil).Once()
	f.userRepo.On("GetProfile", mock.Anything, 1).Return(models.UserProfile{ID: 1}, nil).Once()

	f.handler.dispatch(alice, []byte(`{"event":"message:send","data":{"conversation_id":3,"content":"","attachment":{"kind":"image"}}}`))

	f.msgRepo.AssertExpectations(t)
}

func TestSendMessagePersistFailureBroadcastsNothing(t *testing.T) {
	f := newHandlerFixture(t)
	alice := testClient(1)
	bob := testClient(2)
	f.hub.Join(ConversationRoom(3), alice)
	f.hub.Join(ConversationRoom(3), bob)

	f.convRepo.On("IsMember", mock.Anything, 1, 3).Return(true, nil).Once()
	f.msgRepo.On("CreateWithReceipts", mock.Anything, 3, 1, "hi", mock.Anything).
		Return(models.Message{}, assert.AnError).Once()

	f.handler.dispatch(alice, []byte(`{"event":"message:send","data":{"conversation_id":3,"content":"hi"}}`))

	requireErrorFrame(t, alice, models.CodePersistenceFailed)
	requireNoFrame(t, bob)
}

func TestMarkReadNotifiesSenderRoomOnly(t *testing.T) {
	f := newHandlerFixture(t)
	bob := testClient(2)
	aliceDesk := testClient(1)
	f.hub.Join(UserRoom(1), aliceDesk)
	f.hub.Join(UserRoom(2), bob)

	f.msgRepo.On("FindForMember", mock.Anything, 9, 2).
		Return(models.Message{ID: 9, ConversationID: 3, SenderID: 1}, nil).Once()
	f.msgRepo.On("MarkReceiptRead", mock.Anything, 9, 2).Return(true, nil).Once()

	f.handler.dispatch(bob, []byte(`{"event":"message:read","data":{"message_id":9}}`))

	event, data := nextFrame(t, aliceDesk)
	require.Equal(t, models.EventMessageRead, event)
	require.EqualValues(t, 9, data["message_id"])
	require.EqualValues(t, 2, data["user_id"])
	require.NotEmpty(t, data["timestamp"])

	requireNoFrame(t, bob)
}

func TestMarkReadIdempotent(t *testing.T) {
	f := newHandlerFixture(t)
	bob := testClient(2)
	alice := testClient(1)
	f.hub.Join(UserRoom(1), alice)

	f.msgRepo.On("FindForMember", mock.Anything, 9, 2).
		Return(models.Message{ID: 9, ConversationID: 3, SenderID: 1}, nil).Once()
	f.msgRepo.On("MarkReceiptRead", mock.Anything, 9, 2).Return(false, nil).Once()

	f.handler.dispatch(bob, []byte(`{"event":"message:read","data":{"message_id":9}}`))

	requireNoFrame(t, alice)
	requireNoFrame(t, bob)
}

func TestMarkReadOwnMessageEmitsNothing(t *testing.T) {
	f := newHandlerFixture(t)
	alice := testClient(1)
	f.hub.Join(UserRoom(1), alice)

	f.msgRepo.On("FindForMember", mock.Anything, 9, 1).
		Return(models.Message{ID: 9, ConversationID: 3, SenderID: 1}, nil).Once()
	f.msgRepo.On("MarkReceiptRead", mock.Anything, 9, 1).Return(true, nil).Once()

	f.handler.dispatch(alice, []byte(`{"event":"message:read","data":{"message_id":9}}`))

	requireNoFrame(t, alice)
}

func TestMarkReadUnknownMessage(t *testing.T) {
	f := newHandlerFixture(t)
	bob := testClient(2)

	f.msgRepo.On("FindForMember", mock.Anything, 404, 2).
		Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	f.handler.dispatch(bob, []byte(`{"event":"message:read","data":{"message_id":404}}`))

	requireErrorFrame(t, bob, models.CodeMessageNotFound)
	f.msgRepo.AssertNotCalled(t, "MarkReceiptRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestJoinConversationAuthorized(t *testing.T) {
	f := newHandlerFixture(t)
	alice := testClient(1)

	f.convRepo.On("IsMember", mock.Anything, 1, 4).Return(true, nil).Once()

	f.handler.dispatch(alice, []byte(`{"event":"join:conversation","data":{"conversation_id":4}}`))

	require.True(t, f.hub.InRoom(ConversationRoom(4), alice))
	event, data := nextFrame(t, alice)
	require.Equal(t, models.EventConversationJoined, event)
	require.EqualValues(t, 4, data["conversation_id"])
}

func TestJoinConversationDenied(t *testing.T) {
	f := newHandlerFixture(t)
	alice := testClient(1)

	f.convRepo.On("IsMember", mock.Anything, 1, 4).Return(false, nil).Once()

	f.handler.dispatch(alice, []byte(`{"event":"join:conversation","data":{"conversation_id":4}}`))

	require.False(t, f.hub.InRoom(ConversationRoom(4), alice))
	requireErrorFrame(t, alice, models.CodeNotMember)
}

func TestLeaveConversationNeedsNoAuthorization(t *testing.T) {
	f := newHandlerFixture(t)
	alice := testClient(1)
	f.hub.Join(ConversationRoom(4), alice)

	f.handler.dispatch(alice, []byte(`{"event":"leave:conversation","data":{"conversation_id":4}}`))

	require.False(t, f.hub.InRoom(ConversationRoom(4), alice))
	requireNoFrame(t, alice)
	f.convRepo.AssertNotCalled(t, "IsMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchMalformedFrame(t *testing.T) {
	f := newHandlerFixture(t)
	alice := testClient(1)

	f.handler.dispatch(alice, []byte(`not json`))
	requireErrorFrame(t, alice, models.CodeBadPayload)

	f.handler.dispatch(alice, []byte(`{"event":"message:unknown","data":{}}`))
	requireErrorFrame(t, alice, models.CodeBadPayload)
}

func TestDispatchRateLimited(t *testing.T) {
	f := newHandlerFixture(t)
	alice := newClient(1, nil, 8, 0.001, 1, "")

	f.convRepo.On("IsMember", mock.Anything, 1, 4).Return(true, nil).Once()

	f.handler.dispatch(alice, []byte(`{"event":"join:conversation","data":{"conversation_id":4}}`))
	event, _ := nextFrame(t, alice)
	require.Equal(t, models.EventConversationJoined, event)

	f.handler.dispatch(alice, []byte(`{"event":"join:conversation","data":{"conversation_id":4}}`))
	requireErrorFrame(t, alice, models.CodeRateLimited)
}

func TestDispatchAuthorizerFailure(t *testing.T) {
	f := newHandlerFixture(t)
	alice := testClient(1)

	f.convRepo.On("IsMember", mock.Anything, 1, 3).Return(false, assert.AnError).Once()

	f.handler.dispatch(alice, []byte(`{"event":"message:send","data":{"conversation_id":3,"content":"hi"}}`))

	requireErrorFrame(t, alice, models.CodePersistenceFailed)
}
