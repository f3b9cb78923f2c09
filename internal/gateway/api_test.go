// ABOUTME: Tests for the HTTP API handlers
// ABOUTME: Exercises the full route table with JWT auth against the in-memory store

package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jashwant-jaladi/pixelpals-chat/internal/auth"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/conversation"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/media"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/presence"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/registry"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/store"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/typing"
)

const testSecret = "test-secret"

type testGateway struct {
	handler  http.Handler
	store    *store.MockStore
	registry *registry.Registry
	verifier *auth.JWTVerifier
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	st := store.NewMockStore()
	reg := registry.New(nil)
	pres := presence.NewBroadcaster(reg, nil)
	typ := typing.NewCoordinator(reg, 0, nil)
	resolver, err := media.NewDirResolver(t.TempDir(), nil)
	require.NoError(t, err)
	svc := conversation.New(st, reg, resolver, nil)
	verifier := auth.NewJWTVerifier([]byte(testSecret))

	g := New(":0", svc, reg, pres, typ, verifier, nil)
	return &testGateway{
		handler:  g.Routes(),
		store:    st,
		registry: reg,
		verifier: verifier,
	}
}

func (tg *testGateway) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := tg.verifier.Generate(userID, time.Hour)
	require.NoError(t, err)
	return token
}

func (tg *testGateway) request(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+tg.tokenFor(t, userID))
	}
	rec := httptest.NewRecorder()
	tg.handler.ServeHTTP(rec, req)
	return rec
}

func TestGateway_Healthz(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateway_AuthRequired(t *testing.T) {
	tg := newTestGateway(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/messages"},
		{http.MethodGet, "/api/conversations"},
		{http.MethodGet, "/api/conversations/c1/messages"},
		{http.MethodPost, "/api/messages/m1/seen"},
		{http.MethodPost, "/api/conversations/c1/seen"},
		{http.MethodGet, "/api/presence"},
	}

	for _, p := range paths {
		rec := tg.request(t, p.method, p.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestGateway_SendMessage(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodPost, "/api/messages", "alice", SendMessageRequest{
		RecipientID: "bob",
		Text:        "hello",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var view conversation.MessageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "alice", view.SenderID)
	assert.Equal(t, "bob", view.RecipientID)
	assert.Equal(t, "hello", view.Text)
	assert.False(t, view.Seen)

	assert.Equal(t, 1, tg.store.MessageCount())
}

func TestGateway_SendImageMessage(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodPost, "/api/messages", "alice", SendMessageRequest{
		RecipientID: "bob",
		Image:       base64.StdEncoding.EncodeToString([]byte{0x89, 0x50}),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var view conversation.MessageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.NotEmpty(t, view.ImageRef)
	assert.Empty(t, view.Text)
}

func TestGateway_SendMessageBadBase64(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodPost, "/api/messages", "alice", SendMessageRequest{
		RecipientID: "bob",
		Image:       "not-base64!!!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGateway_SendEmptyMessageRejected(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodPost, "/api/messages", "alice", SendMessageRequest{
		RecipientID: "bob",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, tg.store.MessageCount())
}

func TestGateway_SenderIsAlwaysTheAuthenticatedUser(t *testing.T) {
	tg := newTestGateway(t)

	// The request body has no sender field at all; identity comes from the token
	rec := tg.request(t, http.MethodPost, "/api/messages", "alice", map[string]string{
		"recipientId": "bob",
		"senderId":    "mallory", // unknown field, ignored by decoding
		"text":        "hi",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var view conversation.MessageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "alice", view.SenderID)
}

func TestGateway_DuplicateClientKeyConflicts(t *testing.T) {
	tg := newTestGateway(t)

	body := SendMessageRequest{RecipientID: "bob", Text: "hi", ClientKey: "retry-key"}
	rec := tg.request(t, http.MethodPost, "/api/messages", "alice", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = tg.request(t, http.MethodPost, "/api/messages", "alice", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, tg.store.MessageCount())
}

func TestGateway_ListConversations(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodPost, "/api/messages", "alice", SendMessageRequest{RecipientID: "bob", Text: "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = tg.request(t, http.MethodGet, "/api/conversations", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var convs []ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, [2]string{"alice", "bob"}, convs[0].Participants)
	assert.Equal(t, "hi", convs[0].LastMessage.Text)
	assert.Equal(t, "alice", convs[0].LastMessage.SenderID)
	assert.False(t, convs[0].LastMessage.Seen)

	// A user with no conversations gets an empty array, not null
	rec = tg.request(t, http.MethodGet, "/api/conversations", "carol", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGateway_ListMessages(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodPost, "/api/messages", "alice", SendMessageRequest{RecipientID: "bob", Text: "one"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var first conversation.MessageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = tg.request(t, http.MethodPost, "/api/messages", "bob", SendMessageRequest{RecipientID: "alice", Text: "two"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = tg.request(t, http.MethodGet, "/api/conversations/"+first.ConversationID+"/messages", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, first.ConversationID, resp.ConversationID)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "one", resp.Messages[0].Text)
	assert.Equal(t, "two", resp.Messages[1].Text)
}

func TestGateway_ListMessagesForbiddenForOutsider(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodPost, "/api/messages", "alice", SendMessageRequest{RecipientID: "bob", Text: "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var view conversation.MessageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))

	rec = tg.request(t, http.MethodGet, "/api/conversations/"+view.ConversationID+"/messages", "mallory", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGateway_ListMessagesUnknownConversation(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodGet, "/api/conversations/nonexistent/messages", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGateway_ListMessagesInvalidLimit(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodGet, "/api/conversations/c1/messages?limit=banana", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGateway_MarkMessageSeen(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodPost, "/api/messages", "alice", SendMessageRequest{RecipientID: "bob", Text: "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var view conversation.MessageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))

	rec = tg.request(t, http.MethodPost, "/api/messages/"+view.ID+"/seen", "bob", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	msg, err := tg.store.GetMessage(context.Background(), view.ID)
	require.NoError(t, err)
	assert.True(t, msg.Seen)
}

func TestGateway_MarkMessageSeenNotFound(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodPost, "/api/messages/nonexistent/seen", "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGateway_MarkConversationSeen(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodPost, "/api/messages", "alice", SendMessageRequest{RecipientID: "bob", Text: "one"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var view conversation.MessageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	rec = tg.request(t, http.MethodPost, "/api/messages", "alice", SendMessageRequest{RecipientID: "bob", Text: "two"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = tg.request(t, http.MethodPost, "/api/conversations/"+view.ConversationID+"/seen", "bob", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	messages, err := tg.store.ListMessages(context.Background(), view.ConversationID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	for _, m := range messages {
		assert.True(t, m.Seen)
	}
}

func TestGateway_MarkConversationSeenForbiddenForOutsider(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodPost, "/api/messages", "alice", SendMessageRequest{RecipientID: "bob", Text: "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var view conversation.MessageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))

	rec = tg.request(t, http.MethodPost, "/api/conversations/"+view.ConversationID+"/seen", "mallory", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGateway_Presence(t *testing.T) {
	tg := newTestGateway(t)

	tg.registry.Register(registry.NewConnection("alice", nil))
	tg.registry.Register(registry.NewConnection("bob", nil))

	rec := tg.request(t, http.MethodGet, "/api/presence", "carol", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PresenceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"alice", "bob"}, resp.OnlineUserIDs)
}

func TestGateway_ErrorBodyIsJSON(t *testing.T) {
	tg := newTestGateway(t)

	rec := tg.request(t, http.MethodPost, "/api/messages", "alice", SendMessageRequest{RecipientID: "bob"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body),
		"error body should be JSON, got %q", rec.Body.String())
	assert.NotEmpty(t, body["error"])
}

func TestGateway_SendThenFetchRoundTrip(t *testing.T) {
	tg := newTestGateway(t)

	for i := range 3 {
		rec := tg.request(t, http.MethodPost, "/api/messages", "alice", SendMessageRequest{
			RecipientID: "bob",
			Text:        fmt.Sprintf("message %d", i),
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := tg.request(t, http.MethodGet, "/api/conversations", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var convs []ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, "message 2", convs[0].LastMessage.Text)

	rec = tg.request(t, http.MethodGet, "/api/conversations/"+convs[0].ID+"/messages", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp MessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Messages, 3)
}
