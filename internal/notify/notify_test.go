package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"offer-config-engine/internal/apperr"
)

func newTestFCM(t *testing.T, h http.HandlerFunc) *FCM {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}))
	return NewFCMWithClient(client, srv.URL+"/", "8934278530")
}

func TestFCM_Send(t *testing.T) {
	var got map[string]map[string]any
	f := newTestFCM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/8934278530/messages:send", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"name":"projects/8934278530/messages/0:123"}`))
	})

	res, err := f.Send(context.Background(), Message{
		Token: "tok", Title: "Hi", Body: "There",
		ImageURL: "https://img/1.png", IconURL: "https://img/icon.png",
		Data: map[string]string{"offer": "42"},
	})
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.Equal(t, "projects/8934278530/messages/0:123", res.RelayID)

	msg := got["message"]
	assert.Equal(t, "tok", msg["token"])
	assert.Equal(t, map[string]any{"title": "Hi", "body": "There", "image": "https://img/1.png"}, msg["notification"])
	assert.Equal(t, map[string]any{"offer": "42", "image": "https://img/1.png", "icon": "https://img/icon.png"}, msg["data"])
}

func TestFCM_Unregistered(t *testing.T) {
	f := newTestFCM(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND",
			"details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`))
	})

	res, err := f.Send(context.Background(), Message{Token: "tok", Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.False(t, res.Delivered)
	assert.True(t, res.Unregistered)
	assert.Equal(t, "UNREGISTERED", res.Reason)
}

func TestFCM_InvalidArgument(t *testing.T) {
	f := newTestFCM(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad token","status":"INVALID_ARGUMENT"}}`))
	})

	res, err := f.Send(context.Background(), Message{Token: "tok", Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.False(t, res.Delivered)
	assert.False(t, res.Unregistered)
	assert.Equal(t, "INVALID_ARGUMENT", res.Reason)
}

func TestFCM_ServerError(t *testing.T) {
	f := newTestFCM(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"try later","status":"UNAVAILABLE"}}`))
	})

	_, err := f.Send(context.Background(), Message{Token: "tok", Title: "t", Body: "b"})
	require.Error(t, err)
	assert.Equal(t, apperr.RelayFailed, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "try later")
}

func TestSend_ValidatesMessage(t *testing.T) {
	f := newTestFCM(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})
	for _, r := range []Relay{f, LogRelay{}} {
		_, err := r.Send(context.Background(), Message{Token: "tok", Title: "t"})
		require.Error(t, err, r.Name())
		assert.Equal(t, apperr.InvalidPayload, apperr.KindOf(err))
	}
}

func TestLogRelay(t *testing.T) {
	res, err := LogRelay{}.Send(context.Background(), Message{Token: strings.Repeat("x", 60), Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.True(t, strings.HasPrefix(res.RelayID, "notification_"))
}

func TestLooksLikeFCMToken(t *testing.T) {
	assert.True(t, LooksLikeFCMToken("dl28EJCAT4a7UNl86egX-U:APA91bEC1a5aGJL8ZyQHlm-B9togw60MLWP4_zU0ExSXLSa"))
	assert.False(t, LooksLikeFCMToken("short:token"))
	assert.False(t, LooksLikeFCMToken(strings.Repeat("a", 80)))
}
