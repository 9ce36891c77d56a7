package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"offer-config-engine/internal/apperr"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// FCM sends messages through the Firebase Cloud Messaging HTTP v1 API.
type FCM struct {
	client    *http.Client
	endpoint  string
	projectID string
}

// NewFCM authenticates with a service account key file.
func NewFCM(ctx context.Context, endpoint, projectID, credentialsFile string) (*FCM, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read fcm credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("parse fcm credentials: %w", err)
	}
	client := oauth2.NewClient(ctx, creds.TokenSource)
	client.Timeout = 10 * time.Second
	return NewFCMWithClient(client, endpoint, projectID), nil
}

// NewFCMWithClient uses client as is; it must add the Authorization header.
func NewFCMWithClient(client *http.Client, endpoint, projectID string) *FCM {
	return &FCM{client: client, endpoint: strings.TrimRight(endpoint, "/"), projectID: projectID}
}

func (f *FCM) Name() string { return "fcm" }

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Image string `json:"image,omitempty"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

func (f *FCM) Send(ctx context.Context, m Message) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}
	body, err := json.Marshal(map[string]fcmMessage{"message": {
		Token:        m.Token,
		Notification: fcmNotification{Title: m.Title, Body: m.Body, Image: m.ImageURL},
		Data:         m.payloadData(),
	}})
	if err != nil {
		return Result{}, err
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", f.endpoint, f.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.RelayFailed, err, "fcm request failed")
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode == http.StatusOK {
		var ok struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &ok); err != nil {
			return Result{}, apperr.Wrap(apperr.RelayFailed, err, "decode fcm response")
		}
		return Result{Delivered: true, RelayID: ok.Name}, nil
	}

	var fe fcmError
	_ = json.Unmarshal(raw, &fe)
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Result{}, apperr.Wrap(apperr.RelayFailed,
			fmt.Errorf("status %d: %s", resp.StatusCode, fe.Error.Message), "fcm unavailable")
	}

	res := Result{Reason: fe.Error.Status}
	if res.Reason == "" {
		res.Reason = http.StatusText(resp.StatusCode)
	}
	for _, d := range fe.Error.Details {
		if d.ErrorCode != "" {
			res.Reason = d.ErrorCode
		}
		if d.ErrorCode == "UNREGISTERED" {
			res.Unregistered = true
		}
	}
	if resp.StatusCode == http.StatusNotFound {
		res.Unregistered = true
	}
	return res, nil
}
