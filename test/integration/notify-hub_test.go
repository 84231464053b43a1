//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"
)

func TestLifecycle_PersistReadArchive(t *testing.T) {
	cfg := LoadCfg()
	WaitHealthz(t, cfg.HealthURL, 60*time.Second)

	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	recipient := RandRecipient()
	token := MintToken(t, cfg.JWTSecret, recipient)

	createResp := DoJSON(t, http.MethodPost, cfg.BaseURL+"/api/v1/notifications", token, map[string]any{
		"recipient_id": recipient,
		"title":        "integration hello",
		"body":         "created by the lifecycle test",
		"metadata":     map[string]any{"k": "v"},
	}, http.StatusCreated)

	var created struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(createResp, &created); err != nil {
		t.Fatalf("unmarshal create: %v body=%s", err, string(createResp))
	}
	if created.Status != "unread" {
		t.Fatalf("new record not unread: %s", created.Status)
	}
	if st := GetStatus(t, db, created.ID); st != "unread" {
		t.Fatalf("db row status: %s", st)
	}

	idURL := cfg.BaseURL + "/api/v1/notifications/" + itoa(created.ID)
	readResp := DoJSON(t, http.MethodPost, idURL+"/read", token, nil, http.StatusOK)
	var read struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(readResp, &read)
	if read.Status != "read" {
		t.Fatalf("mark read: %s", read.Status)
	}

	// Repeat read is a silent no-op.
	DoJSON(t, http.MethodPost, idURL+"/read", token, nil, http.StatusOK)

	DoJSON(t, http.MethodPost, idURL+"/archive", token, nil, http.StatusOK)
	if st := GetStatus(t, db, created.ID); st != "archived" {
		t.Fatalf("db row status after archive: %s", st)
	}

	// Archived records never go back.
	body := DoJSON(t, http.MethodPost, idURL+"/read", token, nil, http.StatusConflict)
	var env struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &env)
	if env.Error.Kind != "invalid_transition" {
		t.Fatalf("error kind: %s", env.Error.Kind)
	}
}

func TestLifecycle_OwnershipHidden(t *testing.T) {
	cfg := LoadCfg()
	WaitHealthz(t, cfg.HealthURL, 60*time.Second)

	owner := RandRecipient()
	ownerTok := MintToken(t, cfg.JWTSecret, owner)
	otherTok := MintToken(t, cfg.JWTSecret, RandRecipient())

	resp := DoJSON(t, http.MethodPost, cfg.BaseURL+"/api/v1/notifications/send-test", ownerTok, nil, http.StatusCreated)
	var created struct {
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(resp, &created)

	url := cfg.BaseURL + "/api/v1/notifications/" + itoa(created.ID)
	DoJSON(t, http.MethodGet, url, ownerTok, nil, http.StatusOK)
	DoJSON(t, http.MethodGet, url, otherTok, nil, http.StatusNotFound)
	DoJSON(t, http.MethodGet, url, "", nil, http.StatusUnauthorized)
}

func TestBroadcast_EventOnBus(t *testing.T) {
	cfg := LoadCfg()
	WaitTCP(t, "kafka", cfg.KafkaBootstrap, 60*time.Second)
	WaitHealthz(t, cfg.HealthURL, 60*time.Second)

	recipient := RandRecipient()
	token := MintToken(t, cfg.JWTSecret, recipient)

	resp := DoJSON(t, http.MethodPost, cfg.BaseURL+"/api/v1/notifications/send-test", token, nil, http.StatusCreated)
	var created struct {
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(resp, &created)

	ev, ok := ReadOneEvent(t, cfg.KafkaBootstrap, cfg.Topic, recipient, 30*time.Second)
	if !ok {
		t.Fatal("no broadcast event for recipient")
	}
	if ev.Kind != "created" {
		t.Fatalf("event kind: %s", ev.Kind)
	}
	if ev.NotificationID == nil || *ev.NotificationID != created.ID {
		t.Fatalf("event id: %+v want %d", ev.NotificationID, created.ID)
	}
}

func TestPagination_Keyset(t *testing.T) {
	cfg := LoadCfg()
	WaitHealthz(t, cfg.HealthURL, 60*time.Second)

	recipient := RandRecipient()
	token := MintToken(t, cfg.JWTSecret, recipient)

	for i := 0; i < 5; i++ {
		DoJSON(t, http.MethodPost, cfg.BaseURL+"/api/v1/notifications/send-test", token, nil, http.StatusCreated)
	}

	seen := map[int64]bool{}
	cursor := ""
	pages := 0
	for {
		url := cfg.BaseURL + "/api/v1/notifications?limit=2"
		if cursor != "" {
			url += "&cursor=" + cursor
		}
		body := DoJSON(t, http.MethodGet, url, token, nil, http.StatusOK)
		var page struct {
			Items []struct {
				ID int64 `json:"id"`
			} `json:"items"`
			NextCursor string `json:"next_cursor"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			t.Fatalf("unmarshal list: %v", err)
		}
		for _, it := range page.Items {
			if seen[it.ID] {
				t.Fatalf("duplicate id across pages: %d", it.ID)
			}
			seen[it.ID] = true
		}
		pages++
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
		if pages > 10 {
			t.Fatal("cursor never terminated")
		}
	}
	if len(seen) != 5 {
		t.Fatalf("walked %d records, want 5", len(seen))
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
