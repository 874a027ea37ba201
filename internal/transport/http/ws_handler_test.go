package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lead-gate-service/internal/app"
	"lead-gate-service/internal/domain"
	"lead-gate-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

type staticOTP struct{}

func (staticOTP) SendCode(_ context.Context, _ string) error { return nil }

func (staticOTP) VerifyCode(_ context.Context, _, code string) (app.VerifyOutcome, error) {
	if code == "123456" {
		return app.VerifyOutcome{Verified: true}, nil
	}
	return app.VerifyOutcome{Reason: "invalid otp"}, nil
}

func newTestHandler() *WSHandler {
	banks := memory.NewBankRepository(memory.NewStaticBankLoader(map[string]domain.QuestionBank{
		"bank": {
			ID: "bank",
			Questions: []domain.Question{
				{ID: 1, Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectIndex: 1},
				{ID: 2, Prompt: "What is 3 + 3?", Options: []string{"6", "7"}, CorrectIndex: 0},
			},
		},
	}), time.Minute)
	features := map[string]app.FeatureConfig{
		"scholarship": {
			BankID:        "bank",
			BatchSize:     2,
			PassThreshold: 0.5,
			Mode:          domain.ModeSequential,
			RewardPrefix:  "SCH",
			RewardSuffix:  "26",
			RewardTTL:     15 * time.Minute,
		},
	}
	service := app.NewFlowService(banks, memory.NewSessionStore(), staticOTP{}, nil, features)
	return NewWSHandler(service)
}

func TestWebSocketFlowEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", newTestHandler().ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?feature=scholarship"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	state := readState(t, conn)
	if state.Stage != app.StageLanding {
		t.Fatalf("expected landing, got %s", state.Stage)
	}

	sendMsg(t, conn, "begin", nil)
	state = readState(t, conn)
	if state.Stage != app.StageForm {
		t.Fatalf("expected form, got %s", state.Stage)
	}

	sendMsg(t, conn, "requestOtp", map[string]any{"phone": "9876543210"})
	state = readState(t, conn)
	if state.Verification.Status != domain.VerificationSent {
		t.Fatalf("expected sent, got %+v", state.Verification)
	}

	// Wrong code surfaces an error but leaves the machine in Sent.
	sendMsg(t, conn, "confirmOtp", map[string]any{"code": "000000"})
	state = readState(t, conn)
	if state.Verification.Status != domain.VerificationSent || state.Verification.LastError != domain.ErrKindInvalidCode {
		t.Fatalf("expected sent/invalid_code, got %+v", state.Verification)
	}

	sendMsg(t, conn, "confirmOtp", map[string]any{"code": "123456"})
	state = readState(t, conn)
	if state.Verification.Status != domain.VerificationVerified {
		t.Fatalf("expected verified, got %+v", state.Verification)
	}

	sendMsg(t, conn, "submitIdentity", map[string]any{"name": "Asha", "course": "CNC Machinist"})
	state = readState(t, conn)
	if state.Stage != app.StageAssessment || state.Question == nil {
		t.Fatalf("expected assessment with a question, got %+v", state)
	}

	// Answer both questions; option layout is fixed per bank above, so pick
	// by prompt.
	for i := 0; i < 2; i++ {
		choice := 1
		if state.Question.Prompt == "What is 3 + 3?" {
			choice = 0
		}
		sendMsg(t, conn, "answer", map[string]any{"optionIndex": choice})
		state = readState(t, conn)
	}

	if state.Stage != app.StageResult || state.Outcome != domain.OutcomePass {
		t.Fatalf("expected passing result, got %+v", state)
	}
	if state.Credential == nil || state.Credential.Code == "" {
		t.Fatalf("expected credential, got %+v", state.Credential)
	}
}

func TestWebSocketRequiresFeature(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", newTestHandler().ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial failure without feature")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", resp)
	}
}

func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": json.RawMessage(raw)}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readState skips non-state messages (errors, countdown ticks) and decodes
// the next flow snapshot.
func readState(t *testing.T, conn *websocket.Conn) app.FlowSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != "state" {
			continue
		}
		var snapshot app.FlowSnapshot
		if err := json.Unmarshal(msg.Payload, &snapshot); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		return snapshot
	}
	t.Fatalf("no state message received")
	return app.FlowSnapshot{}
}
