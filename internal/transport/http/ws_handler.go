package http

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"lead-gate-service/internal/app"
	"lead-gate-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.FlowService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.FlowService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type phonePayload struct {
	Phone string `json:"phone"`
}

type codePayload struct {
	Code string `json:"code"`
}

type answerPayload struct {
	OptionIndex int `json:"optionIndex"`
}

type answerAtPayload struct {
	QuestionIndex int `json:"questionIndex"`
	OptionIndex   int `json:"optionIndex"`
}

type countdownPayload struct {
	RemainingSeconds int  `json:"remainingSeconds"`
	Expired          bool `json:"expired"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request to a websocket and drives one gated flow over
// it. One connection equals one visitor flow; closing the connection discards
// everything but the persisted gated session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	featureID := r.URL.Query().Get("feature")
	if featureID == "" {
		http.Error(w, "missing feature", http.StatusBadRequest)
		return
	}
	phoneHint := r.URL.Query().Get("phone")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	flow, err := h.service.Start(r.Context(), featureID, phoneHint)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	var countdown sync.WaitGroup
	countdownRunning := false
	pushState := func(snapshot app.FlowSnapshot) {
		send <- outboundMessage[any]{Type: "state", Payload: snapshot}
		if snapshot.Credential != nil && !countdownRunning {
			countdownRunning = true
			credential := *snapshot.Credential
			countdown.Add(1)
			go func() {
				defer countdown.Done()
				h.runCountdown(send, closeSignals, credential)
			}()
		}
	}

	pushState(h.service.Snapshot(flow))

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		snapshot, err := h.dispatch(r, flow, inbound)
		if err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		}
		pushState(snapshot)
	}

	close(closeSignals)
	countdown.Wait()
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, flow *app.Flow, inbound inboundMessage) (app.FlowSnapshot, error) {
	ctx := r.Context()
	switch inbound.Type {
	case "begin":
		return h.service.Begin(flow)
	case "requestOtp":
		var payload phonePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return h.service.Snapshot(flow), err
		}
		return h.service.RequestOTP(ctx, flow, payload.Phone)
	case "confirmOtp":
		var payload codePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return h.service.Snapshot(flow), err
		}
		return h.service.ConfirmOTP(ctx, flow, payload.Code)
	case "editPhone":
		return h.service.EditPhone(flow)
	case "submitIdentity":
		var identity domain.Identity
		if err := json.Unmarshal(inbound.Payload, &identity); err != nil {
			return h.service.Snapshot(flow), err
		}
		return h.service.SubmitIdentity(ctx, flow, identity)
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return h.service.Snapshot(flow), err
		}
		return h.service.Answer(ctx, flow, payload.OptionIndex)
	case "answerAt":
		var payload answerAtPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return h.service.Snapshot(flow), err
		}
		return h.service.AnswerAt(flow, payload.QuestionIndex, payload.OptionIndex)
	case "submitAnswers":
		return h.service.SubmitAnswers(ctx, flow)
	case "retry":
		return h.service.Retry(flow)
	default:
		return h.service.Snapshot(flow), domain.ErrFlowState
	}
}

// runCountdown pushes the remaining claim window once a second until the
// code expires or the connection goes away. The ticker dies with the
// connection; nothing invalidates the code itself.
func (h *WSHandler) runCountdown(send chan<- outboundMessage[any], closeSignals <-chan struct{}, credential domain.RewardCredential) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			remaining := int(credential.ExpiresAt.Sub(now).Seconds())
			expired := credential.Expired(now)
			if expired {
				remaining = 0
			}
			select {
			case send <- outboundMessage[any]{Type: "countdown", Payload: countdownPayload{RemainingSeconds: remaining, Expired: expired}}:
			case <-closeSignals:
				return
			}
			if expired {
				return
			}
		case <-closeSignals:
			return
		}
	}
}
