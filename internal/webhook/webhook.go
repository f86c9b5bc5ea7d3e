package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// pushEvent is the subset of a GitHub push webhook payload this handler
// cares about.
type pushEvent struct {
	Repository struct {
		HTMLURL string `json:"html_url"`
	} `json:"repository"`
	Ref string `json:"ref"`
}

// Handler is an http.Handler for GitHub's push webhook. On a valid push
// event it calls OnPush with the repository's HTML URL, so fleet mode can
// match it against a configured source and run it immediately rather than
// waiting for the next scheduled tick.
type Handler struct {
	Secret            string
	SkipSigValidation bool
	Log               *slog.Logger
	OnPush            func(htmlURL string)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.Log.Error("cannot read webhook request body", "err", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !h.SkipSigValidation && !h.isValidSignature(body, r.Header.Get("X-Hub-Signature-256")) {
		h.Log.Error("invalid webhook signature")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event := r.Header.Get("X-GitHub-Event")

	if event == "ping" {
		_, _ = w.Write([]byte("pong"))
		return
	}

	if event != "push" {
		return
	}

	var payload pushEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		h.Log.Error("cannot unmarshal webhook payload", "err", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if h.OnPush != nil {
		go h.OnPush(payload.Repository.HTMLURL)
	}
}

func (h *Handler) isValidSignature(message []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.Secret))
	if _, err := mac.Write(message); err != nil {
		h.Log.Error("cannot compute hmac for webhook request", "err", err)
		return false
	}
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
