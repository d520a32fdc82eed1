// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/sms"
	"github.com/pdiddy/research-agent/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the SMS webhook",
	Long: `Serve exposes the pipeline over HTTP: POST /research runs a question,
GET /research/{id} and GET /research/{id}/timeline read back persisted runs,
and POST /webhook/sms accepts carrier form posts, answering by SMS when an
outbound gateway is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		server := &http.Server{
			Addr:              addr,
			Handler:           newMux(a),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() { errCh <- server.ListenAndServe() }()
		a.logger.Info("serving", zap.String("addr", addr))

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")

	rootCmd.AddCommand(serveCmd)
}

func newMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /research", a.handleResearch)
	mux.HandleFunc("GET /research/{id}", a.handleGetRun)
	mux.HandleFunc("GET /research/{id}/timeline", a.handleGetTimeline)
	mux.HandleFunc("POST /webhook/sms", a.handleSMSWebhook)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// researchRequestBody is the POST /research payload.
type researchRequestBody struct {
	Question      string `json:"question"`
	MaxIterations int    `json:"max_iterations"`
}

func (a *app) handleResearch(w http.ResponseWriter, r *http.Request) {
	var body researchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Question == "" {
		httpError(w, http.StatusBadRequest, "question is required")
		return
	}

	req := types.NewResearchRequest(body.Question, types.ChannelAPI, body.MaxIterations)
	result, events, err := a.agent.Run(r.Context(), req)
	if err != nil {
		a.logger.Error("research run failed", zap.String("request_id", req.ID), zap.Error(err))
		httpError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Result   types.ResearchResult  `json:"result"`
		Timeline []types.TimelineEvent `json:"timeline"`
	}{Result: result, Timeline: events})
}

func (a *app) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.store.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httpError(w, http.StatusNotFound, "run not found")
			return
		}
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *app) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := a.store.Timeline(r.Context(), r.PathValue("id"))
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(events) == 0 {
		httpError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (a *app) handleSMSWebhook(w http.ResponseWriter, r *http.Request) {
	msg, err := sms.ParseInbound(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := msg.ToRequest()
	result, _, err := a.agent.Run(r.Context(), req)
	if err != nil {
		a.logger.Error("sms research run failed", zap.String("request_id", req.ID), zap.Error(err))
		httpError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	reply := sms.FormatAnswer(result)
	if a.gateway != nil && msg.From != "" {
		if err := a.gateway.Send(r.Context(), msg.From, reply); err != nil {
			a.logger.Error("sms reply failed", zap.String("to", msg.From), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, struct {
		RequestID string `json:"request_id"`
		Reply     string `json:"reply"`
	}{RequestID: req.ID, Reply: reply})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}
