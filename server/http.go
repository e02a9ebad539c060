package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/BertoldVdb/go-sunxi/command"
	"github.com/BertoldVdb/go-sunxi/httplog"
	"github.com/BertoldVdb/go-sunxi/logrusconfig"
	"github.com/BertoldVdb/go-sunxi/mmio"
	"github.com/BertoldVdb/go-sunxi/pwm"
)

const maxRequestBody = 64 * 1024

type httpState struct {
	handler    http.Handler
	httpServer *http.Server
}

type journalEntry struct {
	Key  string `json:"key"`
	Line string `json:"line"`
}

type pwmReply struct {
	Channel   int    `json:"channel"`
	Prescaler uint32 `json:"prescaler"`
	PeriodNs  uint64 `json:"period_ns"`
	DutyNs    uint64 `json:"duty_ns"`
	Polarity  string `json:"polarity"`
	Enabled   bool   `json:"enabled"`
}

func (s *Server) initHTTP() {
	mux := http.NewServeMux()
	mux.HandleFunc("/exec", s.handleExec)
	mux.HandleFunc("/journal", s.handleJournal)
	mux.HandleFunc("/pwm/", s.handlePWM)

	trace := httplog.HTTPLog{
		Logger:            logrusconfig.Subsystem(s.log, "http"),
		CorrelationHeader: "X-Request-ID",
		SkipInfo:          true,
	}
	s.handler = trace.GetHandler(mux)
	s.httpServer = &http.Server{
		Addr:    s.config.Listen,
		Handler: s.handler,
	}
}

// Handler returns the HTTP API including request logging.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, command.ErrorSyntax), errors.Is(err, command.ErrorUnknownCommand):
		return http.StatusBadRequest
	case errors.Is(err, pwm.ErrorOutOfRange), errors.Is(err, pwm.ErrorDutyExceedsPeriod), errors.Is(err, pwm.ErrorInvalidChannel):
		return http.StatusUnprocessableEntity
	case errors.Is(err, mmio.ErrorUninitialized):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// POST /exec runs the request body as a script and returns its output.
func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	/* A truncated script must not run, its last line could still parse */
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logf := httplog.LogfFromRequest(r)
	logf("%d command bytes", len(body))

	output, err := s.interp.ExecScript(strings.NewReader(string(body)))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err != nil {
		logf("%v", err)
		w.WriteHeader(errorStatus(err))
		io.WriteString(w, output+"error: "+err.Error()+"\n")
		return
	}
	io.WriteString(w, output)
}

// GET /journal returns the applied settings.
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries := []journalEntry{}
	for _, e := range s.interp.Journal() {
		entries = append(entries, journalEntry{Key: e.Key, Line: e.Line})
	}
	writeJSON(w, entries)
}

// GET /pwm/<channel> returns the decoded channel configuration.
func (s *Server) handlePWM(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ch, err := strconv.ParseUint(strings.TrimPrefix(r.URL.Path, "/pwm/"), 10, 32)
	if err != nil {
		http.Error(w, "Invalid channel", http.StatusNotFound)
		return
	}

	var state pwm.State
	err = s.interp.Do(func() error {
		var err error
		state, err = s.hw.PWM.State(pwm.Channel(ch))
		return err
	})
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}

	writeJSON(w, pwmReply{
		Channel:   int(ch),
		Prescaler: pwm.Prescalers[state.Timing.Prescaler&0xF],
		PeriodNs:  state.Timing.PeriodNs(),
		DutyNs:    state.Timing.DutyNs(),
		Polarity:  state.Polarity.String(),
		Enabled:   state.Enabled,
	})
}
