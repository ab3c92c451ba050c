package web

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/mogaika/vif1emu/ps2/vif1"
	"github.com/mogaika/vif1emu/states"
	"github.com/mogaika/vif1emu/status"
)

// Unit is inspected vif unit
type Unit interface {
	Registers() (vif1.Registers, error)
	Stats() (vif1.Stats, error)
	SaveState(w states.Writer) error
	Err() error
	Reset() error
	Kick()
}

type Server struct {
	unit   Unit
	status *status.Broadcaster
}

func NewServer(unit Unit, b *status.Broadcaster) *Server {
	return &Server{unit: unit, status: b}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/json/registers", s.HandlerAjaxRegisters)
	r.HandleFunc("/json/stats", s.HandlerAjaxStats)
	r.HandleFunc("/json/status", s.HandlerAjaxStatus)
	r.HandleFunc("/dump/state", s.HandlerDumpState)
	r.HandleFunc("/dump/registers", s.HandlerDumpRegisters)
	r.HandleFunc("/control", s.HandlerControl).Methods("POST")
	r.HandleFunc("/ws/status", s.HandlerWsStatus)
	return r
}

// StartServer serves until ctx is cancelled
func StartServer(ctx context.Context, addr string, s *Server) error {
	var h http.Handler = s.Router()
	h = handlers.RecoveryHandler()(h)
	h = handlers.LoggingHandler(os.Stdout, h)

	srv := &http.Server{Addr: addr, Handler: h}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[web] Shutdown of %v failed: %v", addr, err)
		}
	}()

	log.Printf("[web] Starting server %v", addr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrapf(err, "Server %v failed", addr)
	}
	return nil
}
