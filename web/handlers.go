package web

import (
	"bytes"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/mogaika/vif1emu/ps2/vif1"
	"github.com/mogaika/vif1emu/states"
	"github.com/mogaika/vif1emu/status"
	"github.com/mogaika/vif1emu/webutils"
)

type registersResponse struct {
	vif1.Registers
	Fault string `json:",omitempty"`
}

func (s *Server) HandlerAjaxRegisters(w http.ResponseWriter, r *http.Request) {
	regs, err := s.unit.Registers()
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	resp := registersResponse{Registers: regs}
	if fault := s.unit.Err(); fault != nil {
		resp.Fault = fault.Error()
	}
	webutils.WriteJson(w, &resp)
}

func (s *Server) HandlerAjaxStats(w http.ResponseWriter, r *http.Request) {
	if stats, err := s.unit.Stats(); err != nil {
		webutils.WriteError(w, err)
	} else {
		webutils.WriteJson(w, &stats)
	}
}

func (s *Server) HandlerAjaxStatus(w http.ResponseWriter, r *http.Request) {
	webutils.WriteJson(w, s.status.History())
}

func (s *Server) HandlerDumpState(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	zw := states.NewZipWriter(&buf)
	if err := s.unit.SaveState(zw); err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Failed to save state"))
		return
	}
	if err := zw.Close(); err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Failed to close archive"))
		return
	}
	webutils.WriteFile(w, &buf, fmt.Sprintf("vif1_%s.zip", zw.Id()))
}

func (s *Server) HandlerDumpRegisters(w http.ResponseWriter, r *http.Request) {
	if regs, err := s.unit.Registers(); err != nil {
		webutils.WriteError(w, err)
	} else {
		webutils.WriteJsonFile(w, &regs, "vif1_registers")
	}
}

type controlRequest struct {
	Action string
}

// HandlerControl serves {"Action":"reset"} and {"Action":"kick"}
func (s *Server) HandlerControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := webutils.ReadJson(r, &req); err != nil {
		webutils.WriteError(w, err)
		return
	}

	switch req.Action {
	case "reset":
		if err := s.unit.Reset(); err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to reset"))
			return
		}
		s.status.Status("vif1 reset", status.INFO, 0)
	case "kick":
		s.unit.Kick()
	default:
		webutils.WriteError(w, errors.Errorf("Unknown action %q", req.Action))
		return
	}
	webutils.WriteJson(w, &req)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (s *Server) HandlerWsStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[web] ws upgrade error: %v", err)
		return
	}
	s.status.NewClient(conn)
}
