package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/clientmap/internal/client"
	"github.com/nao1215/clientmap/internal/clientmap"
	"github.com/nao1215/clientmap/internal/eventbus"
	"github.com/nao1215/clientmap/internal/history"
	"github.com/nao1215/clientmap/internal/lifecycle"
	"github.com/nao1215/clientmap/internal/model"
	"github.com/nao1215/clientmap/internal/report"
)

type nodeRequest struct {
	URL     string `json:"url"`
	Visited bool   `json:"visited"`
	Storage bool   `json:"storage"`
}

// handleNode records a URL observation.
func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	var req nodeRequest
	if !decode(w, r, &req) {
		return
	}
	node, err := s.integration.GetOrAddNode(req.URL, req.Visited, req.Storage)
	s.writeNode(w, node, err)
}

type componentRequest struct {
	URL string `json:"url"`
	clientmap.Component
}

// handleComponent records a page element.
func (s *Server) handleComponent(w http.ResponseWriter, r *http.Request) {
	var req componentRequest
	if !decode(w, r, &req) {
		return
	}
	node, err := s.integration.AddComponent(req.URL, req.Component)
	s.writeNode(w, node, err)
}

func (s *Server) writeNode(w http.ResponseWriter, node clientmap.Node, err error) {
	switch {
	case errors.Is(err, client.ErrControlURL):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, clientmap.ErrInvalidURL):
		jsonError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Warn("failed to record node", "error", err)
		jsonError(w, http.StatusInternalServerError, err.Error())
	default:
		jsonResponse(w, http.StatusOK, node)
	}
}

// handleReportedNode logs a node the browser rendered.
func (s *Server) handleReportedNode(w http.ResponseWriter, r *http.Request) {
	var req model.ReportedNode
	if !decode(w, r, &req) {
		return
	}
	s.writeReported(w, &req)
}

// handleReportedEvent logs a browser event. A missing timestamp is set to
// the arrival time.
func (s *Server) handleReportedEvent(w http.ResponseWriter, r *http.Request) {
	var req model.ReportedEvent
	if !decode(w, r, &req) {
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	s.writeReported(w, &req)
}

func (s *Server) writeReported(w http.ResponseWriter, obj model.ReportedObject) {
	if strings.TrimSpace(obj.URL()) == "" {
		jsonError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !s.integration.AddReportedObject(obj) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	jsonResponse(w, http.StatusAccepted, map[string]int{"entries": s.integration.History().Len()})
}

// handleScanStarted republishes a scan start on the bus.
func (s *Server) handleScanStarted(w http.ResponseWriter, r *http.Request) {
	var req model.ScanInfo
	if !decode(w, r, &req) {
		return
	}
	s.publish(w, lifecycle.EventScanStarted, map[string]string{
		lifecycle.ParamScanID: req.ID,
		lifecycle.ParamTarget: req.Target,
	})
}

// handleScanStopped republishes a scan stop on the bus. The body is ignored.
func (s *Server) handleScanStopped(w http.ResponseWriter, _ *http.Request) {
	s.publish(w, lifecycle.EventScanStopped, nil)
}

func (s *Server) publish(w http.ResponseWriter, eventType string, params map[string]string) {
	delivered := s.bus.Publish(eventbus.Event{
		Publisher: s.topic,
		Type:      eventType,
		Params:    params,
	})
	jsonResponse(w, http.StatusAccepted, map[string]int{"delivered": delivered})
}

// handleGetSession returns the current session.
func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, s.integration.Session())
}

// handleChangeSession starts a new session. An empty body is allowed.
func (s *Server) handleChangeSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	jsonResponse(w, http.StatusCreated, s.integration.SessionChanged(req.Name))
}

type urlRequest struct {
	URL string `json:"url"`
}

// handleSelect shows the node for a URL in the detail view.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !decode(w, r, &req) {
		return
	}
	node, ok := s.integration.Tree().Find(req.URL)
	if !ok {
		jsonError(w, http.StatusNotFound, clientmap.ErrNodeNotFound.Error())
		return
	}
	s.integration.NodeSelected(node)
	jsonResponse(w, http.StatusOK, node)
}

// handleDetails returns the node in the detail view.
func (s *Server) handleDetails(w http.ResponseWriter, _ *http.Request) {
	node, ok := s.integration.Details().Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	jsonResponse(w, http.StatusOK, node)
}

// handleDelete removes the nodes for the given URLs. Unknown URLs are
// ignored.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URLs []string `json:"urls"`
	}
	if !decode(w, r, &req) {
		return
	}

	tree := s.integration.Tree()
	ids := make([]clientmap.NodeID, 0, len(req.URLs))
	for _, u := range req.URLs {
		if n, ok := tree.Find(u); ok {
			ids = append(ids, n.ID)
		}
	}
	removed := s.integration.DeleteNodes(ids...)
	if removed == nil {
		removed = []clientmap.Node{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"removed": removed})
}

// handleTree returns the tree in walk order.
func (s *Server) handleTree(w http.ResponseWriter, _ *http.Request) {
	nodes := report.NodesFromTree(s.integration.Tree())
	if nodes == nil {
		nodes = []report.Node{}
	}
	jsonResponse(w, http.StatusOK, nodes)
}

// handleHistory returns the reported-object log.
func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, report.ObjectsFrom(s.integration.History().Entries()))
}

// handleHistoryField returns one column of the log.
func (s *Server) handleHistoryField(w http.ResponseWriter, r *http.Request) {
	field := history.Field(r.PathValue("field"))
	if !slices.Contains(history.Fields, field) {
		jsonError(w, http.StatusNotFound, "unknown field "+string(field))
		return
	}
	jsonResponse(w, http.StatusOK, s.integration.History().Values(field))
}

// handleExport renders the session with one of the report writers.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var writer report.Writer
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		writer = report.NewJSONWriter(w, report.WithPrettyPrint())
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		writer = report.NewMarkdownWriter(w)
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		writer = report.NewSimpleWriter(w, report.WithShowEmpty(true))
	default:
		jsonError(w, http.StatusBadRequest, "unknown format "+format)
		return
	}

	if _, err := writer.Write(s.integration.Export()); err != nil {
		s.logger.Warn("failed to write export", "error", err)
	}
}
