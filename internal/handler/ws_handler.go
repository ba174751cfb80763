package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/proctorly/assessment-backend/internal/config"
	"github.com/proctorly/assessment-backend/internal/middleware"
	"github.com/proctorly/assessment-backend/internal/model"
	"github.com/proctorly/assessment-backend/internal/service"
	"github.com/proctorly/assessment-backend/internal/session"
	ws "github.com/proctorly/assessment-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// wsFeed adapts the client's reported camera state to the session engine's
// capture device. The client owns the physical camera; this side only sees
// what it reports: track counts, frames, and up/down transitions. A feed
// that stops reporting is treated as dead after staleAfter.
type wsFeed struct {
	mu         sync.Mutex
	staleAfter time.Duration
	up         bool
	tracks     int
	lastReport time.Time
	frame      string
}

var errCameraNotReported = errors.New("client has not reported a live camera")

func newWSFeed(staleAfter time.Duration) *wsFeed {
	return &wsFeed{staleAfter: staleAfter}
}

func (f *wsFeed) Open(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.up {
		return errCameraNotReported
	}
	return nil
}

func (f *wsFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.up = false
	f.frame = ""
}

func (f *wsFeed) LiveTracks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.up || time.Since(f.lastReport) > f.staleAfter {
		return 0
	}
	return f.tracks
}

func (f *wsFeed) Capture() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frame == "" {
		return "", errors.New("no frame received from client")
	}
	return f.frame, nil
}

func (f *wsFeed) reportUp(tracks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.up = true
	f.tracks = tracks
	f.lastReport = time.Now()
}

func (f *wsFeed) report(tracks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = tracks
	f.lastReport = time.Now()
}

func (f *wsFeed) setFrame(frame string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame = frame
	f.lastReport = time.Now()
}

// WSHandler handles the proctored assessment stream.
type WSHandler struct {
	cfg           *config.Config
	manager       *session.Manager
	rosterService *service.RosterService
	log           zerolog.Logger
	upgrader      websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(cfg *config.Config, manager *session.Manager, rosterService *service.RosterService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		cfg:           cfg,
		manager:       manager,
		rosterService: rosterService,
		log:           log.With().Str("component", "ws_handler").Logger(),
		upgrader:      buildUpgrader(cfg.AllowedOrigins),
	}
}

// AssessmentStream godoc
// WS /ws/v1/assessment/stream
// Upgrades to WebSocket and binds the candidate's session to this client:
// answers, navigation, camera reports, and environment events flow in;
// countdown ticks, pauses, warnings, and the final record flow out.
func (h *WSHandler) AssessmentStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cand, err := h.rosterService.GetByID(c.Request.Context(), claims.CandidateID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown candidate"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().Int("candidate_id", cand.ID).Logger()

	// The feed goes stale when the client stops reporting for three
	// liveness cycles; the monitor then pauses the session.
	feed := newWSFeed(3 * h.cfg.LivenessInterval)
	sink := session.SinkFunc(func(ev session.Event) {
		if err := conn.WriteTyped(ws.FromEngineEvent(ev)); err != nil {
			wsLog.Debug().Err(err).Msg("Event write failed")
		}
	})

	ctrl := h.manager.Attach(*cand, feed, sink)
	defer h.manager.Detach(cand.ID)

	wsLog.Info().Msg("Candidate connected")

	view := ctrl.View()
	if err := conn.WriteTyped(ws.ServerEvent{Event: ws.EventState, State: &view}); err != nil {
		wsLog.Warn().Err(err).Msg("Initial state write failed")
		return
	}

	for {
		var msg ws.ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(ctrl, &msg)
		case ws.ActionMark:
			ctrl.ToggleMark(msg.QID)
		case ws.ActionNavigate:
			if msg.Index != nil {
				ctrl.Navigate(*msg.Index)
			}
		case ws.ActionCameraUp:
			h.handleCameraUp(c.Request.Context(), conn, ctrl, feed, &msg)
		case ws.ActionCameraDown:
			feed.Close()
			ctrl.StopCamera()
		case ws.ActionCameraState:
			if msg.LiveTracks != nil {
				feed.report(*msg.LiveTracks)
			}
		case ws.ActionFrame:
			if msg.Frame != "" {
				feed.setFrame(msg.Frame)
			}
		case ws.ActionEnv:
			h.handleEnv(conn, ctrl, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, ctrl)
		case ws.ActionPing:
			conn.WriteTyped(ws.ServerEvent{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// handleAnswer records an answer. Invalid payloads are dropped by the
// engine, so there is nothing to report back.
func (h *WSHandler) handleAnswer(ctrl *session.Controller, msg *ws.ClientMessage) {
	if msg.QID == "" {
		return
	}
	ctrl.RecordAnswer(msg.QID, model.Answer{Choice: msg.Choice, Text: msg.Text})
}

// handleCameraUp registers the client's live feed and starts (or resumes)
// the session.
func (h *WSHandler) handleCameraUp(ctx context.Context, conn *ws.Conn, ctrl *session.Controller, feed *wsFeed, msg *ws.ClientMessage) {
	tracks := 1
	if msg.LiveTracks != nil {
		tracks = *msg.LiveTracks
	}
	feed.reportUp(tracks)

	if !ctrl.StartCamera(ctx) {
		conn.WriteError("camera start rejected")
	}
}

// handleEnv feeds an environment event through the anti-cheat watcher and
// returns the disposition, so the client knows whether to block the action.
func (h *WSHandler) handleEnv(conn *ws.Conn, ctrl *session.Controller, msg *ws.ClientMessage) {
	disp := ctrl.HandleEnv(session.EnvEvent{
		Kind:   session.EnvEventKind(msg.Kind),
		Detail: msg.Detail,
	})

	out := ws.ServerEvent{Event: ws.EventEnvResult, Disposition: &disp}
	if disp == session.DispositionConfirm {
		out.Event = ws.EventConfirmLeave
		out.Message = "You have not submitted yet. Leaving now will interrupt your assessment."
	}
	conn.WriteTyped(out)
}

// handleSubmit finalizes the session. The engine publishes the submitted
// event through the sink; only the rejection path needs a direct reply.
func (h *WSHandler) handleSubmit(conn *ws.Conn, wsLog zerolog.Logger, ctrl *session.Controller) {
	sub, err := ctrl.Submit(model.TriggerManual)
	if err != nil {
		if errors.Is(err, session.ErrCameraInactive) {
			conn.WriteError("Camera must be active to submit. Please restart your camera.")
			return
		}
		wsLog.Error().Err(err).Msg("Submit failed")
		conn.WriteError("submit failed")
		return
	}

	wsLog.Info().
		Int("score", sub.Score.Earned).
		Int("max", sub.Score.Max).
		Str("trigger", string(sub.Trigger)).
		Msg("Assessment submitted")
}
