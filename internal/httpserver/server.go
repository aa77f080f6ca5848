package httpserver

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/OdaKanta/DifyInterviewForm/internal/auth"
	"github.com/OdaKanta/DifyInterviewForm/internal/session"
	"github.com/OdaKanta/DifyInterviewForm/internal/turn"
)

// maxUploadBytes bounds recording and material uploads.
const maxUploadBytes = 32 << 20

// Server bundles the echo router and its dependencies.
type Server struct {
	Router *echo.Echo

	gate       *auth.Gate
	store      *session.Store
	controller *turn.Controller
	hub        *Hub
}

// New constructs the HTTP server with routes.
func New(gate *auth.Gate, store *session.Store, controller *turn.Controller) *Server {
	s := &Server{
		gate:       gate,
		store:      store,
		controller: controller,
		hub:        NewHub(),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.POST("/login", s.login)

	g := e.Group("", gate.Middleware())
	g.POST("/cycle", s.cycle)
	g.POST("/material", s.material)
	g.POST("/session/reset", s.reset)
	g.GET("/transcript", s.transcript)
	g.GET("/ws", s.ws)

	s.Router = e
	return s
}

func (s *Server) login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid login payload")
	}
	token, ok := s.gate.Login(req.Username, req.Password)
	if !ok {
		return c.String(http.StatusUnauthorized, "bad credentials")
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token, "user": req.Username})
}

func currentUser(c echo.Context) string {
	user, _ := c.Get("user").(string)
	return user
}

// cycleResponse is what one interaction cycle returns to the page.
type cycleResponse struct {
	Phase          string         `json:"phase"`
	State          string         `json:"state"`
	ConversationID string         `json:"conversation_id"`
	Answer         string         `json:"answer,omitempty"`
	AudioB64       string         `json:"audio,omitempty"`
	Duplicate      bool           `json:"duplicate,omitempty"`
	NoInput        bool           `json:"no_input,omitempty"`
	Turns          []session.Turn `json:"turns"`
}

// cycle runs one interaction cycle: optional recorded audio and/or typed
// text in, the completed exchange out. The whole cycle holds the session,
// so overlapping tabs serialize rather than double-submit.
func (s *Server) cycle(c echo.Context) error {
	user := currentUser(c)

	speech, text, err := readCycleInput(c)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	sess, release := s.store.Acquire(user)
	defer release()

	ctx := c.Request().Context()
	onFragment := func(fragment string) { s.hub.Fragment(user, fragment) }

	out, err := s.controller.Open(ctx, sess, onFragment)
	if err != nil {
		s.hub.Publish(user, fragmentMessage{Type: "error", Error: err.Error()})
		return c.JSON(http.StatusBadGateway, s.response(sess, out))
	}

	if len(speech) > 0 || strings.TrimSpace(text) != "" {
		out, err = s.controller.Submit(ctx, sess, speech, text, onFragment)
		if err != nil {
			s.hub.Publish(user, fragmentMessage{Type: "error", Error: err.Error()})
			return c.JSON(http.StatusBadGateway, s.response(sess, out))
		}
	}

	if out.State == turn.StateComplete && !out.NoInput && !out.Duplicate {
		s.hub.Publish(user, fragmentMessage{Type: "complete", Text: out.Answer})
	}
	return c.JSON(http.StatusOK, s.response(sess, out))
}

func (s *Server) response(sess *session.Session, out turn.Outcome) cycleResponse {
	resp := cycleResponse{
		Phase:          string(turn.PhaseOf(sess)),
		State:          out.State.String(),
		ConversationID: sess.ConversationID,
		Answer:         out.Answer,
		Duplicate:      out.Duplicate,
		NoInput:        out.NoInput,
		Turns:          sess.Turns,
	}
	if len(out.Audio) > 0 {
		resp.AudioB64 = base64.StdEncoding.EncodeToString(out.Audio)
	}
	return resp
}

// readCycleInput accepts either multipart form data with an "audio" file
// and optional "text" field, or a JSON body with a "text" field.
func readCycleInput(c echo.Context) (speech []byte, text string, err error) {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		fh, ferr := c.FormFile("audio")
		if ferr == nil {
			f, oerr := fh.Open()
			if oerr != nil {
				return nil, "", oerr
			}
			defer f.Close()
			speech, err = io.ReadAll(io.LimitReader(f, maxUploadBytes))
			if err != nil {
				return nil, "", err
			}
		}
		text = c.FormValue("text")
		return speech, text, nil
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return nil, "", err
	}
	return nil, req.Text, nil
}

func (s *Server) material(c echo.Context) error {
	user := currentUser(c)
	fh, err := c.FormFile("file")
	if err != nil {
		return c.String(http.StatusBadRequest, "file field required")
	}
	f, err := fh.Open()
	if err != nil {
		return c.String(http.StatusBadRequest, "unreadable file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return c.String(http.StatusBadRequest, "unreadable file")
	}

	sess, release := s.store.Acquire(user)
	defer release()

	contentType := fh.Header.Get("Content-Type")
	if err := s.controller.RegisterMaterial(c.Request().Context(), sess, fh.Filename, contentType, data); err != nil {
		return c.String(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"attachment_id": sess.AttachmentID})
}

func (s *Server) reset(c echo.Context) error {
	s.store.Reset(currentUser(c))
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) transcript(c echo.Context) error {
	sess, release := s.store.Acquire(currentUser(c))
	defer release()
	return c.JSON(http.StatusOK, map[string]any{
		"phase":           string(turn.PhaseOf(sess)),
		"conversation_id": sess.ConversationID,
		"turns":           sess.Turns,
	})
}

func (s *Server) ws(c echo.Context) error {
	s.hub.Serve(currentUser(c), c.Response(), c.Request())
	return nil
}
