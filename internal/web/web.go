// Package web serves the map UI: selectors, the embedded map, reload and
// export.
package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/excel"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/filter"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/models"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/session"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/source"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	cookieName     = "useit"
	keySessionID   = "sid"
	keyUser        = "user"
	ctxCoordinator = "coordinator"
)

type Config struct {
	PageTitle string
	// Password enables the login page when set.
	Password      string
	SessionSecret string
	SessionTTL    time.Duration
	MapHeight     int
}

type Server struct {
	cfg     Config
	store   *session.Store
	metrics http.Handler
	logger  *slog.Logger
}

func NewServer(cfg Config, store *session.Store, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, store: store, metrics: metrics, logger: logger}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	r.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	store := cookie.NewStore([]byte(s.cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(cookieName, store))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.store.Len()})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	r.GET("/login", s.loginPage)
	r.POST("/login", s.login)
	r.GET("/logout", s.logout)

	authorized := r.Group("/")
	authorized.Use(s.authRequired, s.coordinator)
	{
		authorized.GET("/", s.index)
		authorized.GET("/map", s.mapPage)
		authorized.POST("/reload", s.reload)
		authorized.GET("/api/spots", s.spots)
		authorized.GET("/export.xlsx", s.export)
	}
	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}

func (s *Server) authRequired(c *gin.Context) {
	if s.cfg.Password == "" {
		c.Next()
		return
	}
	if sessions.Default(c).Get(keyUser) == nil {
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
		return
	}
	c.Next()
}

// coordinator attaches the session's coordinator, issuing a session ID on
// the first request.
func (s *Server) coordinator(c *gin.Context) {
	sess := sessions.Default(c)
	id, _ := sess.Get(keySessionID).(string)
	if id == "" {
		id = uuid.NewString()
		sess.Set(keySessionID, id)
		if err := sess.Save(); err != nil {
			s.logger.Warn("session save failed", "error", err)
		}
	}
	c.Set(ctxCoordinator, s.store.Get(id))
	c.Next()
}

func coordinatorOf(c *gin.Context) *session.Coordinator {
	return c.MustGet(ctxCoordinator).(*session.Coordinator)
}

func (s *Server) loginPage(c *gin.Context) {
	if s.cfg.Password == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.HTML(http.StatusOK, "login.html", gin.H{"Title": s.cfg.PageTitle})
}

func (s *Server) login(c *gin.Context) {
	if s.cfg.Password != "" && c.PostForm("password") != s.cfg.Password {
		c.HTML(http.StatusOK, "login.html", gin.H{
			"Title": s.cfg.PageTitle,
			"Error": "Nieprawidłowe hasło",
		})
		return
	}
	sess := sessions.Default(c)
	sess.Set(keyUser, true)
	if err := sess.Save(); err != nil {
		s.logger.Warn("session save failed", "error", err)
	}
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	if err := sess.Save(); err != nil {
		s.logger.Warn("session save failed", "error", err)
	}
	c.Redirect(http.StatusFound, "/login")
}

// parseCriteria reads the four selectors from the query or form.
func parseCriteria(c *gin.Context) (models.Criteria, error) {
	var crit models.Criteria
	if err := c.ShouldBind(&crit); err != nil {
		return crit, err
	}
	minScore, err := filter.ParseMinScore(c.Request.FormValue("min_score"))
	if err != nil {
		return crit, err
	}
	crit.MinScore = minScore
	return crit.WithDefaults(), nil
}

func criteriaQuery(c models.Criteria) string {
	q := url.Values{}
	q.Set("category", c.Category)
	q.Set("person", c.Person)
	q.Set("visit", c.Visit)
	q.Set("min_score", filter.FormatMinScore(c.MinScore))
	return q.Encode()
}

func (s *Server) index(c *gin.Context) {
	crit, err := parseCriteria(c)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	co := coordinatorOf(c)
	ds, loadErr := co.Dataset(c.Request.Context())

	data := gin.H{
		"Title":     s.cfg.PageTitle,
		"Criteria":  crit,
		"MinScore":  filter.FormatMinScore(crit.MinScore),
		"MapURL":    "/map?" + criteriaQuery(crit),
		"ExportURL": "/export.xlsx?" + criteriaQuery(crit),
		"Height":    s.cfg.MapHeight,
		"Login":     s.cfg.Password != "",
	}
	if loadErr != nil {
		data["Error"] = userMessage(loadErr)
	}
	if ds != nil {
		data["Dataset"] = ds
		data["Options"] = co.Options(ds)
	}
	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) mapPage(c *gin.Context) {
	crit, err := parseCriteria(c)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	v, err := coordinatorOf(c).View(c.Request.Context(), crit)
	if err != nil {
		c.String(statusFor(err), userMessage(err))
		return
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := v.Map.WriteHTML(c.Writer); err != nil {
		s.logger.Error("map render failed", "error", err)
	}
}

func (s *Server) reload(c *gin.Context) {
	crit, err := parseCriteria(c)
	if err != nil {
		crit = models.AllCriteria()
	}
	coordinatorOf(c).RequestReload()
	c.Redirect(http.StatusSeeOther, "/?"+criteriaQuery(crit))
}

func (s *Server) spots(c *gin.Context) {
	crit, err := parseCriteria(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := coordinatorOf(c).View(c.Request.Context(), crit)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}
	res := gin.H{
		"version":   v.Dataset.Version,
		"loaded_at": v.Dataset.LoadedAt,
		"criteria":  v.Criteria,
		"count":     len(v.Spots),
		"center":    v.Map.Center,
		"spots":     v.Spots,
	}
	if v.Err != nil {
		res["warning"] = userMessage(v.Err)
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) export(c *gin.Context) {
	crit, err := parseCriteria(c)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	v, err := coordinatorOf(c).View(c.Request.Context(), crit)
	if err != nil {
		c.String(statusFor(err), userMessage(err))
		return
	}
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="useit-%d.xlsx"`, v.Dataset.Version))
	c.Status(http.StatusOK)
	if err := excel.WriteSpots(c.Writer, v.Spots, "Miejsca"); err != nil {
		s.logger.Error("export failed", "error", err)
	}
}

func statusFor(err error) int {
	var fetchErr *source.FetchError
	if errors.As(err, &fetchErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func userMessage(err error) string {
	var fetchErr *source.FetchError
	if errors.As(err, &fetchErr) {
		return "Nie udało się pobrać arkusza: " + fetchErr.Err.Error()
	}
	return "Nie udało się przetworzyć arkusza: " + err.Error()
}
