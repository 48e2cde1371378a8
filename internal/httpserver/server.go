package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Hashira10/render/internal/cache"
	"github.com/Hashira10/render/internal/config"
	"github.com/Hashira10/render/internal/database"
	"github.com/Hashira10/render/internal/geo"
	"github.com/Hashira10/render/internal/importer"
	"github.com/Hashira10/render/internal/metrics"
	"github.com/Hashira10/render/internal/middleware"
	"github.com/Hashira10/render/internal/models"
	"github.com/Hashira10/render/internal/report"
	"github.com/Hashira10/render/internal/storage"
)

// Store combines the repositories the server needs. Both the in-memory
// and the Postgres stores satisfy it.
type Store interface {
	storage.RecipientRepo
	storage.GroupRepo
	storage.MessageRepo
	storage.EventLogStore
}

// Dependencies holds all external dependencies for the server. Store,
// when set, overrides the DB-or-in-memory selection; tests use it to
// inject failing stores.
type Dependencies struct {
	DB      *database.PostgresDB
	Redis   *database.RedisDB
	Store   Store
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Server wraps HTTP handlers and the report engine.
type Server struct {
	store   Store
	reports *report.Service
	geo     geo.Provider
	db      *database.PostgresDB
	redis   *database.RedisDB
	logger  *zap.Logger
	config  *config.Config
	metrics *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	store := deps.Store
	if store == nil {
		if deps.DB != nil {
			store = storage.NewPostgresStore(deps.DB.Pool)
		} else {
			store = storage.NewInMemoryStore()
		}
	}

	var overviewCache report.OverviewCache
	if deps.Redis != nil {
		overviewCache = cache.NewReportCache(deps.Redis.Client, deps.Config.Report.CacheTTL, deps.Logger)
	}

	var geoProvider geo.Provider
	if deps.Config.Geo.Enabled {
		p, err := geo.NewMaxMindProvider(deps.Config.Geo.DatabasePath)
		if err != nil {
			deps.Logger.Warn("failed to initialize geo provider, continuing without", zap.Error(err))
		} else {
			geoProvider = p
		}
	}

	reports := report.NewService(store, overviewCache, deps.Metrics, deps.Logger, deps.Config.Report.NoDataLabel)

	s := &Server{
		store:   store,
		reports: reports,
		geo:     geoProvider,
		db:      deps.DB,
		redis:   deps.Redis,
		logger:  deps.Logger,
		config:  deps.Config,
		metrics: deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Recipients
	mux.HandleFunc("/api/recipients", s.handleRecipients)
	mux.HandleFunc("/api/recipients/", s.handleRecipientByID)

	// Recipient groups
	mux.HandleFunc("/api/recipient_groups", s.handleGroups)
	mux.HandleFunc("/api/recipient_groups/", s.handleGroupSubroutes)

	// Messages
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/messages/", s.handleMessageByID)

	// Event logs (read-only)
	mux.HandleFunc("/api/click_logs", s.handleClickLogs)
	mux.HandleFunc("/api/credential_logs", s.handleCredentialLogs)

	// Tracking
	mux.HandleFunc("/track/", s.handleTrack)
	mux.HandleFunc("/capture/", s.handleCapture)

	// Reports
	mux.HandleFunc("/reports/overview", s.handleOverview)
	mux.HandleFunc("/reports/campaigns/", s.handleCampaignReport)

	return mux
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if s.db != nil {
		if err := s.db.Health(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if s.redis != nil {
		if err := s.redis.Health(r.Context()); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// ---- Recipients CRUD ----

func (s *Server) handleRecipients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.store.ListRecipients(r.Context())
		if err != nil {
			s.logger.Error("failed to list recipients", zap.Error(err))
			s.errorResponse(w, "failed to list", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, list)

	case http.MethodPost:
		var rec models.Recipient
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := rec.Validate(); err != nil {
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if err := s.store.UpsertRecipient(r.Context(), &rec); err != nil {
			s.errorResponse(w, "failed to save: "+err.Error(), http.StatusBadRequest)
			return
		}
		s.jsonResponse(w, rec)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRecipientByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/recipients/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.store.GetRecipient(r.Context(), id)
		if err != nil {
			s.logger.Error("failed to get recipient", zap.Error(err))
			s.errorResponse(w, "error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if rec == nil {
			http.NotFound(w, r)
			return
		}
		s.jsonResponse(w, rec)

	case http.MethodDelete:
		if err := s.store.DeleteRecipient(r.Context(), id); err != nil {
			s.errorResponse(w, "failed to delete: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---- Recipient Groups ----

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.store.ListGroups(r.Context())
		if err != nil {
			s.logger.Error("failed to list groups", zap.Error(err))
			s.errorResponse(w, "failed to list", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, list)

	case http.MethodPost:
		var g models.RecipientGroup
		if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := g.Validate(); err != nil {
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		for i := range g.Recipients {
			if g.Recipients[i].ID == "" {
				g.Recipients[i].ID = uuid.NewString()
			}
		}
		if err := s.store.UpsertGroup(r.Context(), &g); err != nil {
			s.errorResponse(w, "failed to save: "+err.Error(), http.StatusBadRequest)
			return
		}
		s.jsonResponse(w, g)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGroupSubroutes dispatches /api/recipient_groups/{id},
// /{id}/recipients and /{id}/import.
func (s *Server) handleGroupSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/recipient_groups/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if len(parts) == 2 {
		switch parts[1] {
		case "recipients":
			s.handleGroupAddRecipient(w, r, id)
		case "import":
			s.handleGroupImport(w, r, id)
		default:
			http.NotFound(w, r)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		g, err := s.store.GetGroup(r.Context(), id)
		if err != nil {
			s.errorResponse(w, "error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if g == nil {
			http.NotFound(w, r)
			return
		}
		s.jsonResponse(w, g)

	case http.MethodDelete:
		if err := s.store.DeleteGroup(r.Context(), id); err != nil {
			s.errorResponse(w, "failed to delete: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGroupAddRecipient(w http.ResponseWriter, r *http.Request, groupID string) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var rec models.Recipient
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := rec.Validate(); err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if err := s.store.AddRecipient(r.Context(), groupID, rec); err != nil {
		if errors.Is(err, storage.ErrGroupNotFound) {
			http.NotFound(w, r)
			return
		}
		s.errorResponse(w, "failed to save: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, rec)
}

// handleGroupImport bulk-loads a CSV roster into a group.
func (s *Server) handleGroupImport(w http.ResponseWriter, r *http.Request, groupID string) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			s.errorResponse(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			s.errorResponse(w, "file field missing: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		body = file
	}

	recipients, err := importer.ParseRecipients(body)
	if err != nil {
		s.errorResponse(w, "failed to parse roster: "+err.Error(), http.StatusBadRequest)
		return
	}

	for _, rec := range recipients {
		if err := s.store.AddRecipient(r.Context(), groupID, rec); err != nil {
			if errors.Is(err, storage.ErrGroupNotFound) {
				http.NotFound(w, r)
				return
			}
			s.errorResponse(w, "failed to save: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	s.logger.Info("roster imported",
		zap.String("group_id", groupID),
		zap.Int("recipients", len(recipients)),
	)
	s.jsonResponse(w, map[string]int{"imported": len(recipients)})
}

// ---- Messages ----

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.store.ListMessages(r.Context())
		if err != nil {
			s.logger.Error("failed to list messages", zap.Error(err))
			s.errorResponse(w, "failed to list", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, list)

	case http.MethodPost:
		var req struct {
			models.Message
			RecipientGroupID string `json:"recipient_group_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		m := req.Message
		if err := m.Validate(); err != nil {
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}

		// A group ID resolves to the group's current roster, snapshotted
		// onto the message at send time.
		if req.RecipientGroupID != "" {
			g, err := s.store.GetGroup(r.Context(), req.RecipientGroupID)
			if err != nil {
				s.errorResponse(w, "error: "+err.Error(), http.StatusInternalServerError)
				return
			}
			if g == nil {
				s.errorResponse(w, "recipient group not found", http.StatusBadRequest)
				return
			}
			m.RecipientGroup = *g
			m.Recipients = g.Recipients
		}

		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.SentAt.IsZero() {
			m.SentAt = time.Now().UTC()
		}
		if err := s.store.SaveMessage(r.Context(), &m); err != nil {
			s.errorResponse(w, "failed to save: "+err.Error(), http.StatusBadRequest)
			return
		}

		s.reports.InvalidateCache(r.Context())
		s.jsonResponse(w, m)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleMessageByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/messages/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m, err := s.store.GetMessage(r.Context(), id)
	if err != nil {
		s.errorResponse(w, "error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if m == nil {
		http.NotFound(w, r)
		return
	}
	s.jsonResponse(w, m)
}

// ---- Event Logs ----

func (s *Server) handleClickLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	list, err := s.store.ListClickLogs(r.Context())
	if err != nil {
		s.errorResponse(w, "failed to list", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, list)
}

func (s *Server) handleCredentialLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	list, err := s.store.ListCredentialLogs(r.Context())
	if err != nil {
		s.errorResponse(w, "failed to list", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, list)
}

// ---- Tracking ----

// trackingPath splits /{prefix}/{recipientID}/{messageID}/{platform}.
func trackingPath(path, prefix string) (recipientID, messageID, platform string, ok bool) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// handleTrack records a link open and redirects the victim onward. One
// row is kept per recipient, message and platform; repeated opens of
// the same mail do not add rows.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	recipientID, messageID, platform, ok := trackingPath(r.URL.Path, "/track/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	redirectURL := r.URL.Query().Get("redirect")
	if redirectURL == "" {
		redirectURL = s.config.Server.BaseURL + "/login/" + platform
	}

	seen, err := s.store.HasClick(r.Context(), recipientID, messageID, platform)
	if err != nil {
		s.logger.Error("click dedup check failed", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	if seen {
		if s.metrics != nil {
			s.metrics.RecordDuplicateClick(platform)
		}
		http.Redirect(w, r, redirectURL, http.StatusFound)
		return
	}

	log := &models.ClickLog{
		ID:        uuid.NewString(),
		MessageID: messageID,
		Platform:  platform,
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		Timestamp: time.Now().UTC(),
	}

	// Unknown recipients still produce a row; the aggregator skips them.
	log.Recipient = s.lookupRecipient(r, recipientID)
	s.enrichGeo(log.IPAddress, &log.GeoCountry)

	if err := s.store.SaveClickLog(r.Context(), log); err != nil {
		s.logger.Error("failed to save click", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("click recorded",
		zap.String("recipient_id", recipientID),
		zap.String("message_id", messageID),
		zap.String("platform", platform),
	)
	if s.metrics != nil {
		s.metrics.RecordClick(platform)
	}
	s.reports.InvalidateCache(r.Context())

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// handleCapture records a credential submission from a spoofed login
// page. Every submission is kept; there is no dedup on this path.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	recipientID, messageID, platform, ok := trackingPath(r.URL.Path, "/capture/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.errorResponse(w, "invalid form", http.StatusBadRequest)
		return
	}
	data := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		data[key] = r.PostForm.Get(key)
	}

	log := &models.CredentialLog{
		ID:        uuid.NewString(),
		MessageID: messageID,
		Platform:  platform,
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	log.Recipient = s.lookupRecipient(r, recipientID)
	s.enrichGeo(log.IPAddress, &log.GeoCountry)

	if err := s.store.SaveCredentialLog(r.Context(), log); err != nil {
		s.logger.Error("failed to save credential submission", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("credential submission recorded",
		zap.String("recipient_id", recipientID),
		zap.String("message_id", messageID),
		zap.String("platform", platform),
	)
	if s.metrics != nil {
		s.metrics.RecordSubmission(platform)
	}
	s.reports.InvalidateCache(r.Context())

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK"))
}

// lookupRecipient resolves the recipient an event belongs to. A store
// failure is logged, not swallowed: the event is still recorded, but
// unattributed, and the log line distinguishes an outage from a
// genuinely unknown recipient.
func (s *Server) lookupRecipient(r *http.Request, recipientID string) *models.Recipient {
	rec, err := s.store.GetRecipient(r.Context(), recipientID)
	if err != nil {
		s.logger.Error("recipient lookup failed, recording unattributed",
			zap.Error(err),
			zap.String("recipient_id", recipientID),
			zap.String("path", r.URL.Path),
		)
		return nil
	}
	return rec
}

func (s *Server) enrichGeo(ip string, dst *string) {
	if s.geo == nil || ip == "" {
		return
	}
	start := time.Now()
	country, err := s.geo.Lookup(ip)
	if s.metrics != nil {
		s.metrics.RecordGeoLookup(err == nil && country != "", time.Since(start))
	}
	if err != nil {
		s.logger.Debug("geo lookup failed", zap.String("ip", ip), zap.Error(err))
		return
	}
	*dst = country
}

// ---- Reports ----

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ov, err := s.reports.Overview(r.Context())
	if err != nil {
		if errors.Is(err, report.ErrDataUnavailable) {
			s.errorResponse(w, "campaign data unavailable", http.StatusServiceUnavailable)
			return
		}
		s.logger.Error("failed to build overview", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, ov)
}

func (s *Server) handleCampaignReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/reports/campaigns/")
	detail, err := s.reports.Campaign(r.Context(), name)
	if err != nil {
		var notFound *report.NotFoundError
		if errors.As(err, &notFound) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "campaign not found",
				"name":  notFound.Name,
			})
			return
		}
		if errors.Is(err, report.ErrDataUnavailable) {
			s.errorResponse(w, "campaign data unavailable", http.StatusServiceUnavailable)
			return
		}
		s.logger.Error("failed to resolve campaign", zap.Error(err), zap.String("campaign", name))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, detail)
}

// ---- Helper Methods ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
