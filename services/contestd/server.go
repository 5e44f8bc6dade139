package contestd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"

	"stakecurate/core/events"
	"stakecurate/gateway/middleware"
	"stakecurate/integrations/exports"
	"stakecurate/native/audit"
	"stakecurate/native/bank"
	"stakecurate/native/common"
	"stakecurate/native/contest"
	"stakecurate/native/oracle"
	"stakecurate/observability"
	telemetry "stakecurate/observability/otel"
)

const maxBodyBytes = 1 << 20

// Options are the dependencies of the HTTP server.
type Options struct {
	Engine      *contest.Engine
	Bank        *bank.Ledger
	Audit       *audit.Log
	Feed        *events.Feed
	Prices      *oracle.StaticSource
	Auth        middleware.AuthConfig
	RateLimit   RateLimitConfig
	CORSOrigins []string
	EventBuffer int
	Logger      *slog.Logger
}

// Server exposes the contest ledger over HTTP.
type Server struct {
	engine      *contest.Engine
	bank        *bank.Ledger
	audit       *audit.Log
	feed        *events.Feed
	prices      *oracle.StaticSource
	auth        *middleware.Authenticator
	limiter     *middleware.RateLimiter
	logger      *slog.Logger
	metrics     *observability.ContestdMetrics
	eventBuffer int

	router http.Handler
}

// NewServer wires the router. Engine and Bank are required.
func NewServer(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("contestd: engine required")
	}
	if opts.Bank == nil {
		return nil, errors.New("contestd: bank required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	s := &Server{
		engine:      opts.Engine,
		bank:        opts.Bank,
		audit:       opts.Audit,
		feed:        opts.Feed,
		prices:      opts.Prices,
		auth:        middleware.NewAuthenticator(opts.Auth, logger),
		logger:      logger,
		metrics:     observability.Contestd(),
		eventBuffer: opts.EventBuffer,
	}
	s.limiter = middleware.NewRateLimiter(map[string]middleware.RateLimit{
		"write": {RatePerSecond: opts.RateLimit.WritePerSecond, Burst: opts.RateLimit.WriteBurst},
		"read":  {RatePerSecond: opts.RateLimit.ReadPerSecond, Burst: opts.RateLimit.ReadBurst},
	}, logger)
	s.router = s.buildRouter(opts.CORSOrigins)
	return s, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: origins}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v chi.Router) {
		v.Use(middleware.Observe(contest.ModuleName, s.logger))
		v.Use(s.auth.Identify)

		v.Group(func(read chi.Router) {
			read.Use(s.limiter.Middleware("read"))
			read.Get("/contests", s.handleListContests)
			read.Get("/contests/{id}", s.handleGetContest)
			read.Get("/contests/{id}/stakes/{account}", s.handleGetStake)
			read.Get("/contests/{id}/participants", s.handleParticipants)
			read.Get("/contests/{id}/whitelist/{account}", s.handleIsWhitelisted)
			read.Get("/contests/{id}/settlement", s.handleGetSettlement)
			read.Get("/settlements", s.handleSettlements)
			read.Get("/accounts/{account}/stakes", s.handleAccountStakes)
			read.Get("/accounts/{account}/balance", s.handleBalance)
			read.Get("/accounts/{account}/deposits", s.handleListDeposits)
			read.Get("/fee", s.handleGetFee)
			read.Get("/settings", s.handleSettings)
			read.Get("/prices/{token}", s.handleGetPrice)
			read.Get("/audit/interactions/{session}", s.handleAuditSession)
			read.Get("/audit/communities/{community}/cost", s.handleAuditCost)
			read.Get("/audit/profile", s.handleAuditProfile)
			read.Get("/audit/classifications/{session}", s.handleGetClassification)
			read.Get("/events", s.handleEvents)
		})

		v.Group(func(write chi.Router) {
			write.Use(s.auth.Require)
			write.Use(s.limiter.Middleware("write"))
			write.Post("/contests", s.handleCreate)
			write.Post("/contests/{id}/stakes", s.handleStake)
			write.Post("/contests/{id}/whitelist/{account}", s.handleWhitelist(true))
			write.Delete("/contests/{id}/whitelist/{account}", s.handleWhitelist(false))
			write.Post("/contests/{id}/close", s.handleClose)
			write.Post("/accounts/{account}/deposits", s.handleDeposit)
			write.Put("/admin/fee", s.handleSetFee)
			write.Post("/admin/pause", s.handlePause(true))
			write.Post("/admin/resume", s.handlePause(false))
			write.Put("/admin/agents", s.handleSetAgents)
			write.Put("/admin/platform", s.handleSetPlatform)
			write.Put("/admin/prices/{token}", s.handleSetPrice)
			write.Post("/audit/interactions", s.handleAuditAppend)
			write.Put("/admin/audit/profile", s.handleSetAuditProfile)
			write.Post("/audit/classifications", s.handleClassify)
			write.Put("/audit/classifications/{session}/review", s.handleReview)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.engine.GetFeeRate(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// contestView adds the derived lifecycle status to a contest record.
type contestView struct {
	*contest.Contest
	Status contest.Status `json:"status"`
}

func (s *Server) view(c *contest.Contest) contestView {
	return contestView{Contest: c, Status: c.Status(s.engine.Now())}
}

type createRequest struct {
	Kind               contest.Kind         `json:"kind"`
	Title              string               `json:"title"`
	Description        string               `json:"description"`
	Options            []contest.OptionSpec `json:"options"`
	Duration           string               `json:"duration"`
	BasePrize          *uint256.Int         `json:"basePrize"`
	CreatorSharePct    uint8                `json:"creatorSharePct"`
	BackerSharePct     uint8                `json:"backerSharePct"`
	IsPublic           bool                 `json:"isPublic"`
	AllowCreatorStake  bool                 `json:"allowCreatorStake"`
	MaxStakePerAccount *uint256.Int         `json:"maxStakePerAccount"`
	MaxParticipants    uint32               `json:"maxParticipants"`
	// Attached defaults to the base prize. Any excess over prize plus
	// storage cost is refunded to the caller's balance.
	Attached *uint256.Int `json:"attached"`
}

func (req createRequest) params() (contest.CreateParams, error) {
	duration, err := time.ParseDuration(strings.TrimSpace(req.Duration))
	if err != nil || duration <= 0 {
		return contest.CreateParams{}, common.Validation("create", "duration must be a positive duration such as 72h")
	}
	attached := req.Attached
	if attached == nil {
		attached = req.BasePrize
	}
	return contest.CreateParams{
		Kind:               req.Kind,
		Title:              req.Title,
		Description:        req.Description,
		Options:            req.Options,
		Duration:           uint64(duration),
		BasePrize:          req.BasePrize,
		CreatorSharePct:    req.CreatorSharePct,
		BackerSharePct:     req.BackerSharePct,
		IsPublic:           req.IsPublic,
		AllowCreatorStake:  req.AllowCreatorStake,
		MaxStakePerAccount: req.MaxStakePerAccount,
		MaxParticipants:    req.MaxParticipants,
		Attached:           attached,
	}, nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	var req createRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	params, err := req.params()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, span := telemetry.StartSpan(r.Context(), "contest.create", attribute.String("kind", string(params.Kind)))
	defer span.End()
	created, err := s.engine.Create(ctx, caller, params)
	s.metrics.RecordOperation("create", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.refreshActive(ctx)
	writeJSON(w, http.StatusCreated, s.view(created))
}

type stakeRequest struct {
	Option uint32       `json:"option"`
	Amount *uint256.Int `json:"amount"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	id, ok := contestID(w, r)
	if !ok {
		return
	}
	var req stakeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, span := telemetry.StartSpan(r.Context(), "contest.stake", attribute.Int64("contest_id", int64(id)))
	defer span.End()
	entry, err := s.engine.Stake(ctx, caller, id, req.Option, req.Amount)
	s.metrics.RecordOperation("stake", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type closeResponse struct {
	Settlement *contest.Settlement     `json:"settlement"`
	Dispatch   *contest.DispatchReport `json:"dispatch"`
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	id, ok := contestID(w, r)
	if !ok {
		return
	}
	ctx, span := telemetry.StartSpan(r.Context(), "contest.close", attribute.Int64("contest_id", int64(id)))
	defer span.End()
	start := time.Now()
	settlement, report, err := s.engine.Close(ctx, caller, id)
	s.metrics.RecordOperation("close", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.ObserveClose(time.Since(start))
	s.refreshActive(ctx)
	writeJSON(w, http.StatusOK, closeResponse{Settlement: settlement, Dispatch: report})
}

func (s *Server) handleWhitelist(allowed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := middleware.CallerFromContext(r.Context())
		id, ok := contestID(w, r)
		if !ok {
			return
		}
		account := chi.URLParam(r, "account")
		var err error
		if allowed {
			err = s.engine.WhitelistAdd(r.Context(), caller, id, account)
		} else {
			err = s.engine.WhitelistRemove(r.Context(), caller, id, account)
		}
		s.metrics.RecordOperation("whitelist", err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleListContests(w http.ResponseWriter, r *http.Request) {
	var (
		list []*contest.Contest
		err  error
	)
	if active, _ := strconv.ParseBool(r.URL.Query().Get("active")); active {
		list, err = s.engine.ListActive(r.Context())
	} else {
		list, err = s.engine.ListContests(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]contestView, len(list))
	for i, c := range list {
		out[i] = s.view(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetContest(w http.ResponseWriter, r *http.Request) {
	id, ok := contestID(w, r)
	if !ok {
		return
	}
	c, err := s.engine.GetContest(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(c))
}

func (s *Server) handleGetStake(w http.ResponseWriter, r *http.Request) {
	id, ok := contestID(w, r)
	if !ok {
		return
	}
	entry, err := s.engine.GetStake(r.Context(), id, chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	id, ok := contestID(w, r)
	if !ok {
		return
	}
	list, err := s.engine.Participants(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleIsWhitelisted(w http.ResponseWriter, r *http.Request) {
	id, ok := contestID(w, r)
	if !ok {
		return
	}
	allowed, err := s.engine.IsWhitelisted(r.Context(), id, chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"whitelisted": allowed})
}

func (s *Server) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	id, ok := contestID(w, r)
	if !ok {
		return
	}
	settlement, err := s.engine.GetSettlement(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

// handleSettlements lists every settlement as JSON, or as an export file when
// format is csv or jsonl.
func (s *Server) handleSettlements(w http.ResponseWriter, r *http.Request) {
	settlements, err := s.engine.Settlements(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var (
		body        []byte
		sum         string
		contentType string
	)
	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", "json":
		writeJSON(w, http.StatusOK, nonNil(settlements))
		return
	case "csv":
		body, sum, err = exports.SettlementsCSV(settlements)
		contentType = "text/csv"
	case "jsonl":
		body, sum, err = exports.SettlementsJSONL(settlements)
		contentType = "application/x-ndjson"
	default:
		badRequest(w, fmt.Sprintf("unsupported format %q", format))
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Checksum-SHA256", sum)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleAccountStakes(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.AccountStakes(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

type balanceResponse struct {
	Account string       `json:"account"`
	Balance *uint256.Int `json:"balance"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	balance, err := s.bank.Balance(account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Account: account, Balance: balance})
}

type depositRequest struct {
	Token  string       `json:"token"`
	Amount *uint256.Int `json:"amount"`
	Memo   string       `json:"memo"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	account := chi.URLParam(r, "account")
	if account != caller {
		s.writeError(w, r, common.Unauthorized("deposit", "%s cannot deposit for %s", caller, account))
		return
	}
	var req depositRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	deposit, err := s.bank.Deposit(r.Context(), account, req.Token, req.Amount, req.Memo)
	s.metrics.RecordOperation("deposit", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, deposit)
}

func (s *Server) handleListDeposits(w http.ResponseWriter, r *http.Request) {
	list, err := s.bank.Deposits(chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleGetFee(w http.ResponseWriter, r *http.Request) {
	bps, err := s.engine.GetFeeRate(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"feeBps": bps})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.engine.Settings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FeeBps uint32 `json:"feeBps"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	settings, err := s.engine.SetFeeRate(r.Context(), middleware.CallerFromContext(r.Context()), req.FeeBps)
	s.respondSettings(w, r, "set_fee", settings, err)
}

func (s *Server) handlePause(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := middleware.CallerFromContext(r.Context())
		var (
			settings *contest.Settings
			err      error
		)
		op := "resume"
		if paused {
			op = "pause"
			settings, err = s.engine.Pause(r.Context(), caller)
		} else {
			settings, err = s.engine.Resume(r.Context(), caller)
		}
		if err == nil {
			s.metrics.SetPause(settings.Paused)
		}
		s.respondSettings(w, r, op, settings, err)
	}
}

func (s *Server) handleSetAgents(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Agents []string `json:"agents"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	settings, err := s.engine.SetAgents(r.Context(), middleware.CallerFromContext(r.Context()), req.Agents)
	s.respondSettings(w, r, "set_agents", settings, err)
}

func (s *Server) handleSetPlatform(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account string `json:"account"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	settings, err := s.engine.SetPlatformAccount(r.Context(), middleware.CallerFromContext(r.Context()), req.Account)
	s.respondSettings(w, r, "set_platform_account", settings, err)
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	if s.prices == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "price source disabled"})
		return
	}
	price, err := s.prices.GetPrice(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.writeError(w, r, common.NotFound("price", "%v", err))
		return
	}
	writeJSON(w, http.StatusOK, price)
}

type priceRequest struct {
	USDMicros uint64 `json:"usdMicros"`
	Decimals  uint8  `json:"decimals"`
	Enabled   *bool  `json:"enabled"`
}

// handleSetPrice records a fresh owner-supplied quote. It is the only path
// that moves a price's UpdatedAt forward.
func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	if s.prices == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "price source disabled"})
		return
	}
	var req priceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	const op = string(contest.OpSetTokenPrice)
	token := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "token")))
	err := s.engine.Authorize(r.Context(), contest.OpSetTokenPrice, middleware.CallerFromContext(r.Context()))
	if err == nil && req.USDMicros == 0 {
		err = common.Validation(op, "usdMicros must be positive")
	}
	if err != nil {
		s.metrics.RecordOperation(op, err)
		s.writeError(w, r, err)
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	price := oracle.Price{Token: token, USDMicros: req.USDMicros, Decimals: req.Decimals, Enabled: enabled, UpdatedAt: time.Now()}
	s.prices.Set(price)
	s.metrics.RecordOperation(op, nil)
	s.logger.Info("token price updated", slog.String("token", token), slog.Uint64("usd_micros", req.USDMicros))
	writeJSON(w, http.StatusOK, price)
}

func (s *Server) respondSettings(w http.ResponseWriter, r *http.Request, op string, settings *contest.Settings, err error) {
	s.metrics.RecordOperation(op, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleAuditAppend(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w) {
		return
	}
	var req audit.AppendParams
	if !decodeJSON(w, r, &req) {
		return
	}
	record, err := s.audit.Append(r.Context(), middleware.CallerFromContext(r.Context()), req)
	s.metrics.RecordOperation("audit_append", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleAuditSession(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w) {
		return
	}
	list, err := s.audit.Session(r.Context(), chi.URLParam(r, "session"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAuditCost(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w) {
		return
	}
	community := chi.URLParam(r, "community")
	total, err := s.audit.TotalCost(r.Context(), community)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"communityId": community, "costMicroUsd": total})
}

func (s *Server) auditEnabled(w http.ResponseWriter) bool {
	if s.audit == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "audit log disabled"})
		return false
	}
	return true
}

func (s *Server) handleAuditProfile(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w) {
		return
	}
	profile, err := s.audit.Profile(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleSetAuditProfile(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w) {
		return
	}
	var req audit.ProfileParams
	if !decodeJSON(w, r, &req) {
		return
	}
	profile, err := s.audit.SetProfile(r.Context(), middleware.CallerFromContext(r.Context()), req)
	s.metrics.RecordOperation(string(contest.OpAuditProfile), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w) {
		return
	}
	var req audit.ClassifyParams
	if !decodeJSON(w, r, &req) {
		return
	}
	record, err := s.audit.Classify(r.Context(), middleware.CallerFromContext(r.Context()), req)
	s.metrics.RecordOperation("audit_classify", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleGetClassification(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w) {
		return
	}
	record, err := s.audit.Classification(r.Context(), chi.URLParam(r, "session"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type reviewRequest struct {
	FinalLabel string `json:"finalLabel"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w) {
		return
	}
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	record, err := s.audit.Review(r.Context(), middleware.CallerFromContext(r.Context()), chi.URLParam(r, "session"), req.FinalLabel)
	s.metrics.RecordOperation(string(contest.OpAuditReview), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) refreshActive(ctx context.Context) {
	active, err := s.engine.ListActive(ctx)
	if err != nil {
		s.logger.Warn("active contest count unavailable", slog.Any("error", err))
		return
	}
	s.metrics.SetActive(len(active))
}

func contestID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "contest id must be an unsigned integer")
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			badRequest(w, "request body required")
			return false
		}
		badRequest(w, "invalid request: "+err.Error())
		return false
	}
	return true
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
