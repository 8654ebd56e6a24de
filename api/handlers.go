/*
handlers.go - HTTP API handlers for the fuel forecasting engine

PURPOSE:
  Exposes scenarios, overrides, evaluation, projection and cost reporting
  via REST API. Handles HTTP request/response, JSON serialization, and
  delegates to the engine and the fuelcost calculator.

ENDPOINTS:
  Drivers:
    GET    /api/drivers                         Driver catalog in evaluation order
    GET    /api/drivers/{driver}                One driver

  Scenarios:
    GET    /api/scenarios                       List scenarios
    POST   /api/scenarios                       Create scenario
    GET    /api/scenarios/{id}                  Get scenario
    DELETE /api/scenarios/{id}                  Delete (refused when locked)
    POST   /api/scenarios/{id}/clone            Clone into a new scenario
    POST   /api/scenarios/{id}/roll-forward     Roll forward to a new as-of date
    POST   /api/scenarios/{id}/lock             Lock (idempotent)
    GET    /api/scenarios/{id}/lineage          Scenario and its ancestors
    GET    /api/scenarios/{id}/history          Audit trail (?driver=)
    GET    /api/compare?a=&b=                   Compare overrides of two scenarios

  Overrides:
    GET    /api/scenarios/{id}/overrides                    Stored overrides
    PUT    /api/scenarios/{id}/overrides                    Set one override
    DELETE /api/scenarios/{id}/overrides/{driver}/{period}  Clear one override

  Evaluation:
    GET    /api/scenarios/{id}/periods/{period}  Full driver set of one period
    GET    /api/scenarios/{id}/projection        ?start=&years=

  Costs:
    GET    /api/scenarios/{id}/costs/{period}    Cost summary of one period
    GET    /api/scenarios/{id}/costs             ?start=&years=&rollup=period|annual|total
    GET    /api/costs/system                     ?scenarios=a,b&start=&years=

  Interchange:
    GET    /api/scenarios/{id}/export            Driver-set JSON
    POST   /api/scenarios/{id}/import            ?mode=merge|replace

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, failed validation
  - 404: Unknown scenario or driver
  - 409: Scenario locked, period frozen, duplicate id
  - 422: Value outside driver domain, invalid horizon or period
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - demo.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/warp/fuel-engine/engine"
	"github.com/warp/fuel-engine/fuelcost"
)

// maxBodyBytes bounds request bodies, including driver-set imports.
const maxBodyBytes = 8 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry   *engine.Registry
	Store      engine.Store
	Manager    *engine.ScenarioManager
	Evaluator  *engine.Evaluator
	Projector  *engine.Projector
	Calculator *fuelcost.Calculator
	Metrics    *Metrics
	Logger     zerolog.Logger

	validate *validator.Validate
}

// NewHandler wires the engine components over store.
func NewHandler(reg *engine.Registry, store engine.Store, calc *fuelcost.Calculator, metrics *Metrics, logger zerolog.Logger) *Handler {
	ev := engine.NewEvaluator(reg, store)
	ev.Logger = &logger
	mgr := engine.NewScenarioManager(reg, store)
	mgr.Logger = &logger

	v := validator.New()
	_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := engine.ParseValue(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		_, err := engine.ParsePeriod(fl.Field().String())
		return err == nil
	})

	return &Handler{
		Registry:   reg,
		Store:      store,
		Manager:    mgr,
		Evaluator:  ev,
		Projector:  engine.NewProjector(ev),
		Calculator: calc,
		Metrics:    metrics,
		Logger:     logger,
		validate:   v,
	}
}

// =============================================================================
// DRIVER HANDLERS
// =============================================================================

// ListDrivers returns the catalog in evaluation order.
// GET /api/drivers
func (h *Handler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	order := h.Registry.Order()
	dtos := make([]DriverDTO, 0, len(order))
	for _, name := range order {
		d, _ := h.Registry.Get(name)
		dtos = append(dtos, toDriverDTO(d))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDriver returns one catalog entry.
// GET /api/drivers/{driver}
func (h *Handler) GetDriver(w http.ResponseWriter, r *http.Request) {
	d, err := h.Registry.Get(engine.DriverName(chi.URLParam(r, "driver")))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDriverDTO(d))
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns all scenarios, oldest first.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	list, err := h.Manager.List(r.Context())
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	dtos := make([]ScenarioDTO, len(list))
	for i, s := range list {
		dtos[i] = toScenarioDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateScenario creates a scenario.
// POST /api/scenarios
func (h *Handler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	var req CreateScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	asOf, _ := time.Parse(dateLayout, req.AsOf)

	s, err := h.Manager.Create(r.Context(), engine.CreateRequest{
		ID:   engine.ScenarioID(req.ID),
		Name: req.Name,
		Type: engine.ScenarioType(req.Type),
		AsOf: asOf,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScenarioDTO(s))
}

// GetScenario returns one scenario.
// GET /api/scenarios/{id}
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	s, err := h.Manager.Get(r.Context(), scenarioID(r))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toScenarioDTO(s))
}

// DeleteScenario removes an unlocked scenario and its overrides.
// DELETE /api/scenarios/{id}
func (h *Handler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Delete(r.Context(), scenarioID(r)); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloneScenario copies a scenario.
// POST /api/scenarios/{id}/clone
func (h *Handler) CloneScenario(w http.ResponseWriter, r *http.Request) {
	var req CloneScenarioRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	ctx := r.Context()
	id := scenarioID(r)

	typ := engine.ScenarioType(req.Type)
	if typ == "" {
		src, err := h.Manager.Get(ctx, id)
		if err != nil {
			h.writeEngineError(w, r, err)
			return
		}
		typ = src.Type
	}

	s, err := h.Manager.Clone(ctx, id, typ)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScenarioDTO(s))
}

// RollForward creates a successor scenario with frozen past periods.
// POST /api/scenarios/{id}/roll-forward
func (h *Handler) RollForward(w http.ResponseWriter, r *http.Request) {
	var req RollForwardRequest
	if !h.decode(w, r, &req) {
		return
	}
	asOf, _ := time.Parse(dateLayout, req.AsOf)

	s, err := h.Manager.RollForward(r.Context(), scenarioID(r), asOf)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScenarioDTO(s))
}

// LockScenario makes a scenario read-only.
// POST /api/scenarios/{id}/lock
func (h *Handler) LockScenario(w http.ResponseWriter, r *http.Request) {
	s, err := h.Manager.Lock(r.Context(), scenarioID(r))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toScenarioDTO(s))
}

// GetLineage returns the scenario followed by its ancestors.
// GET /api/scenarios/{id}/lineage
func (h *Handler) GetLineage(w http.ResponseWriter, r *http.Request) {
	chain, err := h.Manager.Lineage(r.Context(), scenarioID(r))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	dtos := make([]ScenarioDTO, len(chain))
	for i, s := range chain {
		dtos[i] = toScenarioDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetHistory returns the audit trail.
// GET /api/scenarios/{id}/history?driver=coal_price_eastern
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Manager.History(r.Context(), scenarioID(r), engine.DriverName(r.URL.Query().Get("driver")))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CompareScenarios diffs the overrides of two scenarios.
// GET /api/compare?a=budget&b=forecast
func (h *Handler) CompareScenarios(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b := q.Get("a"), q.Get("b")
	if a == "" || b == "" {
		writeError(w, http.StatusBadRequest, "Query parameters a and b are required", nil)
		return
	}
	cmp, err := h.Manager.Compare(r.Context(), engine.ScenarioID(a), engine.ScenarioID(b))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toComparisonDTO(cmp))
}

// =============================================================================
// OVERRIDE HANDLERS
// =============================================================================

// ListOverrides returns the stored overrides of a scenario.
// GET /api/scenarios/{id}/overrides
func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Manager.Overrides(r.Context(), scenarioID(r))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	dtos := make([]OverrideDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toOverrideDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetOverride writes one override.
// PUT /api/scenarios/{id}/overrides
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var req SetOverrideRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, _ := engine.ParsePeriod(req.Period)
	v, _ := engine.ParseValue(req.Value)

	row, err := h.Manager.SetOverride(r.Context(), scenarioID(r), engine.DriverName(req.Driver), p, v)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOverrideDTO(row))
}

// ClearOverride removes one override so the driver falls back to its
// formula, escalation or default.
// DELETE /api/scenarios/{id}/overrides/{driver}/{period}
func (h *Handler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	p, ok := h.periodParam(w, r, chi.URLParam(r, "period"))
	if !ok {
		return
	}
	err := h.Manager.ClearOverride(r.Context(), scenarioID(r), engine.DriverName(chi.URLParam(r, "driver")), p)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// EVALUATION HANDLERS
// =============================================================================

// EvaluatePeriod returns the full driver set of one period.
// GET /api/scenarios/{id}/periods/{period}
func (h *Handler) EvaluatePeriod(w http.ResponseWriter, r *http.Request) {
	p, ok := h.periodParam(w, r, chi.URLParam(r, "period"))
	if !ok {
		return
	}
	set, err := h.Evaluator.Evaluate(r.Context(), scenarioID(r), p)
	h.Metrics.evaluated("period", 1, err)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvaluatedSetDTO(h.Registry, set))
}

// Project evaluates a multi-year projection.
// GET /api/scenarios/{id}/projection?start=2025-01&years=3
func (h *Handler) Project(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	proj, ok := h.projection(w, r)
	if !ok {
		return
	}

	dto := ProjectionDTO{
		ScenarioID:   string(proj.ScenarioID),
		Start:        proj.Start.String(),
		HorizonYears: proj.HorizonYears,
		Boundary:     proj.Calendar.Boundary().String(),
		Periods:      make([]EvaluatedSetDTO, 0, len(proj.Periods)),
	}
	err := proj.Each(ctx, func(set *engine.EvaluatedSet) error {
		dto.Periods = append(dto.Periods, toEvaluatedSetDTO(h.Registry, set))
		return nil
	})
	h.Metrics.evaluated("projection", len(dto.Periods), err)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// projection parses ?start= and ?years= and plans the projection. start
// defaults to the scenario's as-of month and years to 1.
func (h *Handler) projection(w http.ResponseWriter, r *http.Request) (*engine.Projection, bool) {
	return h.projectionFor(w, r, scenarioID(r))
}

func (h *Handler) projectionFor(w http.ResponseWriter, r *http.Request, id engine.ScenarioID) (*engine.Projection, bool) {
	ctx := r.Context()
	q := r.URL.Query()

	years := 1
	if s := q.Get("years"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "years must be an integer", err)
			return nil, false
		}
		years = n
	}

	var start engine.Period
	if s := q.Get("start"); s != "" {
		p, ok := h.periodParam(w, r, s)
		if !ok {
			return nil, false
		}
		start = p
	} else {
		sc, err := h.Manager.Get(ctx, id)
		if err != nil {
			h.writeEngineError(w, r, err)
			return nil, false
		}
		start = engine.MonthOf(sc.AsOf)
	}

	proj, err := h.Projector.Project(ctx, id, start, years)
	if err != nil {
		h.writeEngineError(w, r, err)
		return nil, false
	}
	return proj, true
}

// =============================================================================
// COST HANDLERS
// =============================================================================

// PeriodCosts returns the cost summary of one period.
// GET /api/scenarios/{id}/costs/{period}
func (h *Handler) PeriodCosts(w http.ResponseWriter, r *http.Request) {
	p, ok := h.periodParam(w, r, chi.URLParam(r, "period"))
	if !ok {
		return
	}
	set, err := h.Evaluator.Evaluate(r.Context(), scenarioID(r), p)
	h.Metrics.evaluated("period", 1, err)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	summary, err := h.Calculator.Compute(set)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HorizonCosts returns costs over a projection.
// GET /api/scenarios/{id}/costs?start=2025-01&years=5&rollup=annual
func (h *Handler) HorizonCosts(w http.ResponseWriter, r *http.Request) {
	rollup := r.URL.Query().Get("rollup")
	switch rollup {
	case "":
		rollup = "period"
	case "period", "annual", "total":
	default:
		writeError(w, http.StatusBadRequest, "rollup must be period, annual or total", nil)
		return
	}

	parts, ok := h.costs(w, r, scenarioID(r))
	if !ok {
		return
	}

	switch rollup {
	case "annual":
		years, err := fuelcost.Annual(parts)
		if err != nil {
			h.writeEngineError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, years)
	case "total":
		total, err := fuelcost.Summarize(parts...)
		if err != nil {
			h.writeEngineError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, total)
	default:
		writeJSON(w, http.StatusOK, parts)
	}
}

// SystemCosts adds the horizon totals of several plant scenarios.
// GET /api/costs/system?scenarios=kc-budget,cc-budget&start=2025-01&years=1
func (h *Handler) SystemCosts(w http.ResponseWriter, r *http.Request) {
	var ids []engine.ScenarioID
	for _, s := range strings.Split(r.URL.Query().Get("scenarios"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			ids = append(ids, engine.ScenarioID(s))
		}
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "Query parameter scenarios is required", nil)
		return
	}

	plants := make([]*fuelcost.CostSummary, 0, len(ids))
	for _, id := range ids {
		parts, ok := h.costs(w, r, id)
		if !ok {
			return
		}
		total, err := fuelcost.Summarize(parts...)
		if err != nil {
			h.writeEngineError(w, r, err)
			return
		}
		total.Label = string(id)
		plants = append(plants, total)
	}

	system, err := fuelcost.Combine("system", plants...)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Scenarios cover different spans", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"system": system, "plants": plants})
}

func (h *Handler) costs(w http.ResponseWriter, r *http.Request, id engine.ScenarioID) ([]*fuelcost.CostSummary, bool) {
	proj, ok := h.projectionFor(w, r, id)
	if !ok {
		return nil, false
	}
	parts := make([]*fuelcost.CostSummary, 0, len(proj.Periods))
	err := proj.Each(r.Context(), func(set *engine.EvaluatedSet) error {
		s, err := h.Calculator.Compute(set)
		if err != nil {
			return err
		}
		parts = append(parts, s)
		return nil
	})
	h.Metrics.evaluated("costs", len(parts), err)
	if err != nil {
		h.writeEngineError(w, r, err)
		return nil, false
	}
	return parts, true
}

// =============================================================================
// INTERCHANGE HANDLERS
// =============================================================================

// ExportScenario returns the driver set of a scenario.
// GET /api/scenarios/{id}/export
func (h *Handler) ExportScenario(w http.ResponseWriter, r *http.Request) {
	set, err := h.Manager.ExportDriverSet(r.Context(), scenarioID(r))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", string(set.ScenarioID)+".json"))
	if err := set.WriteJSON(w); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("export write failed")
	}
}

// ImportScenario writes a driver set into a scenario, all or nothing.
// POST /api/scenarios/{id}/import?mode=merge
func (h *Handler) ImportScenario(w http.ResponseWriter, r *http.Request) {
	mode := engine.ImportMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = engine.ImportMerge
	}
	if mode != engine.ImportMerge && mode != engine.ImportReplace {
		writeError(w, http.StatusBadRequest, "mode must be merge or replace", nil)
		return
	}

	set, err := engine.ReadDriverSet(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid driver set", err)
		return
	}

	id := scenarioID(r)
	n, err := h.Manager.ImportDriverSet(r.Context(), id, set, mode)
	h.Metrics.imported(string(mode), err)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{ScenarioID: string(id), Mode: string(mode), Imported: n})
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness and, when the store supports it, database reach.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unreachable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "drivers": h.Registry.Len()})
}

// =============================================================================
// HELPERS
// =============================================================================

func scenarioID(r *http.Request) engine.ScenarioID {
	return engine.ScenarioID(chi.URLParam(r, "id"))
}

func (h *Handler) periodParam(w http.ResponseWriter, r *http.Request, s string) (engine.Period, bool) {
	p, err := engine.ParsePeriod(s)
	if err != nil {
		h.writeEngineError(w, r, err)
		return engine.Period{}, false
	}
	return p, true
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return h.check(w, dst)
}

// decodeOptional is decode for endpoints whose body may be empty.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return h.check(w, dst)
	}
	return h.decode(w, r, dst)
}

func (h *Handler) check(w http.ResponseWriter, dst any) bool {
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", describeValidation(err))
		return false
	}
	return true
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		} else {
			msgs[i] = fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag())
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// statusFor maps the engine error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case engine.IsNotFound(err), errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case engine.IsLocked(err), errors.Is(err, engine.ErrScenarioExists):
		return http.StatusConflict
	case engine.IsClientError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrInvalidDefinition), errors.Is(err, engine.ErrCyclicDependency):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeError(w, status, "Internal error", err)
		return
	}
	writeError(w, status, http.StatusText(status), err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
