package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/memorialkit/binder"
	"github.com/dmitrymomot/memorialkit/handler"
	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/entitlement"
	"github.com/dmitrymomot/memorialkit/pkg/ratelimit"
	"github.com/dmitrymomot/memorialkit/pkg/session"
	"github.com/dmitrymomot/memorialkit/svc/memorial"
)

// MemorialModule serves memorial creation.
type MemorialModule struct {
	memorials    memorial.Service
	limiter      *ratelimit.Limiter
	errorHandler handler.ErrorHandler[handler.Context]
}

// NewMemorialModule creates the memorial module. A nil limiter disables
// throttling.
func NewMemorialModule(
	memorials memorial.Service,
	limiter *ratelimit.Limiter,
	errorHandler handler.ErrorHandler[handler.Context],
) *MemorialModule {
	return &MemorialModule{
		memorials:    memorials,
		limiter:      limiter,
		errorHandler: errorHandler,
	}
}

func (m *MemorialModule) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(session.Require())
	if m.limiter != nil {
		r.Use(ratelimit.Middleware(m.limiter, ratelimit.ProfileStrict, ratelimit.AccountOrIP(session.AccountID)))
	}

	r.Post("/", handler.Wrap(m.create,
		handler.WithBinder[handler.Context, CreateMemorialRequest](binder.BindJSON()),
		handler.WithErrorHandler[handler.Context, CreateMemorialRequest](m.errorHandler),
	))

	return r
}

// CreateMemorialRequest is the body of POST /api/memorials.
type CreateMemorialRequest struct {
	Name string `json:"name"`
}

// MemorialResponse is a created memorial with the quota state after it.
type MemorialResponse struct {
	Memorial     account.Memorial `json:"memorial"`
	Flagged      bool             `json:"flagged"`
	CurrentCount int64            `json:"currentCount"`
	MaxAllowed   int64            `json:"maxAllowed"`
}

// DeniedResponse is the 403 body of a refused creation.
type DeniedResponse struct {
	entitlement.Decision
	Error *handler.ErrorDetail `json:"error"`
}

func (m *MemorialModule) create(ctx handler.Context, req CreateMemorialRequest) handler.Response {
	id, ok := session.FromContext(ctx)
	if !ok {
		return handler.Error(httpError(account.ErrMissingAccountID))
	}

	res, err := m.memorials.Create(ctx, memorial.CreateInput{
		AccountID: id.AccountID,
		Name:      req.Name,
		Snapshot:  &id.Snapshot,
	})
	if err != nil {
		var denied *memorial.DeniedError
		if errors.As(err, &denied) {
			return deniedResponse(denied.Decision)
		}
		return handler.Error(httpError(err))
	}

	return handler.JSON(MemorialResponse{
		Memorial:     res.Memorial,
		Flagged:      res.Flagged,
		CurrentCount: res.Count,
		MaxAllowed:   res.Decision.MaxAllowed,
	}, handler.WithJSONStatus(http.StatusCreated))
}

func deniedResponse(d entitlement.Decision) handler.Response {
	code, message := denial(d.Reason)
	return handler.JSON(DeniedResponse{
		Decision: d,
		Error:    &handler.ErrorDetail{Code: code, Message: message},
	}, handler.WithJSONStatus(http.StatusForbidden))
}
