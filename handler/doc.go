// Package handler turns typed request handlers into http.HandlerFunc.
//
// A handler receives a Context and a request value decoded by the configured
// binders, and returns a Response:
//
//	type checkoutRequest struct {
//		PlanID string `json:"planId"`
//	}
//
//	func checkout(ctx handler.Context, req checkoutRequest) handler.Response {
//		sess, err := svc.Checkout(ctx, req.PlanID)
//		if err != nil {
//			return handler.Error(err)
//		}
//		return handler.JSON(sess)
//	}
//
//	r.Post("/api/billing/checkout", handler.Wrap(checkout,
//		handler.WithBinder[handler.Context, checkoutRequest](binder.BindJSON()),
//		handler.WithErrorHandler[handler.Context, checkoutRequest](handler.NewErrorHandler(log)),
//	))
//
// Errors returned from binders, from Response.Render or wrapped with Error go
// through the ErrorHandler. core.HTTPError and core.ValidationError map to their status
// codes; everything else becomes 500.
package handler
