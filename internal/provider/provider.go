// Package provider implements the fallback policy shared by the AI and image
// provider managers.
package provider

import "context"

// Provider is a named backend with a cheap availability probe and one
// primary operation.
type Provider[Req, Res any] interface {
	Name() string
	// Available reports whether the backend is usable right now. It is a
	// best-effort pre-filter; a true result does not guarantee Invoke succeeds.
	Available(ctx context.Context) (bool, error)
	Invoke(ctx context.Context, req Req) (Res, error)
}

// Func adapts plain functions into a Provider. Useful for fakes and small
// adapters.
type Func[Req, Res any] struct {
	ProviderName string
	AvailableFn  func(ctx context.Context) (bool, error)
	InvokeFn     func(ctx context.Context, req Req) (Res, error)
}

func (f Func[Req, Res]) Name() string { return f.ProviderName }

func (f Func[Req, Res]) Available(ctx context.Context) (bool, error) {
	if f.AvailableFn == nil {
		return true, nil
	}
	return f.AvailableFn(ctx)
}

func (f Func[Req, Res]) Invoke(ctx context.Context, req Req) (Res, error) {
	return f.InvokeFn(ctx, req)
}
