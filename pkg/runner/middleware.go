package runner

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// ConfirmInterceptor is a policy that may answer a confirmation before the caller is asked.
// It returns handled=false to let the question through.
type ConfirmInterceptor func(ctx context.Context, req domain.ConfirmRequest) (res domain.ConfirmResult, handled bool, err error)

// MultiInterceptor chains interceptors. The first one that handles the request wins.
func MultiInterceptor(interceptors ...ConfirmInterceptor) ConfirmInterceptor {
	return func(ctx context.Context, req domain.ConfirmRequest) (domain.ConfirmResult, bool, error) {
		for _, interceptor := range interceptors {
			if interceptor == nil {
				continue
			}
			res, handled, err := interceptor(ctx, req)
			if err != nil {
				return domain.ConfirmResult{}, false, err
			}
			if handled {
				return res, true, nil
			}
		}
		return domain.ConfirmResult{}, false, nil
	}
}

// AutoApproveMiddleware answers yes to every confirmation except those requiring an
// explicit yes, which it declines.
func AutoApproveMiddleware() ConfirmInterceptor {
	return func(ctx context.Context, req domain.ConfirmRequest) (domain.ConfirmResult, bool, error) {
		if req.ExplicitYesRequired {
			return domain.ConfirmResult{Yes: false, Token: domain.TokenNo}, true, nil
		}
		return domain.ConfirmResult{Yes: true, Token: domain.TokenYes}, true, nil
	}
}

// PassThroughMiddleware asks the caller every time.
func PassThroughMiddleware() ConfirmInterceptor {
	return func(ctx context.Context, req domain.ConfirmRequest) (domain.ConfirmResult, bool, error) {
		return domain.ConfirmResult{}, false, nil
	}
}
