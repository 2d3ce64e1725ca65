package ratelimit

import "context"

// Wrap returns fn gated by the limiter.
func Wrap[R any](l *Limiter, fn func(context.Context) (R, error)) func(context.Context) (R, error) {
	return func(ctx context.Context) (R, error) {
		if err := l.Wait(ctx); err != nil {
			var zero R
			return zero, err
		}
		return fn(ctx)
	}
}

// Wrap1 returns a one-argument fn gated by the limiter.
func Wrap1[A, R any](l *Limiter, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return func(ctx context.Context, a A) (R, error) {
		if err := l.Wait(ctx); err != nil {
			var zero R
			return zero, err
		}
		return fn(ctx, a)
	}
}

// Wrap2 returns a two-argument fn gated by the limiter.
func Wrap2[A, B, R any](l *Limiter, fn func(context.Context, A, B) (R, error)) func(context.Context, A, B) (R, error) {
	return func(ctx context.Context, a A, b B) (R, error) {
		if err := l.Wait(ctx); err != nil {
			var zero R
			return zero, err
		}
		return fn(ctx, a, b)
	}
}
