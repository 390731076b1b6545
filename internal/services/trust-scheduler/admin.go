package scheduler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/NordCoder/Trustwatch/internal/domain"
	"github.com/NordCoder/Trustwatch/internal/domain/check"
	"github.com/NordCoder/Trustwatch/internal/domain/result"
)

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }

func (u *Usecase) Enable(ctx context.Context) error  { return u.setEnabled(ctx, true) }
func (u *Usecase) Disable(ctx context.Context) error { return u.setEnabled(ctx, false) }

// setEnabled persists the switch, then flips it. In-flight probes are left alone.
func (u *Usecase) setEnabled(ctx context.Context, on bool) error {
	if err := u.d.Switch.SetPeriodicChecksEnabled(ctx, on); err != nil {
		return fmt.Errorf("set periodic checks enabled=%t: %w", on, err)
	}
	u.enabled.Store(on)
	u.log.Info("periodic checks switched", zap.Bool("enabled", on))
	return nil
}

// afterMutation refreshes the adapter snapshot and the definition cache. The
// store already holds the change, so a failed reload is only logged; the
// runner catches up on its next refresh.
func (u *Usecase) afterMutation(ctx context.Context) {
	if err := u.d.Registry.Refresh(); err != nil {
		u.log.Error("refresh adapters", zap.Error(err))
	}
	if err := u.Refresh(ctx); err != nil {
		u.log.Warn("reload checks after mutation", zap.Error(err))
	}
}

func (u *Usecase) AddCheck(ctx context.Context, def check.Definition) (*check.Definition, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := u.d.Registry.Refresh(); err != nil {
		u.log.Error("refresh adapters", zap.Error(err))
	}
	if _, ok := u.d.Registry.Lookup(def.Name); !ok {
		return nil, fmt.Errorf("%w: no adapter registered for check %q", domain.ErrInvalidArgument, def.Name)
	}
	if err := u.d.Checks.Create(ctx, &def); err != nil {
		return nil, fmt.Errorf("create check %q: %w", def.Name, err)
	}
	u.afterMutation(ctx)
	u.log.Info("check added", zap.String("check", def.Name), zap.Duration("spacing", def.Spacing), zap.Duration("timeout", def.Timeout))

	if u.opts.RunImmediately && def.Enabled && u.enabled.Load() {
		u.Dispatch(context.WithoutCancel(ctx), def)
	}
	return &def, nil
}

// RemoveCheck deletes a check. The baseline check can never be removed.
func (u *Usecase) RemoveCheck(ctx context.Context, name string) error {
	if name == u.baselineName() {
		return fmt.Errorf("%w: check %q is the baseline check", domain.ErrForbidden, name)
	}
	if err := u.d.Checks.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete check %q: %w", name, err)
	}
	u.afterMutation(ctx)
	u.log.Info("check removed", zap.String("check", name))
	return nil
}

func (u *Usecase) UpdateCheck(ctx context.Context, name string, p check.Patch) (*check.Definition, error) {
	cur, err := u.d.Checks.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get check %q: %w", name, err)
	}
	next, err := p.Apply(*cur)
	if err != nil {
		return nil, err
	}
	if err := u.d.Checks.Update(ctx, &next); err != nil {
		return nil, fmt.Errorf("update check %q: %w", name, err)
	}
	u.afterMutation(ctx)
	u.log.Info("check updated", zap.String("check", name), zap.Duration("spacing", next.Spacing), zap.Duration("timeout", next.Timeout))
	return &next, nil
}

func (u *Usecase) GetCheck(ctx context.Context, name string) (*check.Definition, error) {
	return u.d.Checks.Get(ctx, name)
}

func (u *Usecase) ListChecks(ctx context.Context) ([]*check.Definition, error) {
	return u.d.Checks.List(ctx)
}

func (u *Usecase) RecentResults(ctx context.Context, n int) ([]*result.CheckResult, error) {
	if n <= 0 {
		n = result.DefaultRecent
	}
	return u.d.Results.GetRecent(ctx, n)
}

func (u *Usecase) DeleteResult(ctx context.Context, id int64) error {
	return u.d.Results.Delete(ctx, id)
}

func (u *Usecase) baselineName() string {
	if u.opts.Baseline.Name != "" {
		return u.opts.Baseline.Name
	}
	return u.d.Registry.Baseline()
}
