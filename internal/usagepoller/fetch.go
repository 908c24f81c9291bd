package usagepoller

import (
	"context"

	"github.com/zsprackett/usage-bar/internal/config"
	"github.com/zsprackett/usage-bar/internal/invoker"
	"github.com/zsprackett/usage-bar/internal/usage"
)

// SettingsSource is read at the start of every poll.
type SettingsSource interface {
	Settings() config.Settings
}

// Runner runs the usage CLI; *invoker.Invoker implements it.
type Runner interface {
	Run(ctx context.Context, path string, args []string) (invoker.Output, error)
}

// NewCLIFetch returns a FetchFunc that runs the configured executable with
// args and parses its output. Settings are read per poll, so a new path
// takes effect on the next invocation.
func NewCLIFetch(settings SettingsSource, runner Runner, parser *usage.Parser, args []string) FetchFunc {
	args = append([]string(nil), args...)
	return func(ctx context.Context) (usage.Record, error) {
		out, err := runner.Run(ctx, settings.Settings().ExecutablePath, args)
		if err != nil {
			return usage.Record{}, err
		}
		return parser.Parse(out.Stdout)
	}
}

// FollowSettings keeps the poller in step with store: interval changes
// re-arm the timer and a new executable path triggers a refresh.
func (p *Poller) FollowSettings(store *config.Store) (unsubscribe func()) {
	return store.Subscribe(func(c config.Change) {
		if c.IntervalChanged() {
			p.SetInterval(c.New.RefreshInterval.Duration())
		}
		if c.PathChanged() {
			p.Refresh()
		}
	})
}
