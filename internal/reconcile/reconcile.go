// Package reconcile checks the build plugin version a project declares against
// the running tool version and offers to update or silence the mismatch.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/sqgen/internal/commit"
	"github.com/leapstack-labs/sqgen/internal/notify"
	"github.com/leapstack-labs/sqgen/pkg/core"
)

// Notification titles.
const (
	TitleOutdated = "Outdated SQLDelight Gradle Plugin"
	TitleMissing  = "SQLDelight Gradle Plugin Not Found"
)

// Verdict is the outcome of one evaluation.
type Verdict string

// Verdicts.
const (
	VerdictCompatible    Verdict = "compatible"
	VerdictOutdated      Verdict = "outdated"
	VerdictPluginMissing Verdict = "plugin-missing"
	VerdictSuppressed    Verdict = "suppressed"
)

// Action is a user response to an outdated verdict.
type Action int

// Actions.
const (
	ActionUpdate Action = iota
	ActionIgnore
)

func (a Action) String() string {
	switch a {
	case ActionUpdate:
		return "update"
	case ActionIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// UnknownActionError reports an action identifier outside the known set.
type UnknownActionError = core.UnknownActionError

// ParseAction maps an identifier to an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "update":
		return ActionUpdate, nil
	case "ignore":
		return ActionIgnore, nil
	default:
		return 0, &UnknownActionError{Action: s}
	}
}

// SuppressionStore persists the suppression marker per project.
type SuppressionStore interface {
	Suppressed(ctx context.Context, project string) (string, bool, error)
	SetSuppressed(ctx context.Context, project, version string) error
}

// Committer writes the version update. *commit.Committer implements it.
type Committer interface {
	Commit(ctx context.Context, target commit.Target, newText string) (bool, error)
}

// Options configures a Reconciler.
type Options struct {
	Project        string // Suppression key scope
	Root           string // Directory scanned for configuration files
	RunningVersion string
	Scanner        *Scanner
	Logger         *slog.Logger
}

// Reconciler evaluates and acts on the declared plugin version.
type Reconciler struct {
	opts      Options
	store     SuppressionStore
	notifier  notify.Notifier
	committer Committer
	logger    *slog.Logger
}

// New creates a Reconciler.
func New(opts Options, store SuppressionStore, notifier notify.Notifier, committer Committer) *Reconciler {
	if opts.Scanner == nil {
		opts.Scanner = NewScanner("", nil, ".sq", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{
		opts:      opts,
		store:     store,
		notifier:  notifier,
		committer: committer,
		logger:    logger,
	}
}

// Evaluation is the result of scanning and deciding.
type Evaluation struct {
	Verdict         Verdict
	Running         string
	Declaration     *Declaration
	HasManagedFiles bool
	Suppressed      string
	ScanErrors      []error
}

// Evaluate scans the project and decides a verdict without acting on it.
func (r *Reconciler) Evaluate(ctx context.Context) (*Evaluation, error) {
	scan, err := r.opts.Scanner.Scan(r.opts.Root)
	if err != nil {
		return nil, err
	}
	for _, scanErr := range scan.Errors {
		r.logger.Warn("configuration file skipped", "error", scanErr)
	}

	ev := &Evaluation{
		Running:         r.opts.RunningVersion,
		Declaration:     scan.Declaration,
		HasManagedFiles: scan.HasManagedFiles,
		ScanErrors:      scan.Errors,
	}

	if scan.Declaration != nil && r.store != nil {
		suppressed, ok, err := r.store.Suppressed(ctx, r.opts.Project)
		if err != nil {
			r.logger.Warn("failed to read suppression marker", "project", r.opts.Project, "error", err)
		} else if ok {
			ev.Suppressed = suppressed
		}
	}

	declared := ""
	if scan.Declaration != nil {
		declared = scan.Declaration.Version
	}
	verdict, err := Decide(scan.Declaration != nil, declared, ev.Running, ev.Suppressed, scan.HasManagedFiles)
	if err != nil {
		r.logger.Warn("version not comparable, assuming compatible", "error", err)
	}
	ev.Verdict = verdict
	return ev, nil
}

// Decide computes a verdict. A version that cannot be parsed yields
// VerdictCompatible together with the *core.VersionParseError.
func Decide(declaredFound bool, declared, running, suppressed string, hasManagedFiles bool) (Verdict, error) {
	if !declaredFound {
		if hasManagedFiles {
			return VerdictPluginMissing, nil
		}
		return VerdictCompatible, nil
	}
	if declared == running {
		return VerdictCompatible, nil
	}
	if suppressed != "" && suppressed == running {
		return VerdictSuppressed, nil
	}
	cmp, err := CompareVersions(running, declared)
	if err != nil {
		return VerdictCompatible, err
	}
	if cmp <= 0 {
		return VerdictCompatible, nil
	}
	return VerdictOutdated, nil
}

// Reconcile evaluates the project and surfaces the verdict.
func (r *Reconciler) Reconcile(ctx context.Context) (*Evaluation, error) {
	ev, err := r.Evaluate(ctx)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("version evaluated", "verdict", ev.Verdict, "running", ev.Running, "declared", declaredVersion(ev))

	switch ev.Verdict {
	case VerdictPluginMissing:
		r.notify(ctx, notify.Notification{
			Title:    TitleMissing,
			Body:     "The SQLDelight gradle plugin must be applied in order for the project to compile.",
			Severity: core.SeverityError,
		})
	case VerdictOutdated:
		r.notifyOutdated(ctx, ev)
	}
	return ev, nil
}

// Apply performs action for an outdated evaluation.
func (r *Reconciler) Apply(ctx context.Context, ev *Evaluation, action Action) error {
	if ev == nil || ev.Verdict != VerdictOutdated || ev.Declaration == nil {
		return errors.New("nothing to apply: plugin version is not outdated")
	}
	switch action {
	case ActionUpdate:
		return r.update(ctx, ev)
	case ActionIgnore:
		return r.ignore(ctx, ev)
	default:
		return &UnknownActionError{Action: action.String()}
	}
}

// Invoke resolves label to an Action and applies it to ev.
func (r *Reconciler) Invoke(ctx context.Context, ev *Evaluation, label string) error {
	action, err := ParseAction(label)
	if err != nil {
		return err
	}
	return r.Apply(ctx, ev, action)
}

// update rewrites the declared version in place. On failure the project is
// evaluated again and, if still outdated, notified with the fresh declaration.
func (r *Reconciler) update(ctx context.Context, ev *Evaluation) error {
	decl := ev.Declaration
	span := decl.Span
	stamp := decl.Stamp
	_, err := r.committer.Commit(ctx, commit.Target{
		Path:   decl.Path,
		Region: &span,
		Expect: &stamp,
	}, ev.Running)
	if err != nil {
		r.logger.Warn("plugin version update failed", "path", decl.Path, "error", err)
		fresh, evalErr := r.Evaluate(ctx)
		switch {
		case evalErr != nil:
			r.logger.Warn("failed to re-evaluate plugin version", "error", evalErr)
		case fresh.Verdict == VerdictOutdated:
			r.notifyOutdated(ctx, fresh)
		}
		return err
	}
	r.logger.Info("plugin version updated", "path", decl.Path, "from", decl.Version, "to", ev.Running)
	return nil
}

func (r *Reconciler) ignore(ctx context.Context, ev *Evaluation) error {
	if r.store == nil {
		return errors.New("no suppression store configured")
	}
	if err := r.store.SetSuppressed(ctx, r.opts.Project, ev.Running); err != nil {
		return fmt.Errorf("failed to store suppression: %w", err)
	}
	r.logger.Info("plugin version warning suppressed", "project", r.opts.Project, "version", ev.Running)
	return nil
}

func (r *Reconciler) notifyOutdated(ctx context.Context, ev *Evaluation) {
	r.notify(ctx, notify.Notification{
		Title: TitleOutdated,
		Body: fmt.Sprintf("Your version of SQLDelight gradle plugin is %s, while the tool version is %s. "+
			"The gradle plugin should be updated to avoid compatibility problems.", ev.Declaration.Version, ev.Running),
		Severity: core.SeverityWarning,
		Actions:  r.actions(ev, ActionUpdate, ActionIgnore),
	})
}

func (r *Reconciler) actions(ev *Evaluation, actions ...Action) []notify.Action {
	out := make([]notify.Action, len(actions))
	for i, a := range actions {
		label := a.String()
		out[i] = notify.Action{Label: label, Run: func(ctx context.Context) error {
			return r.Invoke(ctx, ev, label)
		}}
	}
	return out
}

func (r *Reconciler) notify(ctx context.Context, n notify.Notification) {
	if r.notifier == nil {
		r.logger.Warn(n.Title, "body", n.Body)
		return
	}
	r.notifier.Notify(ctx, n)
}

func declaredVersion(ev *Evaluation) string {
	if ev.Declaration == nil {
		return ""
	}
	return ev.Declaration.Version
}
