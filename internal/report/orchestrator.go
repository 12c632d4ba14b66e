// Package report runs the extraction jobs and aggregates their outcome.
package report

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaultscope/vaultscope/internal/export"
	"github.com/vaultscope/vaultscope/internal/history"
	"github.com/vaultscope/vaultscope/internal/pam"
)

// Kind selects a report.
type Kind string

const (
	KindAccounts Kind = "accounts"
	KindUsers    Kind = "users"
	KindSafes    Kind = "safes"
)

// AllKinds returns every report kind in the stable execution order.
func AllKinds() []Kind {
	return []Kind{KindAccounts, KindUsers, KindSafes}
}

// Status is a job's lifecycle state. A job moves from pending through
// running to exactly one terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job tracks one report through the run.
type Job struct {
	Kind    Kind
	Status  Status
	Err     error
	Records int
	Files   []string
}

// Options configure a report run.
type Options struct {
	OutputDir string
	PageSize  int
	GCEvery   int

	// PerSafe extracts accounts safe by safe through the search filter,
	// staying under the upstream 20000-record cross-safe cap.
	PerSafe bool
}

// Orchestrator runs selected report jobs sequentially. A failed job is
// logged and does not stop the remaining jobs; a transient safes outage must
// not discard a completed accounts export.
type Orchestrator struct {
	client  *pam.Client
	opts    Options
	history *history.Store // optional
	logger  zerolog.Logger
}

// NewOrchestrator creates an orchestrator. hist may be nil to skip run-history recording.
func NewOrchestrator(client *pam.Client, opts Options, hist *history.Store, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		client:  client,
		opts:    opts,
		history: hist,
		logger:  logger,
	}
}

// Run authenticates once, then executes the selected jobs in order. Exit
// status is 0 only when every selected job succeeded. An authentication
// failure aborts before any report is produced and is returned as an error.
func (o *Orchestrator) Run(ctx context.Context, kinds []Kind) ([]Job, int, error) {
	if len(kinds) == 0 {
		kinds = AllKinds()
	}

	if err := o.client.Session().Authenticate(ctx); err != nil {
		return nil, 1, err
	}

	runID := uuid.NewString()
	jobs := make([]Job, len(kinds))
	for i, k := range kinds {
		jobs[i] = Job{Kind: k, Status: StatusPending}
	}

	exit := 0
	for i := range jobs {
		job := &jobs[i]
		job.Status = StatusRunning
		o.logger.Info().Str("report", string(job.Kind)).Msg("report started")

		started := time.Now()
		var err error
		switch job.Kind {
		case KindAccounts:
			err = o.runAccounts(ctx, job)
		case KindUsers:
			err = o.runUsers(ctx, job)
		case KindSafes:
			err = o.runSafes(ctx, job)
		default:
			err = fmt.Errorf("unknown report kind: %s", job.Kind)
		}

		if err != nil {
			job.Status = StatusFailed
			job.Err = err
			exit = 1
			o.logger.Error().Str("report", string(job.Kind)).Err(err).Msg("report failed")
		} else {
			job.Status = StatusSucceeded
			o.logger.Info().
				Str("report", string(job.Kind)).
				Int("records", job.Records).
				Msg("report completed")
		}

		o.record(runID, job, time.Since(started))
	}

	return jobs, exit, nil
}

func (o *Orchestrator) runSafes(ctx context.Context, job *Job) error {
	path := filepath.Join(o.opts.OutputDir, "safes.csv")
	exp, err := export.Open(path, export.SafeColumns, o.opts.GCEvery, o.logger)
	if err != nil {
		return err
	}
	defer exp.Close()

	count, err := o.client.StreamSafes(ctx, o.opts.PageSize, func(batch []pam.Safe) error {
		rows := make([][]string, 0, len(batch))
		for _, s := range batch {
			rows = append(rows, export.SafeRow(s))
		}
		return exp.WriteBatch(rows)
	})
	if err != nil {
		return err
	}

	job.Records = count
	job.Files = []string{path}
	return nil
}

func (o *Orchestrator) runAccounts(ctx context.Context, job *Job) error {
	path := filepath.Join(o.opts.OutputDir, "accounts.csv")
	exp, err := export.Open(path, export.AccountColumns, o.opts.GCEvery, o.logger)
	if err != nil {
		return err
	}
	defer exp.Close()

	if o.opts.PerSafe {
		job.Records, err = o.accountsPerSafe(ctx, exp)
	} else {
		job.Records, err = o.client.StreamAccounts(ctx, o.opts.PageSize, "", func(batch []pam.Account) error {
			return writeAccounts(exp, batch)
		})
	}
	if err != nil {
		return err
	}

	job.Files = []string{path}
	return nil
}

// accountsPerSafe enumerates safes first, then extracts accounts one safe at
// a time. The search filter can match beyond the safe name, so results are
// filtered back to the requested safe; the duplicate-identifier invariant is
// kept global across safes.
func (o *Orchestrator) accountsPerSafe(ctx context.Context, exp *export.Exporter) (int, error) {
	var safeNames []string
	_, err := o.client.StreamSafes(ctx, o.opts.PageSize, func(batch []pam.Safe) error {
		for _, s := range batch {
			safeNames = append(safeNames, s.SafeName)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("enumerating safes for per-safe extraction: %w", err)
	}

	seen := make(map[string]struct{})
	total := 0
	for _, safe := range safeNames {
		_, err := o.client.StreamAccounts(ctx, o.opts.PageSize, safe, func(batch []pam.Account) error {
			scoped := batch[:0:0]
			for _, a := range batch {
				if a.SafeName != safe {
					continue
				}
				if _, dup := seen[a.ID]; dup {
					return fmt.Errorf("%w: account %s repeated across safes", pam.ErrPaginationIntegrity, a.ID)
				}
				seen[a.ID] = struct{}{}
				scoped = append(scoped, a)
			}
			total += len(scoped)
			return writeAccounts(exp, scoped)
		})
		if err != nil {
			return total, fmt.Errorf("extracting accounts from safe %q: %w", safe, err)
		}
	}
	return total, nil
}

func writeAccounts(exp *export.Exporter, batch []pam.Account) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(batch))
	for _, a := range batch {
		rows = append(rows, export.AccountRow(a))
	}
	return exp.WriteBatch(rows)
}

func (o *Orchestrator) runUsers(ctx context.Context, job *Job) error {
	users, err := o.client.FetchUsers(ctx)
	if err != nil {
		return err
	}

	detailsPath := filepath.Join(o.opts.OutputDir, "users.csv")
	details, err := export.Open(detailsPath, export.UserColumns, o.opts.GCEvery, o.logger)
	if err != nil {
		return err
	}
	defer details.Close()

	groupsPath := filepath.Join(o.opts.OutputDir, "user-groups.csv")
	groups, err := export.Open(groupsPath, export.UserGroupColumns, o.opts.GCEvery, o.logger)
	if err != nil {
		return err
	}
	defer groups.Close()

	detailRows := make([][]string, 0, len(users))
	var groupRows [][]string
	for _, u := range users {
		detailRows = append(detailRows, export.UserRow(u))
		groupRows = append(groupRows, export.UserGroupRows(u)...)
	}

	if err := details.WriteBatch(detailRows); err != nil {
		return err
	}
	if err := groups.WriteBatch(groupRows); err != nil {
		return err
	}

	job.Records = len(users)
	job.Files = []string{detailsPath, groupsPath}
	return nil
}

// record appends the job outcome to the run-history store, if one is open.
func (o *Orchestrator) record(runID string, job *Job, elapsed time.Duration) {
	if o.history == nil {
		return
	}

	errDetail := ""
	if job.Err != nil {
		errDetail = job.Err.Error()
	}

	rec := history.Record{
		RunUUID:     runID,
		Timestamp:   time.Now(),
		Kind:        string(job.Kind),
		Status:      string(job.Status),
		Records:     job.Records,
		Duration:    elapsed,
		OutputFiles: strings.Join(job.Files, ","),
		ErrorDetail: errDetail,
	}
	if err := o.history.Append(rec); err != nil {
		o.logger.Warn().Err(err).Msg("recording run history failed")
	}
}
