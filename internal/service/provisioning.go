package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/coderisedev/cs-sub003/internal/saga"
	"github.com/coderisedev/cs-sub003/internal/store"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

const provisionSaga = "provision_tenant"

const (
	StepCreateTenant       = "create_tenant"
	StepCreateSalesChannel = "create_sales_channel"
	StepLinkSalesChannel   = "link_tenant_sales_channel"
)

type ProvisionConfig struct {
	StepTimeout         time.Duration
	StepRetries         int
	Parallel            bool
	CompensationTimeout time.Duration
}

// ProvisionResult is what a successful provisioning run created.
type ProvisionResult struct {
	Tenant       *domain.Tenant       `json:"tenant"`
	SalesChannel *domain.SalesChannel `json:"sales_channel"`
}

// Provisioner creates a tenant together with its default sales channel and
// the link between them. Either all three exist afterwards or, barring a
// reported compensation failure, none do.
type Provisioner struct {
	directory *TenantDirectory
	links     domain.LinkStore
	channels  domain.SalesChannelBackend
	runner    *saga.Runner
	policy    saga.Policy
	parallel  bool
	reclaim   time.Duration
	logger    *zap.Logger
}

func NewProvisioner(dir *TenantDirectory, links domain.LinkStore, channels domain.SalesChannelBackend, cfg ProvisionConfig, logger *zap.Logger) *Provisioner {
	var opts []saga.Option
	reclaim := saga.DefaultCompensationTimeout
	if cfg.CompensationTimeout > 0 {
		opts = append(opts, saga.WithCompensationTimeout(cfg.CompensationTimeout))
		reclaim = cfg.CompensationTimeout
	}
	return &Provisioner{
		directory: dir,
		links:     links,
		channels:  channels,
		runner:    saga.NewRunner(provisionSaga, logger, opts...),
		policy:    stepPolicy(cfg.StepTimeout, cfg.StepRetries),
		parallel:  cfg.Parallel,
		reclaim:   reclaim,
		logger:    logger,
	}
}

func stepPolicy(timeout time.Duration, retries int) saga.Policy {
	if retries > 1 {
		retries = 1
	}
	if retries < 0 {
		retries = 0
	}
	return saga.Policy{Timeout: timeout, Retries: retries, Retryable: retryable}
}

// Conflicts and bad input fail the same way on every attempt.
func retryable(err error) bool {
	return !errors.Is(err, domain.ErrConflict) &&
		!errors.Is(err, store.ErrConflict) &&
		!errors.Is(err, domain.ErrValidation) &&
		!errors.Is(err, context.Canceled)
}

// A call that timed out may still have been applied by the backend.
func outcomeUnknown(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// reclaimChannel replays the create with the run's idempotency key, which
// returns the channel if a timed-out attempt created it, and deletes it.
func (p *Provisioner) reclaimChannel(ctx context.Context, in domain.CreateSalesChannelInput) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.reclaim)
	defer cancel()

	sc, err := p.channels.Create(ctx, in)
	if err != nil {
		return fmt.Errorf("reclaim sales channel: %w", err)
	}
	if err := p.channels.Delete(ctx, sc.ID); err != nil {
		return fmt.Errorf("reclaim sales channel %s: %w", sc.ID, err)
	}
	return nil
}

func (p *Provisioner) Provision(ctx context.Context, in CreateTenantInput) (*ProvisionResult, error) {
	if err := p.directory.Validate(&in); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	channelIn := domain.CreateSalesChannelInput{
		Name:           in.Name,
		Description:    fmt.Sprintf("Default sales channel for %s", in.Slug),
		IdempotencyKey: "provision-" + runID,
	}
	var (
		tenant     *domain.Tenant
		channel    *domain.SalesChannel
		reclaimErr error
	)

	createTenant := saga.Step{
		Name: StepCreateTenant,
		Forward: func(ctx context.Context) error {
			t, err := p.directory.Create(ctx, in)
			if err != nil {
				return err
			}
			tenant = t
			return nil
		},
		Compensate: func(ctx context.Context) error {
			return p.directory.Delete(ctx, tenant.ID)
		},
	}

	createChannel := saga.Step{
		Name: StepCreateSalesChannel,
		Forward: func(ctx context.Context) error {
			err := p.policy.Do(ctx, func(ctx context.Context) error {
				sc, err := p.channels.Create(ctx, channelIn)
				if err != nil {
					return err
				}
				channel = sc
				return nil
			})
			if err != nil && outcomeUnknown(err) {
				reclaimErr = p.reclaimChannel(ctx, channelIn)
			}
			return err
		},
		Compensate: func(ctx context.Context) error {
			return p.policy.Do(ctx, func(ctx context.Context) error {
				return p.channels.Delete(ctx, channel.ID)
			})
		},
	}

	linkChannel := saga.Step{
		Name: StepLinkSalesChannel,
		Forward: func(ctx context.Context) error {
			return p.policy.Do(ctx, func(ctx context.Context) error {
				return p.links.Link(ctx, domain.RelationTenantSalesChannel, tenant.ID.String(), channel.ID)
			})
		},
		Compensate: func(ctx context.Context) error {
			return p.policy.Do(ctx, func(ctx context.Context) error {
				return p.links.Unlink(ctx, domain.RelationTenantSalesChannel, tenant.ID.String(), channel.ID)
			})
		},
	}

	var stages [][]saga.Step
	if p.parallel {
		stages = [][]saga.Step{{createTenant, createChannel}, {linkChannel}}
	} else {
		stages = [][]saga.Step{{createTenant}, {createChannel}, {linkChannel}}
	}

	res := p.runner.Run(ctx, stages...)
	state, compErr := res.State, res.CompensationErr
	if reclaimErr != nil {
		compErr = multierror.Append(compErr, reclaimErr)
		if state == saga.StateFailed {
			state = saga.StateCompensationIncomplete
		}
	}

	switch state {
	case saga.StateComplete:
		p.logger.Info("tenant provisioned",
			zap.String("run_id", runID),
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("slug", tenant.Slug),
			zap.String("sales_channel_id", channel.ID))
		return &ProvisionResult{Tenant: tenant, SalesChannel: channel}, nil

	case saga.StateFailed:
		p.logger.Warn("tenant provisioning rolled back",
			zap.String("run_id", runID),
			zap.String("slug", in.Slug),
			zap.String("failed_step", res.FailedStep),
			zap.Error(res.Err))
		return nil, &domain.SagaFailedError{Saga: provisionSaga, Step: res.FailedStep, Err: res.Err}

	default:
		fields := []zap.Field{
			zap.String("run_id", runID),
			zap.String("slug", in.Slug),
			zap.String("failed_step", res.FailedStep),
			zap.String("idempotency_key", channelIn.IdempotencyKey),
			zap.Error(res.Err),
			zap.NamedError("compensation_error", compErr),
		}
		if tenant != nil {
			fields = append(fields, zap.String("tenant_id", tenant.ID.String()))
		}
		if channel != nil {
			fields = append(fields, zap.String("sales_channel_id", channel.ID))
		}
		p.logger.Error("tenant provisioning left residual state, reconciliation required", fields...)
		return nil, &domain.SagaCompensationIncompleteError{
			Saga:            provisionSaga,
			Step:            res.FailedStep,
			Err:             res.Err,
			CompensationErr: compErr,
		}
	}
}
