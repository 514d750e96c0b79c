package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func acmeInput() CreateTenantInput {
	return CreateTenantInput{Name: "Acme", Slug: "acme", ExternalIdentityID: "idp|acme", Plan: domain.TenantPlanPro}
}

func assertNoResidue(t *testing.T, f *fixture) {
	t.Helper()
	assert.Empty(t, f.allTenants(t), "tenant records")
	assert.Equal(t, 0, f.channels.Count(), "sales channels")
	assert.Equal(t, 0, f.store.LinkCount(), "links")
}

func TestProvision_Succeeds(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, parallel)

			res, err := f.provisioner.Provision(ctx, acmeInput())
			require.NoError(t, err)

			assert.Equal(t, "acme", res.Tenant.Slug)
			assert.Equal(t, domain.TenantStatusActive, res.Tenant.Status)
			assert.Equal(t, domain.TenantPlanPro, res.Tenant.Plan)

			_, ok := f.channels.Get(res.SalesChannel.ID)
			assert.True(t, ok)

			linked, err := f.store.Objects(ctx, domain.RelationTenantSalesChannel, res.Tenant.ID.String())
			require.NoError(t, err)
			assert.Equal(t, []string{res.SalesChannel.ID}, linked)

			require.Len(t, f.channels.CreateCalls, 1)
			assert.True(t, strings.HasPrefix(f.channels.CreateCalls[0].IdempotencyKey, "provision-"))
		})
	}
}

func TestProvision_ValidationStopsBeforeAnyStep(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.provisioner.Provision(context.Background(), CreateTenantInput{Name: "Acme", Slug: "bad slug!", ExternalIdentityID: "x"})
	require.ErrorIs(t, err, domain.ErrValidation)

	var sagaErr *domain.SagaFailedError
	assert.False(t, errors.As(err, &sagaErr))
	assert.Empty(t, f.channels.CreateCalls)
	assertNoResidue(t, f)
}

func TestProvision_DuplicateSlugRollsBack(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, parallel)
			first := f.provision(t, "acme")

			in := acmeInput()
			in.ExternalIdentityID = "idp|someone-else"
			_, err := f.provisioner.Provision(ctx, in)

			var sagaErr *domain.SagaFailedError
			require.True(t, errors.As(err, &sagaErr))
			assert.Equal(t, StepCreateTenant, sagaErr.Step)
			assert.ErrorIs(t, err, domain.ErrConflict)

			assert.Len(t, f.allTenants(t), 1)
			assert.Equal(t, 1, f.channels.Count(), "only the first tenant's channel survives")
			_, ok := f.channels.Get(first.SalesChannel.ID)
			assert.True(t, ok)
		})
	}
}

func TestProvision_TenantStepFailureLeavesNoResidue(t *testing.T) {
	f := newFixture(t, true)
	f.tenants.createErr = errInjected

	_, err := f.provisioner.Provision(context.Background(), acmeInput())

	var sagaErr *domain.SagaFailedError
	require.True(t, errors.As(err, &sagaErr))
	assert.Equal(t, StepCreateTenant, sagaErr.Step)
	assert.ErrorIs(t, err, errInjected)
	assertNoResidue(t, f)
}

func TestProvision_ChannelStepFailureLeavesNoResidue(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			f := newFixture(t, parallel)
			f.channels.CreateError = errInjected

			_, err := f.provisioner.Provision(context.Background(), acmeInput())

			var sagaErr *domain.SagaFailedError
			require.True(t, errors.As(err, &sagaErr))
			assert.Equal(t, StepCreateSalesChannel, sagaErr.Step)
			assert.Len(t, f.channels.CreateCalls, 2, "one retry")
			assertNoResidue(t, f)
		})
	}
}

func TestProvision_LinkStepFailureLeavesNoResidue(t *testing.T) {
	f := newFixture(t, true)
	f.links.relation = domain.RelationTenantSalesChannel
	f.links.linkFails = -1

	_, err := f.provisioner.Provision(context.Background(), acmeInput())

	var sagaErr *domain.SagaFailedError
	require.True(t, errors.As(err, &sagaErr))
	assert.Equal(t, StepLinkSalesChannel, sagaErr.Step)
	assert.ErrorIs(t, err, errInjected)
	assertNoResidue(t, f)
	assert.Len(t, f.channels.DeleteCalls, 1)
}

func TestProvision_RetryAfterRollbackSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.channels.CreateError = errInjected

	_, err := f.provisioner.Provision(ctx, acmeInput())
	require.Error(t, err)

	f.channels.CreateError = nil
	res, err := f.provisioner.Provision(ctx, acmeInput())
	require.NoError(t, err)
	assert.Equal(t, "acme", res.Tenant.Slug)
	assert.Len(t, f.allTenants(t), 1)
	assert.Equal(t, 1, f.channels.Count())
}

func TestProvision_TransientLinkFailureIsRetried(t *testing.T) {
	f := newFixture(t, true)
	f.links.relation = domain.RelationTenantSalesChannel
	f.links.linkFails = 1

	res, err := f.provisioner.Provision(context.Background(), acmeInput())
	require.NoError(t, err)
	assert.Equal(t, 2, f.links.linkCalls)
	assert.Equal(t, 1, f.store.LinkCount())
	assert.NotNil(t, res.SalesChannel)
}

func TestProvision_CompensationFailureIsDistinct(t *testing.T) {
	f := newFixture(t, true)
	f.links.relation = domain.RelationTenantSalesChannel
	f.links.linkFails = -1
	f.channels.DeleteError = errors.New("backend down")

	_, err := f.provisioner.Provision(context.Background(), acmeInput())

	var incomplete *domain.SagaCompensationIncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, StepLinkSalesChannel, incomplete.Step)
	assert.ErrorIs(t, err, errInjected)
	assert.Error(t, incomplete.CompensationErr)

	var failed *domain.SagaFailedError
	assert.False(t, errors.As(err, &failed))

	// The tenant compensation still ran despite the channel one failing.
	assert.Empty(t, f.allTenants(t))
	assert.Equal(t, 1, f.channels.Count())
}

func TestProvision_ConcurrentSameSlug(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.provisioner.channels = &slowChannels{SalesChannelBackend: f.channels, delay: 5 * time.Millisecond}

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := acmeInput()
			in.ExternalIdentityID = fmt.Sprintf("idp|%d", i)
			_, err := f.provisioner.Provision(ctx, in)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
	assert.Len(t, f.allTenants(t), 1)
	assert.Equal(t, 1, f.channels.Count())
	assert.Equal(t, 1, f.store.LinkCount())
}

func TestProvision_CallerCancellationStillCompensates(t *testing.T) {
	f := newFixture(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	f.provisioner.channels = &slowChannels{SalesChannelBackend: f.channels, delay: time.Second}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := f.provisioner.Provision(ctx, acmeInput())

	var sagaErr *domain.SagaFailedError
	require.True(t, errors.As(err, &sagaErr))
	assert.Equal(t, StepCreateSalesChannel, sagaErr.Step)
	assertNoResidue(t, f)
}

func TestProvision_TimedOutChannelIsReclaimed(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			f := newFixture(t, parallel)
			f.provisioner.channels = &timeoutChannels{SalesChannelBackend: f.channels, fails: 2}

			_, err := f.provisioner.Provision(context.Background(), acmeInput())

			var sagaErr *domain.SagaFailedError
			require.True(t, errors.As(err, &sagaErr))
			assert.Equal(t, StepCreateSalesChannel, sagaErr.Step)
			assert.ErrorIs(t, err, context.DeadlineExceeded)

			require.Len(t, f.channels.CreateCalls, 3, "two attempts and one replay")
			for _, call := range f.channels.CreateCalls {
				assert.Equal(t, f.channels.CreateCalls[0].IdempotencyKey, call.IdempotencyKey)
			}
			assert.Len(t, f.channels.DeleteCalls, 1)
			assertNoResidue(t, f)
		})
	}
}

func TestProvision_UnreclaimableChannelIsReported(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	f := newFixture(t, true)
	channels := &timeoutChannels{SalesChannelBackend: f.channels, fails: -1}
	p := NewProvisioner(f.directory, f.links, channels, ProvisionConfig{
		StepTimeout:         time.Second,
		StepRetries:         1,
		Parallel:            true,
		CompensationTimeout: time.Second,
	}, zap.New(core))

	_, err := p.Provision(context.Background(), acmeInput())

	var incomplete *domain.SagaCompensationIncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, StepCreateSalesChannel, incomplete.Step)
	assert.ErrorIs(t, incomplete.CompensationErr, context.DeadlineExceeded)

	assert.Empty(t, f.allTenants(t))
	assert.Equal(t, 1, f.channels.Count(), "the channel the backend created is still there")

	entries := logs.FilterField(zap.String("idempotency_key", f.channels.CreateCalls[0].IdempotencyKey)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}
