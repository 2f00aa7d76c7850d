package out_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	filterout "watchtime/internal/modules/filter/adapter/out"
	filterdomain "watchtime/internal/modules/filter/domain"
	filterservice "watchtime/internal/modules/filter/service"
	filterusecase "watchtime/internal/modules/filter/usecase"
	trackingout "watchtime/internal/modules/tracking/adapter/out"
)

func TestFilterAdapterBridgesDecisions(t *testing.T) {
	t.Parallel()
	opts := filterdomain.Options{
		DomainsToTrack:      map[string]bool{"youtube.com": true},
		BlacklistedKeywords: []string{"asmr"},
	}
	uc := filterusecase.NewInteractor(filterservice.NewFilterService(opts, filterout.NewFileManifestStore(t.TempDir()), nil, nil))
	adapter := trackingout.NewFilterAdapter(uc)

	allowed, _, err := adapter.Allow(context.Background(), "Lesson", "https://youtube.com/watch?v=a")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, reason, err := adapter.Allow(context.Background(), "ASMR", "https://youtube.com/watch?v=a")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "blacklisted keyword: asmr", reason)
}
