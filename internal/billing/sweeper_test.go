package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cliniccore/internal/models"
)

func TestSweepExpiresOnlyLapsedTrials(t *testing.T) {
	db := testDB(t)
	s := NewSweeper(db, zap.NewNop().Sugar())

	lapsed := time.Now().Add(-time.Hour)
	running := time.Now().Add(48 * time.Hour)
	expired := subscribe(t, db, newClinic(t, db), "STARTER", models.StatusTrialing, &lapsed)
	current := subscribe(t, db, newClinic(t, db), "STARTER", models.StatusTrialing, &running)
	active := subscribe(t, db, newClinic(t, db), "GROWTH", models.StatusActive, nil)

	s.Sweep()

	var got models.Subscription
	require.NoError(t, db.First(&got, "id = ?", expired.ID).Error)
	assert.Equal(t, models.StatusPastDue, got.Status)
	got = models.Subscription{}
	require.NoError(t, db.First(&got, "id = ?", current.ID).Error)
	assert.Equal(t, models.StatusTrialing, got.Status)
	got = models.Subscription{}
	require.NoError(t, db.First(&got, "id = ?", active.ID).Error)
	assert.Equal(t, models.StatusActive, got.Status)

	// a second pass changes nothing
	s.Sweep()
	got = models.Subscription{}
	require.NoError(t, db.First(&got, "id = ?", expired.ID).Error)
	assert.Equal(t, models.StatusPastDue, got.Status)
}
