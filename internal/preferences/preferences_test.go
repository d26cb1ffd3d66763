package preferences_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/internal/analytics"
	"trafficlens/internal/preferences"
	"trafficlens/internal/testsupport"
)

func TestManagerGet(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	manager := preferences.NewManager(db, testsupport.GetLogger())

	t.Run("missing context returns nil without error", func(t *testing.T) {
		prefs, err := manager.Get("never_saved")
		require.NoError(t, err)
		assert.Nil(t, prefs)
	})

	t.Run("corrupt blob is treated as absent", func(t *testing.T) {
		record := preferences.UserPreference{Context: "broken", Value: "{not json"}
		require.NoError(t, db.Create(&record).Error)

		prefs, err := manager.Get("broken")
		require.NoError(t, err)
		assert.Nil(t, prefs)
	})
}

func TestManagerSet(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	manager := preferences.NewManager(db, testsupport.GetLogger())

	saved := &analytics.Preferences{
		Columns:        []string{"country", "visitors"},
		VisibleWidgets: []string{"overview", "top_pages"},
	}
	require.NoError(t, manager.Set("dashboard", saved))

	loaded, err := manager.Get("dashboard")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved.Columns, loaded.Columns)
	assert.Equal(t, saved.VisibleWidgets, loaded.VisibleWidgets)

	// saving again replaces, not duplicates
	require.NoError(t, manager.Set("dashboard", &analytics.Preferences{Columns: []string{"visitors"}}))

	loaded, err = manager.Get("dashboard")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, []string{"visitors"}, loaded.Columns)

	var count int64
	require.NoError(t, db.Model(&preferences.UserPreference{}).Where("context = ?", "dashboard").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
