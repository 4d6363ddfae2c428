package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://maps.googleapis.com/maps/api/geocode/json", cfg.Geocode.BaseURL)
	assert.InDelta(t, 40.0, cfg.Geocode.RateLimit, 0.001)
	assert.Equal(t, 1, cfg.Geocode.Burst)
	assert.Equal(t, 1, cfg.Geocode.Concurrency)
	assert.Equal(t, 30, cfg.Geocode.TimeoutSecs)
	assert.Equal(t, 30, cfg.Geocode.CacheTTLDays)
	assert.Empty(t, cfg.Geocode.APIKey)
	assert.Equal(t, "ONS_ID", cfg.Spatial.NeighbourhoodIDField)
	assert.Equal(t, "POSTALCODE", cfg.Spatial.ReferenceIDField)
	assert.Equal(t, "append", cfg.Merge.ConflictPolicy)
	assert.Equal(t, 3, cfg.Validation.MinLength)
	assert.Equal(t, `^[A-Za-z0-9 ]+$`, cfg.Validation.Pattern)
	assert.Equal(t, ",", cfg.Inputs.CandidatesDelim)
	assert.Zero(t, cfg.Inputs.CandidatesSkipRows)
	assert.Empty(t, cfg.Store.DatabaseURL)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.True(t, cfg.Output.Progress)
	assert.Equal(t, "crosswalk_sli", cfg.Store.SLITable)
	assert.Equal(t, "crosswalk_weighted", cfg.Store.WeightedTable)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
inputs:
  candidates: data/candidates.xlsx
  sli_crosswalk: data/sli.csv
log:
  level: debug
  format: console
geocode:
  rate_limit: 20
  concurrency: 4
spatial:
  neighbourhood_epsg: 2951
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/candidates.xlsx", cfg.Inputs.Candidates)
	assert.Equal(t, "data/sli.csv", cfg.Inputs.SLICrosswalk)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 20.0, cfg.Geocode.RateLimit, 0.001)
	assert.Equal(t, 4, cfg.Geocode.Concurrency)
	assert.Equal(t, 2951, cfg.Spatial.NeighbourhoodEPSG)
	// Defaults still apply for unset values
	assert.Equal(t, 1, cfg.Geocode.Burst)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
merge:
  conflict_policy: skip
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CROSSWALK_MERGE_CONFLICT_POLICY", "fail")
	t.Setenv("CROSSWALK_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "fail", cfg.Merge.ConflictPolicy)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadAPIKeyFromDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	// godotenv does not override variables that are already set.
	t.Setenv("CROSSWALK_GEOCODE_API_KEY", "")
	require.NoError(t, os.Unsetenv("CROSSWALK_GEOCODE_API_KEY"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CROSSWALK_GEOCODE_API_KEY=from-dotenv\n"), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Geocode.APIKey)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CROSSWALK_GEOCODE_CONCURRENCY", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Geocode.Concurrency)
}

func TestLoadDatabaseURLFromEnv(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CROSSWALK_STORE_DATABASE_URL", "postgres://publisher@db/ons")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://publisher@db/ons", cfg.Store.DatabaseURL)
	assert.NoError(t, cfg.Validate("publish"))
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Inputs.Candidates = "candidates.xlsx"
	cfg.Inputs.SLICrosswalk = "sli.csv"
	cfg.Inputs.WeightedCrosswalk = "weighted.csv"
	cfg.Inputs.Neighbourhoods = "ons.shp"
	cfg.Spatial.NeighbourhoodIDField = "ONS_ID"
	cfg.Geocode.BaseURL = "https://maps.googleapis.com/maps/api/geocode/json"
	cfg.Geocode.RateLimit = 40
	cfg.Geocode.Burst = 1
	cfg.Geocode.Concurrency = 1
	cfg.Merge.ConflictPolicy = "append"
	cfg.Validation.Pattern = `^[A-Z][0-9][A-Z]([0-9][A-Z][0-9])?$`
	cfg.Output.Dir = "output"
	cfg.Store.SLITable = "crosswalk_sli"
	cfg.Store.WeightedTable = "crosswalk_weighted"
	return cfg
}

func TestValidateReconcile_AllPresent(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("reconcile"))
}

func TestValidateReconcile_MissingInputs(t *testing.T) {
	cfg := &Config{}
	cfg.Geocode = validDefaults().Geocode
	cfg.Merge.ConflictPolicy = "append"
	cfg.Output.Dir = "out"

	err := cfg.Validate("reconcile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inputs.candidates is required")
	assert.Contains(t, err.Error(), "inputs.sli_crosswalk is required")
	assert.Contains(t, err.Error(), "inputs.weighted_crosswalk is required")
	assert.Contains(t, err.Error(), "inputs.neighbourhoods is required")
}

func TestValidateReconcile_ReferenceNeedsIDField(t *testing.T) {
	cfg := validDefaults()
	cfg.Inputs.ReferenceShapefile = "ldu.shp"

	err := cfg.Validate("reconcile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spatial.reference_id_field")
}

func TestValidateMissing_OnlyNeedsCandidatesAndSLI(t *testing.T) {
	cfg := &Config{}
	cfg.Inputs.Candidates = "c.csv"
	cfg.Inputs.SLICrosswalk = "sli.csv"
	assert.NoError(t, cfg.Validate("missing"))
}

func TestValidateCandidateReaderOptions(t *testing.T) {
	cfg := validDefaults()
	cfg.Inputs.CandidatesDelim = "\t"
	assert.NoError(t, cfg.Validate("missing"))

	cfg.Inputs.CandidatesDelim = ";;"
	cfg.Inputs.CandidatesSkipRows = -1
	err := cfg.Validate("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inputs.candidates_delimiter must be a single character")
	assert.Contains(t, err.Error(), "inputs.candidates_skip_rows must be >= 0")
}

func TestValidateGeocodeBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Geocode.RateLimit = 51
	err := cfg.Validate("geocode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.rate_limit")

	cfg.Geocode.RateLimit = 40
	cfg.Geocode.Concurrency = 0
	err = cfg.Validate("geocode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.concurrency must be between 1 and 16")

	cfg.Geocode.Concurrency = 16
	assert.NoError(t, cfg.Validate("geocode"))
}

func TestValidateConflictPolicy(t *testing.T) {
	cfg := validDefaults()
	cfg.Merge.ConflictPolicy = "overwrite"

	err := cfg.Validate("reconcile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge.conflict_policy")
}

func TestValidatePattern(t *testing.T) {
	cfg := validDefaults()
	cfg.Validation.Pattern = "[A-"

	err := cfg.Validate("reconcile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate.pattern")
}

func TestValidatePublish(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("publish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/ons"
	assert.NoError(t, cfg.Validate("publish"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
