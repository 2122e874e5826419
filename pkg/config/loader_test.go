package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelcloud/identity-core/internal/testutil"
	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

type loaderTestConfig struct {
	Region   string        `env:"REGION" envDefault:"us-east-1" yaml:"region" json:"region"`
	PoolID   string        `env:"POOL_ID" yaml:"pool_id" json:"pool_id"`
	Debug    bool          `env:"DEBUG" yaml:"debug" json:"debug"`
	Retries  int           `env:"RETRIES" envDefault:"3" yaml:"retries" json:"retries"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"5s" yaml:"timeout" json:"timeout"`
	Roles    []string      `env:"ROLES" yaml:"roles" json:"roles"`
	Nested   loaderTestNested
	Required string `env:"REQUIRED_FIELD" yaml:"required_field" json:"required_field"`
}

type loaderTestNested struct {
	Endpoint string `env:"ENDPOINT" envDefault:"http://localhost" yaml:"endpoint" json:"endpoint"`
}

func TestLoaderDefaults(t *testing.T) {
	var cfg loaderTestConfig
	err := New().Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "http://localhost", cfg.Nested.Endpoint)
}

func TestLoaderEnvOverridesDefault(t *testing.T) {
	t.Setenv("REGION", "eu-west-1")
	t.Setenv("RETRIES", "7")
	t.Setenv("DEBUG", "true")
	t.Setenv("TIMEOUT", "30s")
	t.Setenv("ROLES", "admin, user")

	var cfg loaderTestConfig
	err := New().Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, 7, cfg.Retries)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"admin", "user"}, cfg.Roles)
}

func TestLoaderEnvPrefix(t *testing.T) {
	t.Setenv("IDENTITY_REGION", "sa-east-1")
	t.Setenv("REGION", "ignored-unprefixed")

	var cfg loaderTestConfig
	err := New().WithEnvPrefix("identity").Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "sa-east-1", cfg.Region)
}

func TestLoaderNestedEnv(t *testing.T) {
	t.Setenv("ENDPOINT", "http://cognito.local")

	var cfg loaderTestConfig
	err := New().Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "http://cognito.local", cfg.Nested.Endpoint)
}

func TestLoaderYAMLFile(t *testing.T) {
	path := testutil.TempConfigFile(t, "cfg.yaml", `
region: ap-south-1
pool_id: ap-south-1_abc123
retries: 9
`)

	var cfg loaderTestConfig
	err := New().WithFile(path).Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "ap-south-1", cfg.Region)
	assert.Equal(t, "ap-south-1_abc123", cfg.PoolID)
	assert.Equal(t, 9, cfg.Retries)
}

func TestLoaderJSONFile(t *testing.T) {
	path := testutil.TempConfigFile(t, "cfg.json",
		`{"region": "us-west-2", "pool_id": "us-west-2_xyz"}`)

	var cfg loaderTestConfig
	err := New().WithFile(path).Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Equal(t, "us-west-2_xyz", cfg.PoolID)
}

func TestLoaderEnvWinsOverFile(t *testing.T) {
	path := testutil.TempConfigFile(t, "cfg.yaml", "region: from-file\n")
	t.Setenv("REGION", "from-env")

	var cfg loaderTestConfig
	err := New().WithFile(path).Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Region)
}

func TestLoaderMissingFileIgnored(t *testing.T) {
	var cfg loaderTestConfig
	err := New().WithFile(filepath.Join(t.TempDir(), "missing.yaml")).Load(&cfg)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Region)
}

func TestLoaderUnsupportedExtension(t *testing.T) {
	path := testutil.TempConfigFile(t, "cfg.toml", "region = 'x'\n")

	var cfg loaderTestConfig
	err := New().WithFile(path).Load(&cfg)
	require.Error(t, err)
	assert.Equal(t, iderr.CodeInternalConfiguration, iderr.GetCode(err))
}

func TestLoaderTraversalRejected(t *testing.T) {
	var cfg loaderTestConfig
	err := New().WithFile("../etc/passwd.yaml").Load(&cfg)
	require.Error(t, err)
	assert.Equal(t, iderr.CodeInternalConfiguration, iderr.GetCode(err))
}

func TestLoaderNonPointerRejected(t *testing.T) {
	var cfg loaderTestConfig
	err := New().Load(cfg)
	require.Error(t, err)
	assert.Equal(t, iderr.CodeInternalConfiguration, iderr.GetCode(err))
}

type requiredTestConfig struct {
	PoolID string `env:"POOL_ID" required:"true"`
}

func TestLoaderRequiredField(t *testing.T) {
	var cfg requiredTestConfig
	err := New().Load(&cfg)
	require.Error(t, err)
	assert.Equal(t, iderr.CodeValidationRequired, iderr.GetCode(err))
	assert.Contains(t, err.Error(), "PoolID")
}

func TestLoaderRequiredFieldSatisfiedByEnv(t *testing.T) {
	t.Setenv("POOL_ID", "us-east-1_pool")

	var cfg requiredTestConfig
	err := New().Load(&cfg)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1_pool", cfg.PoolID)
}

type validatorTestConfig struct {
	Port int `env:"PORT" envDefault:"8080"`
}

func (c *validatorTestConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return iderr.Newf(iderr.CodeValidation, "port %d out of range", c.Port)
	}
	return nil
}

func TestLoaderCustomValidator(t *testing.T) {
	t.Setenv("PORT", "70000")

	var cfg validatorTestConfig
	err := New().Load(&cfg)
	require.Error(t, err)
	assert.Equal(t, iderr.CodeValidation, iderr.GetCode(err))
}

func TestMustLoadPanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad[requiredTestConfig](New())
	})
}

func TestMustLoadReturnsValue(t *testing.T) {
	t.Setenv("POOL_ID", "us-east-1_must")

	cfg := MustLoad[requiredTestConfig](New())
	assert.Equal(t, "us-east-1_must", cfg.PoolID)
}
