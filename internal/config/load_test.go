package config

import (
	"strings"
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSingleStdinFileSource(t *testing.T) {
	set := func(dsnFile, myCnfFile, passwordFile, tokenFile string) *viper.Viper {
		v := viper.New()
		v.Set("database.dsn_file", dsnFile)
		v.Set("database.mycnf_file", myCnfFile)
		v.Set("database.password_file", passwordFile)
		v.Set("server.admin.auth_token_file", tokenFile)
		return v
	}

	t.Run("no stdin sources", func(t *testing.T) {
		v := set("/tmp/dsn", "", "/tmp/password", "/tmp/admin-token")
		assert.NoError(t, validateSingleStdinFileSource(v))
	})

	t.Run("one stdin source", func(t *testing.T) {
		v := set("@-", "", "/tmp/password", "")
		assert.NoError(t, validateSingleStdinFileSource(v))
	})

	t.Run("multiple stdin sources rejected", func(t *testing.T) {
		v := set("@-", " @- ", "/tmp/password", "@-")

		err := validateSingleStdinFileSource(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.dsn_file")
		assert.Contains(t, err.Error(), "database.mycnf_file")
		assert.Contains(t, err.Error(), "server.admin.auth_token_file")
	})
}

// The oidc_skip_tls_verify key was removed; strict decoding must reject
// configs that still carry it rather than silently ignoring them.
func TestUnmarshalExact_RejectsRemovedOIDCSkipTLSVerifyKey(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")

	configYAML := `
server:
  auth:
    oidc_enabled: true
    oidc_issuer_url: https://issuer.example.com
    oidc_audience: mysql-graphql
    oidc_skip_tls_verify: true
`
	require.NoError(t, v.ReadConfig(strings.NewReader(configYAML)))

	var cfg Config
	err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oidc_skip_tls_verify")
}

func TestSetDefaults_OIDCCAFile(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	assert.Empty(t, v.GetString("server.auth.oidc_ca_file"))
}
