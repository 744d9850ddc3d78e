package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntEnv(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	n, err := intEnv("TEST_INT", 7)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = intEnv("TEST_INT_MISSING", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	t.Setenv("TEST_INT_BAD", "abc")
	_, err = intEnv("TEST_INT_BAD", 7)
	assert.Error(t, err)
}

func TestDurationEnv(t *testing.T) {
	t.Setenv("TEST_DUR", "90s")
	d, err := durationEnv("TEST_DUR", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = durationEnv("TEST_DUR_MISSING", 14*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 14*time.Minute, d)
}

func TestFieldMappingEnv(t *testing.T) {
	t.Setenv("TEST_MAPPING", `{"Title": 101, "Status": 104}`)
	mapping, err := fieldMappingEnv("TEST_MAPPING")
	require.NoError(t, err)

	id, ok := mapping.FieldID("Title")
	require.True(t, ok)
	assert.Equal(t, 101, id)

	_, ok = mapping.FieldID("Unknown")
	assert.False(t, ok)

	t.Setenv("TEST_MAPPING_BAD", `{Title: 101}`)
	_, err = fieldMappingEnv("TEST_MAPPING_BAD")
	assert.Error(t, err)
}

func TestReferenceFieldsEnv(t *testing.T) {
	t.Setenv("TEST_REFS", `{"14947": {"app_id": 249, "field_id": 14949}}`)
	refs, err := referenceFieldsEnv("TEST_REFS")
	require.NoError(t, err)

	target, ok := refs[14947]
	require.True(t, ok)
	assert.Equal(t, 249, target.AppID)
	assert.Equal(t, 14949, target.FieldID)

	t.Setenv("TEST_REFS_BAD_KEY", `{"abc": {"app_id": 1, "field_id": 2}}`)
	_, err = referenceFieldsEnv("TEST_REFS_BAD_KEY")
	assert.Error(t, err)
}

func TestConnectionURLs(t *testing.T) {
	db := DatabaseConfig{Host: "localhost", Port: "5432", User: "app", Password: "pw", DBName: "sync", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:pw@localhost:5432/sync?sslmode=disable", db.MigrateURL())
	assert.Contains(t, db.ConnectionString(), "host=localhost")

	rmq := RabbitMQConfig{Host: "mq", Port: "5672", User: "guest", Password: "guest", VHost: "/"}
	assert.Equal(t, "amqp://guest:guest@mq:5672/", rmq.ConnectionURL())

	rmq.URL = "amqp://override"
	assert.Equal(t, "amqp://override", rmq.ConnectionURL())
}
