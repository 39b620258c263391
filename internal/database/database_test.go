package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/storefront/internal/database/dbtest"
	"github.com/example/storefront/internal/models"
)

func TestMigrateCreatesTables(t *testing.T) {
	db := dbtest.Open(t)

	for _, model := range models.All() {
		assert.True(t, db.Migrator().HasTable(model), "%T", model)
	}
}
